// Package auth issues and verifies the HS256 bearer tokens used by the API and the push endpoint, and
// hashes user passwords with bcrypt.
package auth
