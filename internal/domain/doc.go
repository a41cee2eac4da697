// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (user.go, message.go, auth.go, push.go, errors.go) hold shared types and the
// contracts that adapters implement. No implementation code - just contracts. Interfaces live here so
// that app, push and the adapters can depend on each other without circular imports.
package domain
