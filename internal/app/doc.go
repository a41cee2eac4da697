// Package app provides the application service layer.
//
// Orchestrates use cases: registration, login, refresh-token rotation, and the direct-message
// operations. Sits between HTTP handlers and the repositories and depends on domain interfaces only.
package app
