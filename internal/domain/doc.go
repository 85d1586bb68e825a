// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (session.go, font.go, backend.go, errors.go) hold the shared
// types and the contracts the pipeline depends on. No implementation code.
// Interfaces live here so adapters and the app layer never import each other.
package domain
