// Package charset resolves a character selection (free text or a named preset)
// against the characters a font actually provides.
//
// Everything here is pure: no I/O, no shared state.
package charset
