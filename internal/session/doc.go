// Package session provides the in-memory SessionStore used in single-instance mode.
//
// Each session has its own mutex, so mutations of one session are serialized
// while distinct sessions proceed in parallel. Readers only ever see complete
// snapshots: every write builds a new domain.Session and swaps it in.
package session
