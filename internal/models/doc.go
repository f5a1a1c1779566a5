// Package models defines the session entities and the storage interface shared by the
// authorization handlers, the token refresher and the request executor.
//
//   - [Session] : per-browser authorization state keyed by an opaque session id
//   - [TokenPair] : the provider's token endpoint response
//   - [SessionStore] : storage abstraction injected into every component that touches sessions
//
// Implementations of [SessionStore] live in the repositories package.
package models
