// Package mapping owns content-mapping lifecycle and session-context
// scoping concerns.
//
// Ownership boundary:
// - lifecycle registration per mapping domain
// - engine bootstrap at domain start
// - session-context open/close state machine
// - request synchronization spanning domains
//
// Scoping rules:
// - a context is global when a synchronization is active, local otherwise
// - at most one context per domain is active within a scope
// - global contexts close together when the synchronization ends
//
// The mapping engine itself is an external collaborator behind the
// engine.Factory seam; this package never interprets node contents.
package mapping
