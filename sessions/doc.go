// Package sessions tracks per-connection server state: initialization status,
// authenticated identity, and activity timestamps. The Store is the single
// owner of all live sessions; transports create and destroy entries, and the
// dispatch pipeline re-resolves sessions by transport handle so handlers
// always observe the latest state.
package sessions
