// Package session provides conversation persistence for the runner. A
// Store keeps the ordered item history of a conversation keyed by session
// ID; when a run is configured with one, the runner prepends the stored
// history to the new input and appends everything the run produced.
//
// Three backends ship with the module: a process local InMemoryStore for
// tests and demos, a RedisStore for shared short lived state, and a
// SQLiteStore for durable single node setups. Additional backends only
// need to implement the Store interface.
package session
