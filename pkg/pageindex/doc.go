// Package pageindex is a persistent, incrementally maintained index of a
// hierarchical page store.
//
// The [Store] is the source of truth: it owns page content and child
// listings and hands out cheap change tokens for both. The index is a
// derived SQLite cache of the tree shape, content staleness, links and tags.
// It can be thrown away and rebuilt at any time with [Index.Flush].
//
// Every page row carries a needs-check [State]. The tree walker repeatedly
// picks the row with the lowest nonzero state, compares store tokens with
// the cached ones, and only re-reads content when a token differs. Each row
// is processed in its own short write transaction so that synchronous edits
// ([Index.OnStorePage], [Index.OnDeletePage]) are never starved by a long
// scan running in the background.
//
// # Concurrency
//
// Safe for concurrent use. Readers hold a shared state lock; writers hold
// an exclusive change lock and only take the state lock to commit. Writes
// are reentrant through the context: a write started with a context that
// already carries an open transaction of the same index joins it and commits
// only when the outermost write returns. Change notifications are queued
// during the transaction and delivered after the outermost commit.
package pageindex
