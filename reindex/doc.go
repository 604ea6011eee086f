// Package reindex rebuilds the vector index from persisted posts.
//
// It is used after switching embedding model or vector backend: every post
// in the relational store is re-embedded and upserted into the configured
// vector store. Progress is written to an io.Writer and a checkpoint lets an
// interrupted run resume where it stopped.
package reindex
