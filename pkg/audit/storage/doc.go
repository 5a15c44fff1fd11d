// Package storage provides the audit history backends: an in-memory store
// for tests and ephemeral deployments, and a SQLite store for durable
// single-instance history.
package storage
