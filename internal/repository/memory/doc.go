// Package memory provides in-memory implementations of every repository
// contract. They back the service, pipeline, and handler tests and the
// server's dev mode when no DATABASE_URL is configured. All types are safe
// for concurrent use.
package memory
