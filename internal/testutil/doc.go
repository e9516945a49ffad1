// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing persisted sessions. Not intended for
// production usage.
package testutil
