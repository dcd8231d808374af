// Package database provides PostgreSQL connection pool management for
// the frame recorder.
package database
