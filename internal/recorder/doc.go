// Package recorder implements the optional frame recorder.
//
// The recorder:
//   - Attaches to the Connection Manager as a message listener
//   - Buffers inbound frames through a bounded channel
//   - Batch-inserts them into the frames table (PostgreSQL)
//
// Inserts are append-only with ON CONFLICT DO NOTHING, so replaying a
// capture against the same database is safe.
package recorder
