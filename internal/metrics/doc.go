// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state and connect/reconnect attempt counters
//   - Message send/receive rates
//   - Outbound queue depth and drop counts
//   - Retry exhaustion events
package metrics
