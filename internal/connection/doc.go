// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Maintains a single logical WebSocket connection to the realtime server
//   - Recovers from drops with capped exponential backoff and full jitter
//   - Buffers outbound payloads in a bounded drop-oldest queue while disconnected
//   - Fans incoming events out to registered listeners across reconnects
package connection
