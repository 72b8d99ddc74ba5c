// Package events defines the pipeline events emitted on the event bus.
//
// Available event types:
//   - FlipBlocked: a candidate was refused with a reason
//   - FlipSent: a flip reached the transport
//   - SlowFlip: a delivery crossed the slow threshold
//   - SessionEvent: a connection joined or left the hub
package events
