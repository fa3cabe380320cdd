package indexclient

import (
	"context"
	"time"
)

// DefaultFlushInterval is how often Run calls Flush when mutations are
// pending. The original's index-client reports "promptly", not on every
// single UpdateFriend/RemoveFriend call — batching on a short timer
// keeps the signature overhead independent of how chatty the Router is.
const DefaultFlushInterval = 500 * time.Millisecond

// Run drives periodic flushing until ctx is cancelled, the stdlib
// time.Ticker standing in for the teacher's (stub-only, ungrounded)
// lightningnetwork/lnd/ticker — see DESIGN.md.
func (c *Client) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Flush(); err != nil {
				idxLog.Warnf("index client flush failed: %v", err)
			}
		}
	}
}
