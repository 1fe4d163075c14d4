package ws

import "time"

// ConnInfo is the per-connection attribution the hub keeps alongside each
// conversation room member, used to enrich lifecycle events on disconnect
// and write failure.
type ConnInfo struct {
	ConnID      string
	UserID      int
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
