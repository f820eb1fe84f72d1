package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo identifies one live connection for lifecycle events and metrics.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	return uuid.NewString()
}
