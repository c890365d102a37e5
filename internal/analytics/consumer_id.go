package analytics

import (
	"fmt"
	"os"
	"time"
)

// NewConsumerID names this process within the analytics consumer group.
// Hostname and pid identify the instance; the millisecond suffix keeps
// rapid respawns on the same host from colliding, which would let two
// live consumers steal each other's pending entries.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "dynalinks"
	}
	return fmt.Sprintf("%s:%d:%d", host, os.Getpid(), time.Now().UnixMilli())
}
