package store

import (
	"context"
	"time"
)

// DeviceStatusRecord is the last observed outcome of a command against one
// device.
type DeviceStatusRecord struct {
	DeviceName string
	LastSeenAt time.Time
	LastOK     bool
	LastError  string
}

// DeviceStatusStore tracks per-device command outcomes for the health
// surface.  Writes are best effort: the controller never fails a command
// because a status mark failed.
type DeviceStatusStore interface {
	MarkSeen(ctx context.Context, name string, ok bool, errMsg string, t time.Time) error
	Status(ctx context.Context, name string) (DeviceStatusRecord, error)
}
