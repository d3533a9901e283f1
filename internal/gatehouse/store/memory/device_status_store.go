package memory

import (
	"context"
	"sync"
	"time"

	"github.com/sejink/gatehouse/internal/gatehouse/store"
)

// DeviceStatusStore keeps per-device command outcomes in a map.
type DeviceStatusStore struct {
	mu   sync.RWMutex
	data map[string]store.DeviceStatusRecord
}

func NewDeviceStatusStore() *DeviceStatusStore {
	return &DeviceStatusStore{data: make(map[string]store.DeviceStatusRecord)}
}

func (s *DeviceStatusStore) MarkSeen(_ context.Context, name string, ok bool, errMsg string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[name] = store.DeviceStatusRecord{
		DeviceName: name,
		LastSeenAt: t,
		LastOK:     ok,
		LastError:  errMsg,
	}
	return nil
}

func (s *DeviceStatusStore) Status(_ context.Context, name string) (store.DeviceStatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[name]
	if !ok {
		return store.DeviceStatusRecord{}, store.ErrNotFound
	}
	return rec, nil
}
