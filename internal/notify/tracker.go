// Package notify deduplicates human-facing alerts. The coordination
// service raises the same condition on every poll cycle while it is live;
// the tracker makes sure each distinct occurrence is surfaced once.
package notify

import "sync"

// Kind labels the alert channel a payload belongs to. Dedup state is kept
// per (device, kind), so a seat alert and a floorman alert for the same
// device never mask each other.
type Kind string

const (
	KindSeat     Kind = "seat"
	KindFloorman Kind = "floorman"
	KindBar      Kind = "bar"
)

type key struct {
	deviceID string
	kind     Kind
}

// Tracker remembers the last payload surfaced per (device, kind). Safe for
// concurrent use.
type Tracker struct {
	mu   sync.Mutex
	seen map[key]string
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[key]string)}
}

// ShouldNotify reports whether payload differs from the last surfaced value
// for (deviceID, kind). When it does, the tracker records payload as
// surfaced, so the caller must only invoke this when it is prepared to
// deliver the alert.
func (t *Tracker) ShouldNotify(deviceID string, kind Kind, payload string) bool {
	k := key{deviceID: deviceID, kind: kind}

	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.seen[k]
	if ok && last == payload {
		return false
	}
	t.seen[k] = payload
	return true
}

// Clear forgets the surfaced payload for (deviceID, kind). The next
// occurrence notifies again even when its payload is identical to the one
// cleared. Call it when an operator resolves the underlying condition.
func (t *Tracker) Clear(deviceID string, kind Kind) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.seen, key{deviceID: deviceID, kind: kind})
}

// ClearDevice drops all tracked kinds for a device, for when the device
// record itself is removed.
func (t *Tracker) ClearDevice(deviceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.seen {
		if k.deviceID == deviceID {
			delete(t.seen, k)
		}
	}
}
