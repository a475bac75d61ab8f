package registry

import (
	"context"
	"sync"
	"time"
)

// deviceEntry holds one device's record and command slot behind its own
// lock, so pushes from different devices never serialize on each other.
type deviceEntry struct {
	mu      sync.Mutex
	status  *DeviceStatus
	command *PendingCommand
}

// InMemoryRepository is the canonical Repository implementation. The whole
// registry is deliberately volatile: a restart clears the fleet and devices
// repopulate it within one poll cycle.
//
// The top-level lock guards only the device map; per-device state is guarded
// by each entry's lock. The map lock is always released before an entry lock
// is taken, so the two are never held together. Entries are only detached
// wholesale by DeleteAll, and a straggler writing through a detached entry
// mutates state that is already discarded.
type InMemoryRepository struct {
	mu      sync.RWMutex
	devices map[string]*deviceEntry
}

// NewInMemoryRepository creates an empty in-memory device registry.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*deviceEntry),
	}
}

func (r *InMemoryRepository) entry(deviceID string) (*deviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.devices[deviceID]
	return e, ok
}

func (r *InMemoryRepository) entryOrCreate(deviceID string) *deviceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.devices[deviceID]
	if !ok {
		e = &deviceEntry{status: &DeviceStatus{DeviceID: deviceID}}
		r.devices[deviceID] = e
	}
	return e
}

// Get retrieves a device record.
func (r *InMemoryRepository) Get(_ context.Context, deviceID string) (*DeviceStatus, error) {
	e, ok := r.entry(deviceID)
	if !ok {
		return nil, ErrDeviceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return copyStatus(e.status), nil
}

// List retrieves all device records.
func (r *InMemoryRepository) List(_ context.Context) ([]*DeviceStatus, error) {
	r.mu.RLock()
	entries := make([]*deviceEntry, 0, len(r.devices))
	for _, e := range r.devices {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	items := make([]*DeviceStatus, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		items = append(items, copyStatus(e.status))
		e.mu.Unlock()
	}
	return items, nil
}

// Merge folds a status update into the stored record, creating it when the
// device is new.
func (r *InMemoryRepository) Merge(_ context.Context, update StatusUpdate) (*DeviceStatus, error) {
	e := r.entryOrCreate(update.DeviceID)

	e.mu.Lock()
	defer e.mu.Unlock()

	record := e.status
	if update.TableNumber != nil {
		record.TableNumber = *update.TableNumber
	}
	if update.Mode != nil {
		record.Mode = *update.Mode
	}
	if update.T1Value != nil {
		record.T1Value = *update.T1Value
	}
	if update.T2Value != nil {
		record.T2Value = *update.T2Value
	}
	if update.CurrentTimer != nil {
		record.CurrentTimer = *update.CurrentTimer
	}
	if update.T1Active != nil {
		record.T1Active = *update.T1Active
	}
	if update.Running != nil {
		record.Running = *update.Running
	}
	if update.Paused != nil {
		record.Paused = *update.Paused
	}
	if update.TimeExpired != nil {
		record.TimeExpired = *update.TimeExpired
	}
	if update.Buzzer != nil {
		record.Buzzer = *update.Buzzer
	}
	if update.BatteryLevel != nil {
		record.BatteryLevel = *update.BatteryLevel
	}
	if update.Voltage != nil {
		record.Voltage = *update.Voltage
	}
	if update.WifiSignal != nil {
		record.WifiSignal = *update.WifiSignal
	}
	if update.PlayersCount != nil {
		record.PlayersCount = *update.PlayersCount
	}

	record.IPAddress = update.IPAddress
	record.LastUpdate = update.ReceivedAt

	return copyStatus(record), nil
}

// DeleteAll removes every device record and pending command.
func (r *InMemoryRepository) DeleteAll(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.devices)
	r.devices = make(map[string]*deviceEntry)
	return count, nil
}

// QueueCommand places cmd in the device's command slot, overwriting any
// queued command.
func (r *InMemoryRepository) QueueCommand(_ context.Context, deviceID string, cmd PendingCommand) error {
	e, ok := r.entry(deviceID)
	if !ok {
		return ErrDeviceNotFound
	}

	queued := cmd
	if cmd.Settings != nil {
		settings := *cmd.Settings
		queued.Settings = &settings
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.command = &queued
	return nil
}

// TakeCommand empties the device's command slot.
func (r *InMemoryRepository) TakeCommand(_ context.Context, deviceID string) (*PendingCommand, error) {
	e, ok := r.entry(deviceID)
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	cmd := e.command
	e.command = nil
	return cmd, nil
}

// MergeSeats unions seats into the device's open-seat set and raises the
// notification flag.
func (r *InMemoryRepository) MergeSeats(_ context.Context, deviceID string, seats []int, action string, at time.Time) (*SeatInfo, error) {
	e, ok := r.entry(deviceID)
	if !ok {
		return nil, ErrDeviceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	record := e.status
	if record.SeatInfo == nil {
		record.SeatInfo = &SeatInfo{Action: CommandSeatOpen}
	}
	if action != "" {
		record.SeatInfo.Action = action
	}

	known := make(map[int]bool, len(record.SeatInfo.OpenSeats))
	for _, seat := range record.SeatInfo.OpenSeats {
		known[seat] = true
	}
	for _, seat := range seats {
		if !known[seat] {
			record.SeatInfo.OpenSeats = append(record.SeatInfo.OpenSeats, seat)
			known[seat] = true
		}
	}

	record.SeatInfo.UpdatedAt = at
	record.SeatInfo.NeedsNotification = true

	return copySeatInfo(record.SeatInfo), nil
}

// TakeSeatNotification returns the device's seat info and lowers its
// notification flag.
func (r *InMemoryRepository) TakeSeatNotification(_ context.Context, deviceID string) (*SeatInfo, error) {
	e, ok := r.entry(deviceID)
	if !ok {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	record := e.status
	if record.SeatInfo == nil || !record.SeatInfo.NeedsNotification {
		return nil, nil
	}

	record.SeatInfo.NeedsNotification = false
	info := copySeatInfo(record.SeatInfo)
	info.NeedsNotification = true
	return info, nil
}

// ClearSeatNotification lowers the notification flag without reading it.
func (r *InMemoryRepository) ClearSeatNotification(_ context.Context, deviceID string) error {
	e, ok := r.entry(deviceID)
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status.SeatInfo != nil {
		e.status.SeatInfo.NeedsNotification = false
	}
	return nil
}

// ClearSeatInfo drops the device's seat info entirely.
func (r *InMemoryRepository) ClearSeatInfo(_ context.Context, deviceID string) error {
	e, ok := r.entry(deviceID)
	if !ok {
		return ErrDeviceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.SeatInfo = nil
	return nil
}

// SetFloorman records or clears a floorman call.
func (r *InMemoryRepository) SetFloorman(_ context.Context, deviceID string, at time.Time) error {
	e, ok := r.entry(deviceID)
	if !ok {
		return ErrDeviceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.FloormanCalledAt = at
	return nil
}

// SetBarRequested records or clears the device's last bar request time.
func (r *InMemoryRepository) SetBarRequested(_ context.Context, deviceID string, at time.Time) error {
	e, ok := r.entry(deviceID)
	if !ok {
		return ErrDeviceNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.BarRequestedAt = at
	return nil
}

// copyStatus creates a deep copy of a device record.
func copyStatus(d *DeviceStatus) *DeviceStatus {
	if d == nil {
		return nil
	}
	statusCopy := *d
	statusCopy.SeatInfo = copySeatInfo(d.SeatInfo)
	return &statusCopy
}

func copySeatInfo(s *SeatInfo) *SeatInfo {
	if s == nil {
		return nil
	}
	infoCopy := *s
	infoCopy.OpenSeats = append([]int(nil), s.OpenSeats...)
	return &infoCopy
}
