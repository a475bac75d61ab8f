package registry

import (
	"context"
	"time"
)

// Repository defines storage for device records and their command slots.
// Every method is an atomic unit of mutation on one device record.
type Repository interface {
	// Get retrieves a device record.
	Get(ctx context.Context, deviceID string) (*DeviceStatus, error)

	// List retrieves all device records.
	List(ctx context.Context) ([]*DeviceStatus, error)

	// Merge folds a status update into the stored record, creating it when
	// the device is new. Fields the update leaves nil keep their stored
	// value. Returns the merged record.
	Merge(ctx context.Context, update StatusUpdate) (*DeviceStatus, error)

	// DeleteAll removes every device record and pending command. Returns
	// the number of records removed.
	DeleteAll(ctx context.Context) (int, error)

	// QueueCommand places cmd in the device's command slot, overwriting
	// any command already queued. ErrDeviceNotFound for unknown devices.
	QueueCommand(ctx context.Context, deviceID string, cmd PendingCommand) error

	// TakeCommand empties the device's command slot. Returns nil when the
	// slot is empty or the device is unknown.
	TakeCommand(ctx context.Context, deviceID string) (*PendingCommand, error)

	// MergeSeats unions seats into the device's open-seat set and raises
	// the notification flag. An empty action keeps the stored one.
	// ErrDeviceNotFound for unknown devices.
	MergeSeats(ctx context.Context, deviceID string, seats []int, action string, at time.Time) (*SeatInfo, error)

	// TakeSeatNotification returns the device's seat info and lowers its
	// notification flag, or nil when nothing is flagged.
	TakeSeatNotification(ctx context.Context, deviceID string) (*SeatInfo, error)

	// ClearSeatNotification lowers the notification flag without reading
	// it. A no-op for unknown devices.
	ClearSeatNotification(ctx context.Context, deviceID string) error

	// ClearSeatInfo drops the device's seat info entirely.
	ClearSeatInfo(ctx context.Context, deviceID string) error

	// SetFloorman records a floorman call at the given time. A zero time
	// clears the call. ErrDeviceNotFound for unknown devices.
	SetFloorman(ctx context.Context, deviceID string, at time.Time) error

	// SetBarRequested records when a bar request was last raised for the
	// device's table. A zero time clears it.
	SetBarRequested(ctx context.Context, deviceID string, at time.Time) error
}
