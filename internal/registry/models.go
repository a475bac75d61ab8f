// Package registry tracks the fleet of table timers. Devices push their
// status here; operator actions are held as a single pending command per
// device and delivered on the device's next push.
package registry

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrTableNotFound  = errors.New("no device registered for table")
)

// Liveness and staleness policy. Derived on every read, never stored.
const (
	// OnlineWindow is how recently a device must have pushed to count as
	// online.
	OnlineWindow = 5 * time.Minute

	// FloormanWindow is how long a floorman call stays active before it is
	// treated as abandoned.
	FloormanWindow = 5 * time.Minute
)

// Command tags understood by devices. Settings carries a payload; SeatOpen
// travels in the legacy "seat_open:<csv>" form.
const (
	CommandStart         = "start"
	CommandPause         = "pause"
	CommandReset         = "reset"
	CommandStop          = "stop"
	CommandSwitch        = "switch"
	CommandSettings      = "settings"
	CommandApplySettings = "apply_settings"
	CommandResetSeatInfo = "reset_seat_info"
	CommandClearFloorman = "clear_floorman"
	CommandSeatOpen      = "seat_open"
)

// SettingsPayload is the payload of a queued settings change.
type SettingsPayload struct {
	Mode         int
	T1           int
	T2           int
	TableNumber  int
	Buzzer       bool
	PlayersCount int
}

// PendingCommand occupies a device's single command slot. Queueing a new
// command overwrites whatever was there; delivery empties the slot.
type PendingCommand struct {
	Name     string
	Settings *SettingsPayload
	IssuedAt time.Time
}

// SeatInfo is the open-seat announcement held for a device's table until a
// web client acknowledges it.
type SeatInfo struct {
	OpenSeats         []int
	Action            string
	UpdatedAt         time.Time
	NeedsNotification bool
}

// DeviceStatus is the server-side record for one device. TableNumber is the
// device's own claim; the registry resolves table-keyed requests by scanning
// these claims, so two devices reporting the same table is a configuration
// error the registry does not police.
type DeviceStatus struct {
	DeviceID     string
	TableNumber  int
	Mode         int
	T1Value      int
	T2Value      int
	CurrentTimer int
	T1Active     bool
	Running      bool
	Paused       bool
	TimeExpired  bool
	Buzzer       bool
	BatteryLevel int
	Voltage      float64
	WifiSignal   int
	PlayersCount int

	// Stamped server-side on every push.
	IPAddress  string
	LastUpdate time.Time

	SeatInfo *SeatInfo

	// Zero when no call is open.
	FloormanCalledAt time.Time
	BarRequestedAt   time.Time
}

// Online reports whether the device pushed within the liveness window.
func (d *DeviceStatus) Online(now time.Time) bool {
	if d.LastUpdate.IsZero() {
		return false
	}
	return now.Sub(d.LastUpdate) < OnlineWindow
}

// FloormanActive reports whether an unexpired floorman call is open.
func (d *DeviceStatus) FloormanActive(now time.Time) bool {
	if d.FloormanCalledAt.IsZero() {
		return false
	}
	return now.Sub(d.FloormanCalledAt) < FloormanWindow
}

// StatusUpdate carries the fields of one device push. Nil pointers mean the
// device did not send the field; the stored value is kept. The device never
// supplies IPAddress or ReceivedAt, those are stamped by the service.
type StatusUpdate struct {
	DeviceID     string
	TableNumber  *int
	Mode         *int
	T1Value      *int
	T2Value      *int
	CurrentTimer *int
	T1Active     *bool
	Running      *bool
	Paused       *bool
	TimeExpired  *bool
	Buzzer       *bool
	BatteryLevel *int
	Voltage      *float64
	WifiSignal   *int
	PlayersCount *int

	IPAddress  string
	ReceivedAt time.Time
}
