package models

import (
	"github.com/tabletimer/tabletimer/pkg/flexjson"
)

// StatusPush is the body a device posts to /api/status. Every field except
// device_id is optional: absent fields leave the stored value untouched.
// Firmware across hardware revisions is sloppy about JSON types, hence the
// flexjson coercions.
type StatusPush struct {
	DeviceID     string          `json:"device_id"`
	TableNumber  *flexjson.Int   `json:"table_number,omitempty"`
	Mode         *flexjson.Int   `json:"mode,omitempty"`
	T1Value      *flexjson.Int   `json:"t1_value,omitempty"`
	T2Value      *flexjson.Int   `json:"t2_value,omitempty"`
	CurrentTimer *flexjson.Int   `json:"current_timer,omitempty"`
	T1Active     *flexjson.Bool  `json:"is_t1_active,omitempty"`
	Running      *flexjson.Bool  `json:"is_running,omitempty"`
	Paused       *flexjson.Bool  `json:"is_paused,omitempty"`
	TimeExpired  *flexjson.Bool  `json:"time_expired,omitempty"`
	Buzzer       *flexjson.Bool  `json:"buzzer,omitempty"`
	BatteryLevel *flexjson.Int   `json:"battery_level,omitempty"`
	Voltage      *flexjson.Float `json:"voltage,omitempty"`
	WifiSignal   *flexjson.Int   `json:"wifi_signal,omitempty"`
	PlayersCount *flexjson.Int   `json:"players_count,omitempty"`
}

// SeatInfo is the open-seat announcement attached to a device record.
type SeatInfo struct {
	OpenSeats            []int  `json:"open_seats"`
	Action               string `json:"action"`
	Timestamp            Millis `json:"timestamp"`
	NeedsWebNotification bool   `json:"needs_web_notification"`
}

// CommandSettings is the payload of a queued settings command, delivered to
// the device inside a StatusResponse.
type CommandSettings struct {
	Mode         int  `json:"mode"`
	T1           int  `json:"t1"`
	T2           int  `json:"t2"`
	TableNumber  int  `json:"tableNumber"`
	Buzzer       bool `json:"buzzer"`
	PlayersCount int  `json:"playersCount,omitempty"`
}

// StatusResponse is what a device gets back from a status push.
type StatusResponse struct {
	Status      string           `json:"status"`
	Command     *string          `json:"command,omitempty"`
	Settings    *CommandSettings `json:"settings,omitempty"`
	SeatRequest *SeatInfo        `json:"seat_request,omitempty"`
}

// DeviceStatus is the dashboard view of one device. Online is derived at
// read time from last_update, never stored.
type DeviceStatus struct {
	DeviceID     string  `json:"device_id"`
	TableNumber  int     `json:"table_number"`
	Mode         int     `json:"mode"`
	T1Value      int     `json:"t1_value"`
	T2Value      int     `json:"t2_value"`
	CurrentTimer int     `json:"current_timer"`
	T1Active     bool    `json:"is_t1_active"`
	Running      bool    `json:"is_running"`
	Paused       bool    `json:"is_paused"`
	TimeExpired  bool    `json:"time_expired"`
	Buzzer       bool    `json:"buzzer"`
	BatteryLevel int     `json:"battery_level"`
	Voltage      float64 `json:"voltage"`
	WifiSignal   int     `json:"wifi_signal,omitempty"`
	PlayersCount int     `json:"players_count"`

	IPAddress  string    `json:"ip_address"`
	LastUpdate Timestamp `json:"last_update"`
	Online     bool      `json:"online"`

	SeatInfo *SeatInfo `json:"seat_info,omitempty"`

	FloormanCallTimestamp *Millis `json:"floorman_call_timestamp,omitempty"`
	FloormanActive        bool    `json:"floorman_active"`
	BarServiceTimestamp   *Millis `json:"bar_service_timestamp,omitempty"`
}

// ClearResult reports how many device records a DELETE /api/timers removed.
type ClearResult struct {
	Status  string `json:"status"`
	Cleared int    `json:"cleared"`
}

// Ack is the generic queued/applied confirmation.
type Ack struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
