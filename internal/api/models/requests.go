package models

import (
	"github.com/tabletimer/tabletimer/pkg/flexjson"
)

// SettingsRequest is the body of POST /api/settings/{deviceId}. Dashboard
// clients send numbers, some older ones send numeric strings.
type SettingsRequest struct {
	Mode         flexjson.Int  `json:"mode"`
	T1           flexjson.Int  `json:"t1"`
	T2           flexjson.Int  `json:"t2"`
	TableNumber  flexjson.Int  `json:"tableNumber"`
	Buzzer       flexjson.Bool `json:"buzzer"`
	PlayersCount flexjson.Int  `json:"playersCount"`
}

// CommandRequest is the body of POST /api/command/{deviceId}.
type CommandRequest struct {
	Command string `json:"command"`
}

// SeatRequest is the body of POST /api/seat_request, keyed by table.
type SeatRequest struct {
	TableNumber flexjson.Int `json:"table_number"`
	Seats       []int        `json:"seats"`
	Action      string       `json:"action,omitempty"`
}

// TableRequest is the body of table-keyed calls (floorman, bar service).
type TableRequest struct {
	TableNumber flexjson.Int `json:"table_number"`
}

// BarRequest is one outstanding bar service call.
type BarRequest struct {
	ID          string `json:"id"`
	TableNumber int    `json:"table_number"`
	Timestamp   Millis `json:"timestamp"`
}
