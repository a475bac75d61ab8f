// Package timer implements the countdown state machine running inside each
// table unit. Local button presses and remotely delivered commands both go
// through the same transition methods, so idempotence rules hold regardless
// of where an input came from.
package timer

// Mode is the closed set of operation modes a unit can run in.
type Mode int

const (
	// ModeDualAuto exposes both timers; a restart starts counting immediately.
	ModeDualAuto Mode = 1
	// ModeDualManual exposes both timers; a restart stays stopped until an
	// explicit start.
	ModeDualManual Mode = 2
	// ModeSingleAuto is T1-only; a restart starts counting immediately.
	ModeSingleAuto Mode = 3
	// ModeSingleManual is T1-only; a restart stays stopped.
	ModeSingleManual Mode = 4
)

// Valid reports whether m is one of the four defined modes.
func (m Mode) Valid() bool {
	return m >= ModeDualAuto && m <= ModeSingleManual
}

// DualTimer reports whether the mode exposes the second timer.
func (m Mode) DualTimer() bool {
	return m == ModeDualAuto || m == ModeDualManual
}

// AutoStart reports whether a restart in this mode begins counting
// immediately.
func (m Mode) AutoStart() bool {
	return m == ModeDualAuto || m == ModeSingleAuto
}

// State is the derived lifecycle state of a countdown.
type State int

const (
	StateStopped State = iota
	StateRunning
	StatePaused
	StateExpired
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateExpired:
		return "expired"
	default:
		return "stopped"
	}
}

// Settings holds the operator-configurable parameters of a unit.
type Settings struct {
	T1            int
	T2            int
	Mode          Mode
	TableNumber   int
	BuzzerEnabled bool
	PlayersCount  int
}

// DefaultSettings mirrors the factory defaults of the original units.
func DefaultSettings() Settings {
	return Settings{
		T1:            20,
		T2:            30,
		Mode:          ModeDualAuto,
		TableNumber:   1,
		BuzzerEnabled: true,
		PlayersCount:  10,
	}
}

// Snapshot is a consistent copy of the full observable engine state.
type Snapshot struct {
	CurrentTimer int
	T1Active     bool
	Running      bool
	Paused       bool
	Expired      bool
	Settings     Settings
}

// State derives the lifecycle state from the running/paused/expired flags.
func (s Snapshot) State() State {
	switch {
	case s.Expired:
		return StateExpired
	case s.Running && s.Paused:
		return StatePaused
	case s.Running:
		return StateRunning
	default:
		return StateStopped
	}
}

// ActiveValue returns the configured value of the currently active timer.
func (s Snapshot) ActiveValue() int {
	if s.T1Active {
		return s.Settings.T1
	}
	return s.Settings.T2
}

// CueSink receives audible/tactile cue crossings. The engine only reports
// crossings; playback is the caller's concern. Calls are suppressed entirely
// while the buzzer is disabled.
type CueSink interface {
	// Tick fires on the countdown values that warrant a warning sound
	// (10 and the final five).
	Tick(remaining int)
	// Paused fires when a running countdown is paused.
	Paused()
	// Expired fires when the countdown reaches zero.
	Expired()
}

// NopCue is a CueSink that discards all crossings.
type NopCue struct{}

func (NopCue) Tick(int) {}
func (NopCue) Paused()  {}
func (NopCue) Expired() {}
