package timer

import (
	"sync"
)

// Engine owns a single countdown. All methods are safe for concurrent use;
// a remote command applied mid-poll and a tick from the countdown loop are
// serialized on the same mutex, so every transition is atomic with respect
// to the others.
type Engine struct {
	mu sync.Mutex

	settings Settings

	currentTimer int
	t1Active     bool
	running      bool
	paused       bool
	expired      bool

	cues     CueSink
	onChange func(Snapshot)
}

// Config holds configuration for creating an Engine.
type Config struct {
	Settings Settings

	// Cues receives threshold crossings. Nil means no cues.
	Cues CueSink

	// OnChange is invoked after every state transition, with the mutex
	// released, carrying the post-transition snapshot. Nil disables
	// notifications.
	OnChange func(Snapshot)
}

// NewEngine creates an engine in the Stopped state with the active timer
// preloaded to its configured value.
func NewEngine(cfg Config) *Engine {
	settings := cfg.Settings
	if !settings.Mode.Valid() {
		settings.Mode = ModeDualAuto
	}

	cues := cfg.Cues
	if cues == nil {
		cues = NopCue{}
	}

	return &Engine{
		settings:     settings,
		currentTimer: settings.T1,
		t1Active:     true,
		cues:         cues,
		onChange:     cfg.OnChange,
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	return Snapshot{
		CurrentTimer: e.currentTimer,
		T1Active:     e.t1Active,
		Running:      e.running,
		Paused:       e.paused,
		Expired:      e.expired,
		Settings:     e.settings,
	}
}

func (e *Engine) activeValueLocked() int {
	if e.t1Active {
		return e.settings.T1
	}
	return e.settings.T2
}

// notify delivers the snapshot outside the lock so the observer may call
// back into the engine.
func (e *Engine) notify(snap Snapshot) {
	if e.onChange != nil {
		e.onChange(snap)
	}
}

// Start begins or resumes the countdown. A no-op when already running and
// not paused, so a redelivered start command cannot disturb a live count.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running && !e.paused {
		e.mu.Unlock()
		return
	}

	// From stopped or expired, load the active timer's configured value;
	// from paused, continue from the frozen value.
	if e.expired || (!e.running && !e.paused) {
		e.currentTimer = e.activeValueLocked()
	}
	e.running = true
	e.paused = false
	e.expired = false

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// Pause freezes a running countdown. A no-op unless running and unpaused.
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.running || e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true

	buzzer := e.settings.BuzzerEnabled
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if buzzer {
		e.cues.Paused()
	}
	e.notify(snap)
}

// StartPause toggles between running and paused, matching the single
// physical button on the unit.
func (e *Engine) StartPause() {
	snap := e.Snapshot()
	switch {
	case snap.Paused && !snap.Expired:
		e.Start()
	case snap.Running:
		e.Pause()
	default:
		e.Start()
	}
}

// Reset reloads the active timer from its configured value. Whether the
// countdown then runs or waits is dictated by the operation mode.
func (e *Engine) Reset() {
	e.reset(e.settings.Mode.AutoStart())
}

// ResetStopped reloads the active timer and always stays stopped, regardless
// of mode.
func (e *Engine) ResetStopped() {
	e.reset(false)
}

func (e *Engine) reset(autoStart bool) {
	e.mu.Lock()
	e.currentTimer = e.activeValueLocked()
	e.running = autoStart
	e.paused = false
	e.expired = false

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// Stop halts the countdown and reloads the active timer's configured value.
func (e *Engine) Stop() {
	e.reset(false)
}

// Switch toggles the active timer. Only meaningful in dual-timer modes; a
// no-op otherwise. The new countdown never auto-runs.
func (e *Engine) Switch() {
	e.mu.Lock()
	if !e.settings.Mode.DualTimer() {
		e.mu.Unlock()
		return
	}

	e.t1Active = !e.t1Active
	e.currentTimer = e.activeValueLocked()
	e.running = false
	e.paused = false
	e.expired = false

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// Tick advances the countdown by one unit of time. It is the only
// autonomous transition: everything else is input-driven. Returns true when
// this tick expired the countdown.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	if !e.running || e.paused || e.expired {
		e.mu.Unlock()
		return false
	}

	e.currentTimer--
	buzzer := e.settings.BuzzerEnabled
	remaining := e.currentTimer

	expired := false
	if e.currentTimer <= 0 {
		e.currentTimer = 0
		e.running = false
		e.paused = false
		e.expired = true
		expired = true
	}

	snap := e.snapshotLocked()
	e.mu.Unlock()

	if buzzer {
		if expired {
			e.cues.Expired()
		} else if remaining == 10 || remaining <= 5 {
			e.cues.Tick(remaining)
		}
	}
	e.notify(snap)
	return expired
}

// ApplySettings overwrites the configured parameters. A stopped countdown is
// refreshed to the newly active configured value; a running or paused one is
// left alone until the next reset.
func (e *Engine) ApplySettings(settings Settings) {
	e.mu.Lock()
	if !settings.Mode.Valid() {
		settings.Mode = e.settings.Mode
	}
	e.settings = settings

	if !settings.Mode.DualTimer() {
		e.t1Active = true
	}
	if !e.running && !e.paused {
		e.currentTimer = e.activeValueLocked()
	}

	snap := e.snapshotLocked()
	e.mu.Unlock()
	e.notify(snap)
}

// Settings returns a copy of the current configuration.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}
