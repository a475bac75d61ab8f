package syncclient

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/timer"
	"github.com/tabletimer/tabletimer/pkg/flexjson"
)

// DefaultInterval is the poll cadence. The protocol is built around it:
// liveness windows and command latency all assume a push roughly this often.
const DefaultInterval = 2 * time.Second

// Vitals is the hardware telemetry attached to every push.
type Vitals struct {
	BatteryLevel int
	Voltage      float64
	WifiSignal   int
}

// VitalsFunc supplies current hardware telemetry. Called once per push.
type VitalsFunc func() Vitals

// Poller owns the device's poll loop. It pushes the engine's state to the
// server, applies whatever command comes back through the engine's normal
// transitions, and tracks the connection flag. One failed push disconnects;
// the loop never runs unsupervised while disconnected.
type Poller struct {
	client   *Client
	engine   *timer.Engine
	deviceID string
	interval time.Duration
	vitals   VitalsFunc
	clock    clockwork.Clock
	log      zerolog.Logger

	// onConnectionChange fires on every false<->true transition.
	onConnectionChange func(bool)

	// kick wakes the loop for an out-of-band push.
	kick chan struct{}

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// PollerConfig holds configuration for creating a Poller.
type PollerConfig struct {
	Client   *Client
	Engine   *timer.Engine
	DeviceID string

	// Interval between pushes. Default: DefaultInterval.
	Interval time.Duration

	// Vitals supplies hardware telemetry. Nil sends zero values.
	Vitals VitalsFunc

	// OnConnectionChange is invoked with the new connection state on
	// every transition. Nil disables notifications.
	OnConnectionChange func(bool)

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

// NewPoller creates a poller. It does not start polling.
func NewPoller(cfg PollerConfig) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	vitals := cfg.Vitals
	if vitals == nil {
		vitals = func() Vitals { return Vitals{} }
	}
	return &Poller{
		client:             cfg.Client,
		engine:             cfg.Engine,
		deviceID:           cfg.DeviceID,
		interval:           interval,
		vitals:             vitals,
		clock:              clock,
		log:                cfg.Logger,
		onConnectionChange: cfg.OnConnectionChange,
		kick:               make(chan struct{}, 1),
	}
}

// PushNow requests a push ahead of the next interval, so a local state
// change reaches the server without waiting out the cadence. Coalesces with
// any pending request; a no-op while disconnected.
func (p *Poller) PushNow() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Connected reports the connection flag.
func (p *Poller) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Start begins polling: one push immediately, then one per interval. A
// no-op when already running.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.connected {
		p.mu.Unlock()
		return
	}
	p.connected = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	if p.onConnectionChange != nil {
		p.onConnectionChange(true)
	}
	p.log.Info().Str("device_id", p.deviceID).Msg("sync started")

	go p.run(ctx, done)
}

// Stop halts the poll loop and waits for it to exit. Safe to call when
// already stopped, and safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.setConnected(false)
}

func (p *Poller) setConnected(connected bool) {
	p.mu.Lock()
	if p.connected == connected {
		p.mu.Unlock()
		return
	}
	p.connected = connected
	p.mu.Unlock()

	if p.onConnectionChange != nil {
		p.onConnectionChange(connected)
	}
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if !p.poll(ctx) {
		return
	}

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !p.poll(ctx) {
				return
			}
		case <-p.kick:
			if !p.poll(ctx) {
				return
			}
		}
	}
}

// poll performs one push/apply cycle. Returns false when the loop must
// stop. A failed push leaves local timer state untouched: only the
// connection flag changes.
func (p *Poller) poll(ctx context.Context) bool {
	resp, err := p.client.PushStatus(ctx, p.buildPush())
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.log.Warn().Err(err).Str("device_id", p.deviceID).Msg("status push failed")
		p.setConnected(false)
		return false
	}

	p.applyResponse(ctx, resp)
	return true
}

func (p *Poller) buildPush() *models.StatusPush {
	snap := p.engine.Snapshot()
	vitals := p.vitals()

	return &models.StatusPush{
		DeviceID:     p.deviceID,
		TableNumber:  fInt(snap.Settings.TableNumber),
		Mode:         fInt(int(snap.Settings.Mode)),
		T1Value:      fInt(snap.Settings.T1),
		T2Value:      fInt(snap.Settings.T2),
		CurrentTimer: fInt(snap.CurrentTimer),
		T1Active:     fBool(snap.T1Active),
		Running:      fBool(snap.Running),
		Paused:       fBool(snap.Paused),
		TimeExpired:  fBool(snap.Expired),
		Buzzer:       fBool(snap.Settings.BuzzerEnabled),
		BatteryLevel: fInt(vitals.BatteryLevel),
		Voltage:      fFloat(vitals.Voltage),
		WifiSignal:   fInt(vitals.WifiSignal),
		PlayersCount: fInt(snap.Settings.PlayersCount),
	}
}

// applyResponse feeds the drained command through the engine. Remote and
// local inputs share the engine's transitions, so a redelivered command is
// absorbed by the same idempotence rules as a double button press.
func (p *Poller) applyResponse(ctx context.Context, resp *models.StatusResponse) {
	if resp.SeatRequest != nil {
		p.log.Info().
			Str("device_id", p.deviceID).
			Ints("seats", resp.SeatRequest.OpenSeats).
			Msg("open seats announced for this table")
	}

	if resp.Command == nil {
		return
	}

	cmd, err := ParseCommand(*resp.Command)
	if err != nil {
		p.log.Warn().Err(err).Str("device_id", p.deviceID).Msg("discarding bad command")
		return
	}

	p.log.Info().Str("device_id", p.deviceID).Str("command", cmd.Name).Msg("applying remote command")

	switch cmd.Name {
	case "start":
		p.engine.Start()
	case "pause":
		p.engine.Pause()
	case "reset":
		p.engine.Reset()
	case "stop":
		p.engine.Stop()
	case "switch":
		p.engine.Switch()
	case "settings", "apply_settings":
		if resp.Settings == nil {
			p.log.Warn().Str("device_id", p.deviceID).Msg("settings command without payload")
			return
		}
		p.engine.ApplySettings(timer.Settings{
			T1:            resp.Settings.T1,
			T2:            resp.Settings.T2,
			Mode:          timer.Mode(resp.Settings.Mode),
			TableNumber:   resp.Settings.TableNumber,
			BuzzerEnabled: resp.Settings.Buzzer,
			PlayersCount:  resp.Settings.PlayersCount,
		})
	case "seat_open":
		// Seat data lives server-side, keyed by table. The command only
		// tells us to look.
		p.refreshSeatInfo(ctx)
	default:
		p.log.Warn().Str("device_id", p.deviceID).Str("command", cmd.Name).Msg("unknown command")
	}
}

func (p *Poller) refreshSeatInfo(ctx context.Context) {
	devices, err := p.client.FetchDevices(ctx)
	if err != nil {
		p.log.Warn().Err(err).Str("device_id", p.deviceID).Msg("seat info refresh failed")
		return
	}
	status, ok := devices[p.deviceID]
	if !ok || status.SeatInfo == nil {
		return
	}
	p.log.Info().
		Str("device_id", p.deviceID).
		Ints("seats", status.SeatInfo.OpenSeats).
		Msg("seat info refreshed")
}

func fInt(v int) *flexjson.Int {
	fv := flexjson.Int(v)
	return &fv
}

func fBool(v bool) *flexjson.Bool {
	fv := flexjson.Bool(v)
	return &fv
}

func fFloat(v float64) *flexjson.Float {
	fv := flexjson.Float(v)
	return &fv
}
