// Package main provides a headless table timer unit. It runs the countdown
// engine locally and keeps it synced to the coordination service, the same
// way the hardware units do.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tabletimer/tabletimer/internal/discovery"
	"github.com/tabletimer/tabletimer/internal/syncclient"
	"github.com/tabletimer/tabletimer/internal/timer"
)

const (
	discoveryTimeout = 3 * time.Second
	reconnectDelay   = 5 * time.Second
)

func main() {
	_ = godotenv.Load()

	deviceID := os.Getenv("DEVICE_ID")
	if deviceID == "" {
		hostname, _ := os.Hostname()
		deviceID = "device-" + hostname
	}

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("device_id", deviceID).
		Logger()

	tableNumber := 1
	if raw := os.Getenv("TABLE_NUMBER"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatal().Str("value", raw).Msg("TABLE_NUMBER must be an integer")
		}
		tableNumber = v
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		addr, err := discovery.Probe(ctx, discovery.DefaultPort, discoveryTimeout, log)
		if err != nil {
			log.Fatal().Err(err).Msg("no SERVER_URL configured and discovery found no server")
		}
		serverURL = "http://" + addr
		log.Info().Str("server", serverURL).Msg("server discovered")
	}

	// The poller is assigned before anything drives the engine, so the
	// OnChange closure never sees it nil.
	var poller *syncclient.Poller
	engine := timer.NewEngine(timer.Config{
		Settings: timer.Settings{
			T1:            60,
			T2:            30,
			Mode:          timer.ModeDualAuto,
			TableNumber:   tableNumber,
			BuzzerEnabled: true,
			PlayersCount:  9,
		},
		Cues: logCue{log: log},
		OnChange: func(timer.Snapshot) {
			poller.PushNow()
		},
	})

	client := syncclient.NewClient(serverURL, nil, log)

	disconnected := make(chan struct{}, 1)
	poller = syncclient.NewPoller(syncclient.PollerConfig{
		Client:   client,
		Engine:   engine,
		DeviceID: deviceID,
		OnConnectionChange: func(connected bool) {
			if !connected {
				select {
				case disconnected <- struct{}{}:
				default:
				}
			}
		},
		Logger: log,
	})

	// The countdown runs locally whether or not the server is reachable.
	clock := clockwork.NewRealClock()
	go runCountdown(ctx, clock, engine)

	poller.Start()
	log.Info().Str("server", serverURL).Int("table", tableNumber).Msg("device running")

	for {
		select {
		case <-ctx.Done():
			poller.Stop()
			log.Info().Msg("device stopped")
			return
		case <-disconnected:
			log.Warn().Dur("retry_in", reconnectDelay).Msg("sync lost, reconnecting")
			select {
			case <-ctx.Done():
				poller.Stop()
				log.Info().Msg("device stopped")
				return
			case <-clock.After(reconnectDelay):
				poller.Start()
			}
		}
	}
}

// runCountdown drives the engine at one tick per second.
func runCountdown(ctx context.Context, clock clockwork.Clock, engine *timer.Engine) {
	ticker := clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			engine.Tick()
		}
	}
}

// logCue writes buzzer cues to the log in place of a piezo.
type logCue struct {
	log zerolog.Logger
}

func (c logCue) Tick(remaining int) {
	c.log.Info().Int("remaining", remaining).Msg("buzzer tick")
}

func (c logCue) Paused() {
	c.log.Info().Msg("buzzer pause")
}

func (c logCue) Expired() {
	c.log.Info().Msg("buzzer expired")
}
