package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/notify"
	"github.com/tabletimer/tabletimer/pkg/flexjson"
)

// ErrNoActiveCall is returned when clearing a floorman call that is not
// open (or has already gone stale).
var ErrNoActiveCall = errors.New("no active floorman call")

// Service provides the coordination operations on top of the device
// registry: status pushes, command queueing and table-keyed requests.
type Service struct {
	repo    Repository
	tracker *notify.Tracker
	clock   clockwork.Clock
	log     zerolog.Logger
}

// Config holds configuration for creating a Service.
type Config struct {
	Repo    Repository
	Tracker *notify.Tracker
	Clock   clockwork.Clock
	Logger  zerolog.Logger
}

// NewService creates a coordination service. Nil fields get in-memory and
// real-clock defaults.
func NewService(cfg Config) *Service {
	repo := cfg.Repo
	if repo == nil {
		repo = NewInMemoryRepository()
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = notify.NewTracker()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		repo:    repo,
		tracker: tracker,
		clock:   clock,
		log:     cfg.Logger,
	}
}

// Push merges a device's status report and returns the drained command slot
// and any open-seat data flagged for the device. remoteAddr is the peer
// address of the HTTP request; the device's own claim is ignored.
func (s *Service) Push(ctx context.Context, push *models.StatusPush, remoteAddr string) (*models.StatusResponse, error) {
	if push.DeviceID == "" {
		return nil, fmt.Errorf("%w: empty device id", ErrDeviceNotFound)
	}

	update := toStatusUpdate(push)
	update.IPAddress = remoteAddr
	update.ReceivedAt = s.clock.Now()

	merged, err := s.repo.Merge(ctx, update)
	if err != nil {
		return nil, fmt.Errorf("merging status for %s: %w", push.DeviceID, err)
	}

	resp := &models.StatusResponse{Status: "ok"}

	cmd, err := s.repo.TakeCommand(ctx, push.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("draining command for %s: %w", push.DeviceID, err)
	}
	if cmd != nil {
		name := cmd.Name
		resp.Command = &name
		if cmd.Settings != nil {
			resp.Settings = toAPISettings(cmd.Settings)
		}
		s.log.Info().
			Str("device_id", push.DeviceID).
			Str("command", cmd.Name).
			Msg("command delivered")
	}

	seat, err := s.repo.TakeSeatNotification(ctx, push.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("draining seat notification for %s: %w", push.DeviceID, err)
	}
	if seat != nil {
		resp.SeatRequest = toAPISeatInfo(seat)
	}

	s.log.Debug().
		Str("device_id", push.DeviceID).
		Int("table", merged.TableNumber).
		Int("current_timer", merged.CurrentTimer).
		Bool("running", merged.Running).
		Msg("status push")

	return resp, nil
}

// ListDevices returns the dashboard view of every known device, keyed by
// device id. Online and floorman-active flags are computed against the
// current clock on each call. New seat and floorman conditions are surfaced
// to the operator log exactly once per occurrence.
func (s *Service) ListDevices(ctx context.Context) (map[string]models.DeviceStatus, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	now := s.clock.Now()
	out := make(map[string]models.DeviceStatus, len(records))
	for _, record := range records {
		s.surfaceAlerts(record, now)
		out[record.DeviceID] = toAPIStatus(record, now)
	}
	return out, nil
}

// surfaceAlerts logs seat and floorman conditions the operator has not seen
// yet. The dedup tracker suppresses repeats of the same occurrence; the
// staleness windows keep expired conditions out entirely.
func (s *Service) surfaceAlerts(record *DeviceStatus, now time.Time) {
	if record.SeatInfo != nil && len(record.SeatInfo.OpenSeats) > 0 {
		payload := seatsKey(record.SeatInfo.OpenSeats)
		if s.tracker.ShouldNotify(record.DeviceID, notify.KindSeat, payload) {
			s.log.Info().
				Str("device_id", record.DeviceID).
				Int("table", record.TableNumber).
				Str("seats", payload).
				Msg("open seats announced")
		}
	}

	if record.FloormanActive(now) {
		payload := strconv.FormatInt(record.FloormanCalledAt.UnixMilli(), 10)
		if s.tracker.ShouldNotify(record.DeviceID, notify.KindFloorman, payload) {
			s.log.Info().
				Str("device_id", record.DeviceID).
				Int("table", record.TableNumber).
				Msg("floorman called")
		}
	}
}

// ClearDevices drops every device record and pending command.
func (s *Service) ClearDevices(ctx context.Context) (int, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing devices: %w", err)
	}
	count, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("clearing devices: %w", err)
	}
	for _, record := range records {
		s.tracker.ClearDevice(record.DeviceID)
	}
	s.log.Info().Int("cleared", count).Msg("registry cleared")
	return count, nil
}

// QueueSettings queues a settings change for the device, overwriting any
// pending command.
func (s *Service) QueueSettings(ctx context.Context, deviceID string, req *models.SettingsRequest) error {
	cmd := PendingCommand{
		Name: CommandSettings,
		Settings: &SettingsPayload{
			Mode:         int(req.Mode),
			T1:           int(req.T1),
			T2:           int(req.T2),
			TableNumber:  int(req.TableNumber),
			Buzzer:       bool(req.Buzzer),
			PlayersCount: int(req.PlayersCount),
		},
		IssuedAt: s.clock.Now(),
	}
	if err := s.repo.QueueCommand(ctx, deviceID, cmd); err != nil {
		return fmt.Errorf("queueing settings for %s: %w", deviceID, err)
	}
	s.log.Info().Str("device_id", deviceID).Msg("settings queued")
	return nil
}

// IssueCommand handles an operator command for a device. reset_seat_info
// and clear_floorman take effect immediately; everything else is queued
// last-write-wins for the device's next poll. Returns whether the command
// was queued (as opposed to applied immediately).
func (s *Service) IssueCommand(ctx context.Context, deviceID, command string) (bool, error) {
	if _, err := s.repo.Get(ctx, deviceID); err != nil {
		return false, err
	}

	switch command {
	case CommandResetSeatInfo:
		if err := s.repo.ClearSeatInfo(ctx, deviceID); err != nil {
			return false, fmt.Errorf("clearing seat info for %s: %w", deviceID, err)
		}
		s.tracker.Clear(deviceID, notify.KindSeat)
		s.log.Info().Str("device_id", deviceID).Msg("seat info reset")
		return false, nil

	case CommandClearFloorman:
		if err := s.repo.SetFloorman(ctx, deviceID, time.Time{}); err != nil {
			return false, fmt.Errorf("clearing floorman for %s: %w", deviceID, err)
		}
		s.tracker.Clear(deviceID, notify.KindFloorman)
		s.log.Info().Str("device_id", deviceID).Msg("floorman call cleared")
		return false, nil

	default:
		cmd := PendingCommand{Name: command, IssuedAt: s.clock.Now()}
		if err := s.repo.QueueCommand(ctx, deviceID, cmd); err != nil {
			return false, fmt.Errorf("queueing %q for %s: %w", command, deviceID, err)
		}
		s.log.Info().Str("device_id", deviceID).Str("command", command).Msg("command queued")
		return true, nil
	}
}

// RequestSeats announces open seats for a table. The target device is
// resolved by scanning current table claims; seats are unioned into any
// existing announcement and the web notification flag is raised if it is
// not already.
func (s *Service) RequestSeats(ctx context.Context, tableNumber int, seats []int, action string) (*models.SeatInfo, error) {
	record, err := s.deviceByTable(ctx, tableNumber)
	if err != nil {
		return nil, err
	}

	info, err := s.repo.MergeSeats(ctx, record.DeviceID, seats, action, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("merging seats for table %d: %w", tableNumber, err)
	}

	s.log.Info().
		Str("device_id", record.DeviceID).
		Int("table", tableNumber).
		Ints("seats", seats).
		Msg("seat request")

	return toAPISeatInfo(info), nil
}

// AcknowledgeSeat lowers the device's web notification flag. Always
// succeeds, even for devices the registry has never seen.
func (s *Service) AcknowledgeSeat(ctx context.Context, deviceID string) error {
	return s.repo.ClearSeatNotification(ctx, deviceID)
}

// RequestFloorman opens a floorman call for a table. A repeated call while
// one is open just refreshes the timestamp.
func (s *Service) RequestFloorman(ctx context.Context, tableNumber int) error {
	record, err := s.deviceByTable(ctx, tableNumber)
	if err != nil {
		return err
	}
	if err := s.repo.SetFloorman(ctx, record.DeviceID, s.clock.Now()); err != nil {
		return fmt.Errorf("setting floorman for table %d: %w", tableNumber, err)
	}
	s.log.Info().Int("table", tableNumber).Str("device_id", record.DeviceID).Msg("floorman requested")
	return nil
}

// ClearFloorman closes a table's floorman call. ErrNoActiveCall when the
// table has no unexpired call open.
func (s *Service) ClearFloorman(ctx context.Context, tableNumber int) error {
	record, err := s.deviceByTable(ctx, tableNumber)
	if err != nil {
		return err
	}
	if !record.FloormanActive(s.clock.Now()) {
		return ErrNoActiveCall
	}
	if err := s.repo.SetFloorman(ctx, record.DeviceID, time.Time{}); err != nil {
		return fmt.Errorf("clearing floorman for table %d: %w", tableNumber, err)
	}
	s.tracker.Clear(record.DeviceID, notify.KindFloorman)
	s.log.Info().Int("table", tableNumber).Msg("floorman call completed")
	return nil
}

// MarkBarRequested stamps the device record behind a table with the time of
// a bar service request. Returns the resolved device id.
func (s *Service) MarkBarRequested(ctx context.Context, tableNumber int) (string, error) {
	record, err := s.deviceByTable(ctx, tableNumber)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetBarRequested(ctx, record.DeviceID, s.clock.Now()); err != nil {
		return "", fmt.Errorf("marking bar request for table %d: %w", tableNumber, err)
	}
	return record.DeviceID, nil
}

// Now exposes the service clock so callers share its notion of time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// deviceByTable resolves a table number to the device currently claiming
// it. With multiple claimants the most recently updated wins. There is no
// durable table mailbox: no live claim means the request fails.
func (s *Service) deviceByTable(ctx context.Context, tableNumber int) (*DeviceStatus, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}

	var match *DeviceStatus
	for _, record := range records {
		if record.TableNumber != tableNumber {
			continue
		}
		if match == nil || record.LastUpdate.After(match.LastUpdate) {
			match = record
		}
	}
	if match == nil {
		return nil, fmt.Errorf("table %d: %w", tableNumber, ErrTableNotFound)
	}
	return match, nil
}

func seatsKey(seats []int) string {
	sorted := append([]int(nil), seats...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, seat := range sorted {
		parts[i] = strconv.Itoa(seat)
	}
	return strings.Join(parts, ",")
}

func toStatusUpdate(push *models.StatusPush) StatusUpdate {
	update := StatusUpdate{DeviceID: push.DeviceID}
	update.TableNumber = intPtr(push.TableNumber)
	update.Mode = intPtr(push.Mode)
	update.T1Value = intPtr(push.T1Value)
	update.T2Value = intPtr(push.T2Value)
	update.CurrentTimer = intPtr(push.CurrentTimer)
	update.T1Active = boolPtr(push.T1Active)
	update.Running = boolPtr(push.Running)
	update.Paused = boolPtr(push.Paused)
	update.TimeExpired = boolPtr(push.TimeExpired)
	update.Buzzer = boolPtr(push.Buzzer)
	update.BatteryLevel = intPtr(push.BatteryLevel)
	update.Voltage = floatPtr(push.Voltage)
	update.WifiSignal = intPtr(push.WifiSignal)
	update.PlayersCount = intPtr(push.PlayersCount)
	return update
}

func toAPIStatus(record *DeviceStatus, now time.Time) models.DeviceStatus {
	status := models.DeviceStatus{
		DeviceID:       record.DeviceID,
		TableNumber:    record.TableNumber,
		Mode:           record.Mode,
		T1Value:        record.T1Value,
		T2Value:        record.T2Value,
		CurrentTimer:   record.CurrentTimer,
		T1Active:       record.T1Active,
		Running:        record.Running,
		Paused:         record.Paused,
		TimeExpired:    record.TimeExpired,
		Buzzer:         record.Buzzer,
		BatteryLevel:   record.BatteryLevel,
		Voltage:        record.Voltage,
		WifiSignal:     record.WifiSignal,
		PlayersCount:   record.PlayersCount,
		IPAddress:      record.IPAddress,
		LastUpdate:     models.Timestamp(record.LastUpdate),
		Online:         record.Online(now),
		SeatInfo:       toAPISeatInfo(record.SeatInfo),
		FloormanActive: record.FloormanActive(now),
	}
	if !record.FloormanCalledAt.IsZero() {
		ts := models.Millis(record.FloormanCalledAt)
		status.FloormanCallTimestamp = &ts
	}
	if !record.BarRequestedAt.IsZero() {
		ts := models.Millis(record.BarRequestedAt)
		status.BarServiceTimestamp = &ts
	}
	return status
}

func toAPISeatInfo(info *SeatInfo) *models.SeatInfo {
	if info == nil {
		return nil
	}
	return &models.SeatInfo{
		OpenSeats:            append([]int(nil), info.OpenSeats...),
		Action:               info.Action,
		Timestamp:            models.Millis(info.UpdatedAt),
		NeedsWebNotification: info.NeedsNotification,
	}
}

func toAPISettings(s *SettingsPayload) *models.CommandSettings {
	return &models.CommandSettings{
		Mode:         s.Mode,
		T1:           s.T1,
		T2:           s.T2,
		TableNumber:  s.TableNumber,
		Buzzer:       s.Buzzer,
		PlayersCount: s.PlayersCount,
	}
}

func intPtr(v *flexjson.Int) *int {
	if v == nil {
		return nil
	}
	value := int(*v)
	return &value
}

func boolPtr(v *flexjson.Bool) *bool {
	if v == nil {
		return nil
	}
	value := bool(*v)
	return &value
}

func floatPtr(v *flexjson.Float) *float64 {
	if v == nil {
		return nil
	}
	value := float64(*v)
	return &value
}
