package registry_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/registry"
	"github.com/tabletimer/tabletimer/pkg/flexjson"
)

func newTestService(t *testing.T) (*registry.Service, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	svc := registry.NewService(registry.Config{
		Clock:  clock,
		Logger: zerolog.Nop(),
	})
	return svc, clock
}

func fint(v int) *flexjson.Int {
	fv := flexjson.Int(v)
	return &fv
}

func fbool(v bool) *flexjson.Bool {
	fv := flexjson.Bool(v)
	return &fv
}

func ffloat(v float64) *flexjson.Float {
	fv := flexjson.Float(v)
	return &fv
}

func fullPush(deviceID string, table int) *models.StatusPush {
	return &models.StatusPush{
		DeviceID:     deviceID,
		TableNumber:  fint(table),
		Mode:         fint(1),
		T1Value:      fint(20),
		T2Value:      fint(30),
		CurrentTimer: fint(20),
		T1Active:     fbool(true),
		Running:      fbool(false),
		Paused:       fbool(false),
		TimeExpired:  fbool(false),
		Buzzer:       fbool(true),
		BatteryLevel: fint(87),
		Voltage:      ffloat(3.9),
		PlayersCount: fint(9),
	}
}

func TestPush_RegistersDeviceAndStampsServerFields(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	resp, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Command)
	assert.Nil(t, resp.SeatRequest)

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	require.Contains(t, devices, "esp32-001")

	d := devices["esp32-001"]
	assert.Equal(t, 4, d.TableNumber)
	assert.Equal(t, "10.0.0.17", d.IPAddress)
	assert.Equal(t, clock.Now().Unix(), d.LastUpdate.Time().Unix())
	assert.True(t, d.Online)
}

func TestPush_RejectsEmptyDeviceID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Push(context.Background(), &models.StatusPush{}, "10.0.0.1")
	assert.ErrorIs(t, err, registry.ErrDeviceNotFound)
}

func TestPush_MergesInsteadOfReplacing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)

	// A later partial push carries only the countdown fields. Everything
	// else must keep its stored value.
	partial := &models.StatusPush{
		DeviceID:     "esp32-001",
		CurrentTimer: fint(14),
		Running:      fbool(true),
	}
	_, err = svc.Push(ctx, partial, "10.0.0.17")
	require.NoError(t, err)

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	d := devices["esp32-001"]
	assert.Equal(t, 14, d.CurrentTimer)
	assert.True(t, d.Running)
	assert.Equal(t, 4, d.TableNumber)
	assert.Equal(t, 20, d.T1Value)
	assert.Equal(t, 87, d.BatteryLevel)
}

func TestIssueCommand_UnknownDeviceFails(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.IssueCommand(context.Background(), "ghost", "start")
	assert.ErrorIs(t, err, registry.ErrDeviceNotFound)
}

func TestIssueCommand_DeliveredExactlyOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)

	queued, err := svc.IssueCommand(ctx, "esp32-001", "start")
	require.NoError(t, err)
	assert.True(t, queued)

	resp, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	require.NotNil(t, resp.Command)
	assert.Equal(t, "start", *resp.Command)

	// The slot was emptied on delivery.
	resp, err = svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	assert.Nil(t, resp.Command)
}

func TestIssueCommand_LastWriteWins(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)

	_, err = svc.IssueCommand(ctx, "esp32-001", "start")
	require.NoError(t, err)
	_, err = svc.IssueCommand(ctx, "esp32-001", "pause")
	require.NoError(t, err)

	resp, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	require.NotNil(t, resp.Command)
	assert.Equal(t, "pause", *resp.Command)

	resp, err = svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	assert.Nil(t, resp.Command)
}

func TestQueueSettings_DeliveredWithPayload(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)

	req := &models.SettingsRequest{
		Mode:        flexjson.Int(2),
		T1:          flexjson.Int(45),
		T2:          flexjson.Int(60),
		TableNumber: flexjson.Int(7),
		Buzzer:      flexjson.Bool(false),
	}
	require.NoError(t, svc.QueueSettings(ctx, "esp32-001", req))

	resp, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	require.NotNil(t, resp.Command)
	assert.Equal(t, "settings", *resp.Command)
	require.NotNil(t, resp.Settings)
	assert.Equal(t, 2, resp.Settings.Mode)
	assert.Equal(t, 45, resp.Settings.T1)
	assert.Equal(t, 60, resp.Settings.T2)
	assert.Equal(t, 7, resp.Settings.TableNumber)
	assert.False(t, resp.Settings.Buzzer)
}

func TestQueueSettings_UnknownDeviceFails(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.QueueSettings(context.Background(), "ghost", &models.SettingsRequest{})
	assert.ErrorIs(t, err, registry.ErrDeviceNotFound)
}

func TestRequestSeats_UnknownTableFails(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RequestSeats(context.Background(), 9, []int{1, 2}, "")
	assert.ErrorIs(t, err, registry.ErrTableNotFound)
}

func TestRequestSeats_MergesWithoutDuplicates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)

	info, err := svc.RequestSeats(ctx, 4, []int{3, 7}, "")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7}, info.OpenSeats)
	assert.True(t, info.NeedsWebNotification)

	info, err = svc.RequestSeats(ctx, 4, []int{7, 9}, "")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 7, 9}, info.OpenSeats)
}

func TestRequestSeats_DrainedOnceOnPush(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)

	_, err = svc.RequestSeats(ctx, 4, []int{3, 7}, "")
	require.NoError(t, err)

	resp, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	require.NotNil(t, resp.SeatRequest)
	assert.Equal(t, []int{3, 7}, resp.SeatRequest.OpenSeats)

	// A second push without a new announcement carries nothing.
	resp, err = svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	assert.Nil(t, resp.SeatRequest)
}

func TestIssueCommand_ResetSeatInfoAppliesImmediately(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	_, err = svc.RequestSeats(ctx, 4, []int{3, 7}, "")
	require.NoError(t, err)

	queued, err := svc.IssueCommand(ctx, "esp32-001", "reset_seat_info")
	require.NoError(t, err)
	assert.False(t, queued)

	// The seat data is gone and nothing was placed in the command slot.
	resp, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	assert.Nil(t, resp.SeatRequest)
	assert.Nil(t, resp.Command)

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.Nil(t, devices["esp32-001"].SeatInfo)
}

func TestAcknowledgeSeat_AlwaysSucceeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.AcknowledgeSeat(ctx, "never-seen"))

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	_, err = svc.RequestSeats(ctx, 4, []int{3}, "")
	require.NoError(t, err)

	require.NoError(t, svc.AcknowledgeSeat(ctx, "esp32-001"))

	// Acknowledged seat data stays on the record but no longer flags.
	resp, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	assert.Nil(t, resp.SeatRequest)

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	require.NotNil(t, devices["esp32-001"].SeatInfo)
	assert.False(t, devices["esp32-001"].SeatInfo.NeedsWebNotification)
}

func TestFloorman_LifecycleAndExpiry(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)

	require.NoError(t, svc.RequestFloorman(ctx, 4))

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.True(t, devices["esp32-001"].FloormanActive)
	require.NotNil(t, devices["esp32-001"].FloormanCallTimestamp)

	// Five minutes later the call counts as abandoned.
	clock.Advance(5 * time.Minute)
	devices, err = svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.False(t, devices["esp32-001"].FloormanActive)

	err = svc.ClearFloorman(ctx, 4)
	assert.ErrorIs(t, err, registry.ErrNoActiveCall)
}

func TestClearFloorman_CompletesActiveCall(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	require.NoError(t, svc.RequestFloorman(ctx, 4))

	require.NoError(t, svc.ClearFloorman(ctx, 4))

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.False(t, devices["esp32-001"].FloormanActive)
	assert.Nil(t, devices["esp32-001"].FloormanCallTimestamp)
}

func TestRequestFloorman_UnknownTableFails(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.RequestFloorman(context.Background(), 99)
	assert.ErrorIs(t, err, registry.ErrTableNotFound)
}

func TestListDevices_OnlineRecomputedPerRead(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.True(t, devices["esp32-001"].Online)

	clock.Advance(4 * time.Minute)
	devices, err = svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.True(t, devices["esp32-001"].Online)

	clock.Advance(time.Minute)
	devices, err = svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.False(t, devices["esp32-001"].Online)

	// A fresh push brings it back.
	_, err = svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	devices, err = svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.True(t, devices["esp32-001"].Online)
}

func TestClearDevices_DropsEverything(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("esp32-001", 4), "10.0.0.17")
	require.NoError(t, err)
	_, err = svc.Push(ctx, fullPush("esp32-002", 5), "10.0.0.18")
	require.NoError(t, err)

	count, err := svc.ClearDevices(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestDeviceByTable_PrefersMostRecentClaim(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	_, err := svc.Push(ctx, fullPush("old-unit", 4), "10.0.0.17")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.Push(ctx, fullPush("new-unit", 4), "10.0.0.18")
	require.NoError(t, err)

	require.NoError(t, svc.RequestFloorman(ctx, 4))

	devices, err := svc.ListDevices(ctx)
	require.NoError(t, err)
	assert.True(t, devices["new-unit"].FloormanActive)
	assert.False(t, devices["old-unit"].FloormanActive)
}
