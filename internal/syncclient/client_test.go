package syncclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletimer/tabletimer/internal/syncclient"
)

func TestParseCommand_PlainTags(t *testing.T) {
	for _, raw := range []string{"start", "pause", "reset", "settings", "reset_seat_info"} {
		cmd, err := syncclient.ParseCommand(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, cmd.Name)
		assert.Nil(t, cmd.Seats)
	}
}

func TestParseCommand_SeatOpenWithInlineSeats(t *testing.T) {
	cmd, err := syncclient.ParseCommand("seat_open:1,3,7")
	require.NoError(t, err)
	assert.Equal(t, "seat_open", cmd.Name)
	assert.Equal(t, []int{1, 3, 7}, cmd.Seats)
}

func TestParseCommand_SeatOpenToleratesSpacing(t *testing.T) {
	cmd, err := syncclient.ParseCommand("seat_open: 2, 5,")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5}, cmd.Seats)
}

func TestParseCommand_RejectsGarbage(t *testing.T) {
	_, err := syncclient.ParseCommand("")
	assert.Error(t, err)

	_, err = syncclient.ParseCommand("start:now")
	assert.Error(t, err)

	_, err = syncclient.ParseCommand("seat_open:one,two")
	assert.Error(t, err)
}

func TestClient_PushStatusDecodesCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","command":"settings","settings":{"mode":2,"t1":45,"t2":60,"tableNumber":7,"buzzer":true}}`))
	}))
	defer server.Close()

	client := syncclient.NewClient(server.URL, nil, zerolog.Nop())

	resp, err := client.PushStatus(context.Background(), pushFor("esp32-001"))
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, resp.Command)
	assert.Equal(t, "settings", *resp.Command)
	require.NotNil(t, resp.Settings)
	assert.Equal(t, 45, resp.Settings.T1)
}

func TestClient_PushStatusRejectsNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := syncclient.NewClient(server.URL, nil, zerolog.Nop())

	_, err := client.PushStatus(context.Background(), pushFor("esp32-001"))
	assert.Error(t, err)
}

func TestClient_ServerInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/server-info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"tabletimer","version":"1.0.0","port":3000,"uptime_seconds":12}`))
	}))
	defer server.Close()

	client := syncclient.NewClient(server.URL, nil, zerolog.Nop())

	info, err := client.ServerInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tabletimer", info.Name)
	assert.Equal(t, 3000, info.Port)
}
