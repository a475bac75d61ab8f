// Package syncclient keeps a device unit in lockstep with the coordination
// server. Everything rides on the status push: the device reports, the
// server answers with at most one queued command, and a lost poll costs
// nothing because the next one carries the full state again.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tabletimer/tabletimer/internal/api/models"
	"github.com/tabletimer/tabletimer/internal/resilience"
)

// Client speaks the timer wire protocol to one coordination server.
type Client struct {
	baseURL string
	http    *resilience.Client
	log     zerolog.Logger
}

// NewClient creates a wire client for the server at baseURL. A nil
// httpClient gets the default resilient client.
func NewClient(baseURL string, httpClient *resilience.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("syncclient"))
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// PushStatus posts the device's status and returns the server's response,
// including any drained command.
func (c *Client) PushStatus(ctx context.Context, push *models.StatusPush) (*models.StatusResponse, error) {
	body, err := json.Marshal(push)
	if err != nil {
		return nil, fmt.Errorf("encoding status push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/status", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pushing status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pushing status: unexpected status %d", resp.StatusCode)
	}

	var out models.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}
	return &out, nil
}

// FetchDevices reads the full device map, the same view the dashboard gets.
func (c *Client) FetchDevices(ctx context.Context) (map[string]models.DeviceStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/timers", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building timers request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching timers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching timers: unexpected status %d", resp.StatusCode)
	}

	var out map[string]models.DeviceStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding timers response: %w", err)
	}
	return out, nil
}

// ServerInfo reads the server's identity block, used as a connection test.
func (c *Client) ServerInfo(ctx context.Context) (*models.ServerInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/server-info", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building server-info request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching server info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching server info: unexpected status %d", resp.StatusCode)
	}

	var out models.ServerInfo
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding server info: %w", err)
	}
	return &out, nil
}

// Command is a decoded remote command.
type Command struct {
	Name string

	// Seats is populated for the legacy "seat_open:<csv>" form.
	Seats []int
}

// ParseCommand decodes a command tag. The seat_open tag may carry its seat
// list inline, colon-separated, a form older firmware still emits.
func ParseCommand(raw string) (Command, error) {
	if raw == "" {
		return Command{}, fmt.Errorf("empty command")
	}

	name, rest, found := strings.Cut(raw, ":")
	if !found {
		return Command{Name: name}, nil
	}
	if name != "seat_open" {
		return Command{}, fmt.Errorf("unexpected payload in command %q", raw)
	}

	var seats []int
	for _, part := range strings.Split(rest, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		seat, err := strconv.Atoi(part)
		if err != nil {
			return Command{}, fmt.Errorf("parsing seat %q in command %q: %w", part, raw, err)
		}
		seats = append(seats, seat)
	}
	return Command{Name: name, Seats: seats}, nil
}
