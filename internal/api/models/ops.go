package models

// HealthStatus represents the health status of the service.
type HealthStatus string

const (
	HealthStatusOK   HealthStatus = "OK"
	HealthStatusFail HealthStatus = "FAIL"
)

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ServerInfo is returned by GET /api/server-info. Discovery probes and the
// dashboard's connection test read it.
type ServerInfo struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Port          int    `json:"port"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}
