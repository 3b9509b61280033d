package routeros

import (
	"net"
	"strconv"
	"time"
)

// Version selects the device firmware generation and with it the connect
// strategy: v6 speaks the binary API login only, v7 additionally exposes a
// REST endpoint used as a readiness probe.
type Version string

const (
	VersionV6 Version = "v6"
	VersionV7 Version = "v7"
)

// Timeout bounds for device operations. Values outside the range are clamped.
const (
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 60 * time.Second
	DefaultTimeout = 10 * time.Second
)

// Default API ports for plain and TLS connections.
const (
	defaultPort    = 8728
	defaultTLSPort = 8729
)

// DeviceConfig describes one NAS device. It is immutable once a session is
// opened; callers pass it by value into client construction.
type DeviceConfig struct {
	Host             string
	Port             int
	Username         string
	Password         string
	Version          Version
	UseTLS           bool
	Timeout          time.Duration
	DefaultProfile   string
	HotspotInterface string
}

// normalized returns a copy with the port defaulted and the timeout clamped
// into [MinTimeout, MaxTimeout].
func (c DeviceConfig) normalized() DeviceConfig {
	if c.Port == 0 {
		if c.UseTLS {
			c.Port = defaultTLSPort
		} else {
			c.Port = defaultPort
		}
	}
	switch {
	case c.Timeout == 0:
		c.Timeout = DefaultTimeout
	case c.Timeout < MinTimeout:
		c.Timeout = MinTimeout
	case c.Timeout > MaxTimeout:
		c.Timeout = MaxTimeout
	}
	if c.Version == "" {
		c.Version = VersionV6
	}
	return c
}

func (c DeviceConfig) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ConnectionStatus reflects the outcome of the most recent device operation.
type ConnectionStatus string

const (
	StatusUnknown   ConnectionStatus = "unknown"
	StatusConnected ConnectionStatus = "connected"
	StatusFailed    ConnectionStatus = "failed"
)

// ServiceProfile is a named rate-limit/priority bundle defined on the device.
// Profiles are sourced from the device and never created by this package.
type ServiceProfile struct {
	Name      string `json:"name"`
	RateLimit string `json:"rate_limit,omitempty"`
	Priority  int    `json:"priority,omitempty"`
	Parent    string `json:"parent,omitempty"` // profile name, lookup reference only
	Comment   string `json:"comment,omitempty"`
	Default   bool   `json:"default,omitempty"`
}

// VoucherSpec describes a hotspot user to create. TimeLimit uses the
// device-native duration syntax ("1h30m"); DataLimit is a human string
// ("500MB", "1.5GB") parsed into bytes before hitting the wire.
type VoucherSpec struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Profile   string `json:"profile"`
	TimeLimit string `json:"time_limit,omitempty"`
	DataLimit string `json:"data_limit,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// VoucherAccount is a hotspot user as confirmed by the device.
type VoucherAccount struct {
	Username       string `json:"username"`
	Password       string `json:"password,omitempty"`
	Profile        string `json:"profile"`
	TimeLimit      string `json:"time_limit,omitempty"`
	DataLimitBytes int64  `json:"data_limit_bytes,omitempty"`
	BytesIn        int64  `json:"bytes_in"`
	BytesOut       int64  `json:"bytes_out"`
	Comment        string `json:"comment,omitempty"`
	Disabled       bool   `json:"disabled"`
}

// ActiveSession is a read-only telemetry snapshot of one logged-in hotspot
// user. It has no identity across fetches; every query re-reads the device.
type ActiveSession struct {
	Username   string        `json:"username"`
	Address    string        `json:"address,omitempty"`
	Uptime     time.Duration `json:"uptime"`
	BytesIn    int64         `json:"bytes_in"`
	BytesOut   int64         `json:"bytes_out"`
	PacketsIn  int64         `json:"packets_in"`
	PacketsOut int64         `json:"packets_out"`
}

// UserStatistics merges the stored account with its live session, if any.
type UserStatistics struct {
	Account    *VoucherAccount `json:"account"`
	Active     *ActiveSession  `json:"active,omitempty"`
	IsActive   bool            `json:"is_active"`
	TotalBytes int64           `json:"total_bytes"`
}

// SystemInfo is the device self-description returned by TestConnection's
// introspection commands.
type SystemInfo struct {
	Identity     string `json:"identity"`
	BoardName    string `json:"board_name,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	UptimeString string `json:"uptime,omitempty"`
}
