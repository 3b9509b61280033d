package devices

import (
	"time"

	"github.com/HerbHall/netvoucher/internal/routeros"
)

// Device is one registered NAS device. Password is plaintext in memory only;
// at rest it is sealed with the module's encryption key and it never appears
// in API responses.
type Device struct {
	ID               string                    `json:"id"`
	Name             string                    `json:"name"`
	Host             string                    `json:"host"`
	Port             int                       `json:"port,omitempty"`
	Username         string                    `json:"username"`
	Password         string                    `json:"-"`
	Version          routeros.Version          `json:"version"`
	UseTLS           bool                      `json:"use_tls"`
	Timeout          time.Duration             `json:"-"`
	DefaultProfile   string                    `json:"default_profile,omitempty"`
	HotspotInterface string                    `json:"hotspot_interface,omitempty"`
	Active           bool                      `json:"active"`
	ConnectionStatus routeros.ConnectionStatus `json:"connection_status"`
	LastConnected    *time.Time                `json:"last_connected,omitempty"`
	ErrorMessage     string                    `json:"error_message,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// ClientConfig maps the stored device onto a connection config.
func (d *Device) ClientConfig() routeros.DeviceConfig {
	return routeros.DeviceConfig{
		Host:             d.Host,
		Port:             d.Port,
		Username:         d.Username,
		Password:         d.Password,
		Version:          d.Version,
		UseTLS:           d.UseTLS,
		Timeout:          d.Timeout,
		DefaultProfile:   d.DefaultProfile,
		HotspotInterface: d.HotspotInterface,
	}
}

// PingResult is the outcome of an ICMP diagnostic probe.
type PingResult struct {
	Reachable  bool          `json:"reachable"`
	PacketLoss float64       `json:"packet_loss"`
	AvgRTT     time.Duration `json:"avg_rtt"`
}
