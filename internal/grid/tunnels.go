package grid

import "fmt"

// Encryption is the label reported with every telemetry sample.
const Encryption = "AES-256-GCM (MIL-SPEC)"

// Fixed throughput labels carried by each stats message.
const (
	PeakLabel = "842.1 GB/s"
	AvgLabel  = "512.4 GB/s"
)

// Tunnel is one encrypted VPN link shown on the dashboard.
type Tunnel struct {
	ID        string  `json:"id"`
	Protocol  string  `json:"protocol"`
	Status    string  `json:"status"`
	Bandwidth float64 `json:"bandwidth"`
	Latency   float64 `json:"latency"`
}

// DefaultTunnels returns the three links of the grid at boot.
func DefaultTunnels() []Tunnel {
	return []Tunnel{
		{ID: "TNL-ALPHA-01", Protocol: "WireGuard-X", Status: "ENCRYPTED", Latency: 2.1},
		{ID: "TNL-BRAVO-02", Protocol: "OpenVPN-MIL", Status: "ENCRYPTED", Latency: 4.5},
		{ID: "TNL-GHOST-09", Protocol: "Shadow-Tunnel", Status: "STEALTH", Latency: 1.2},
	}
}

// TelemetryPayload is the body of a TUNNEL_STATS event.
type TelemetryPayload struct {
	Throughput string   `json:"throughput"`
	Encryption string   `json:"encryption"`
	VPNs       []Tunnel `json:"vpns"`
	Peak       string   `json:"peak"`
	Avg        string   `json:"avg"`
}

// DPIPayload is the body of a DPI_LOG event.
type DPIPayload struct {
	Message string `json:"message"`
}

// FormatDPI renders a deep packet inspection line.
func FormatDPI(hostOctet, hex int) string {
	return fmt.Sprintf("[DPI_SEC] PKT_INSPECTED: SOURCE_IP: 192.168.1.%d -> HEX: 0x%X (VERIFIED)", hostOctet, hex)
}

// ThreatPayload is the body of a THREAT_LEVEL_CHANGED event.
type ThreatPayload struct {
	Level    string `json:"level"`
	Previous string `json:"previous,omitempty"`
	Vector   string `json:"vector,omitempty"`
	Origin   string `json:"origin,omitempty"`
}
