// ABOUTME: Build identity constants surfaced in logs and the stats dashboard
package version

const (
	Version      = "0.1.0"
	Product      = "slaveplay"
	Manufacturer = "nyquist-audio"
)
