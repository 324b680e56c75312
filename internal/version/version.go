// ABOUTME: Build and product identification
// ABOUTME: Reported in logs, mDNS service type and TXT records and the server TUI
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

const (
	// Product names the binaries and forms the DNS-SD service label, so it
	// must stay a short lowercase token.
	Product      = "vortexstream"
	Manufacturer = "Multivox"
)

// String returns "product version" for startup logs.
func String() string {
	return Product + " " + Version
}
