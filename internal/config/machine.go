package config

import (
	"fmt"
	"net"
	"strings"
)

// MachineID returns a stable identifier for this machine: the hardware
// address of the first up, non-loopback network interface, formatted as
// colon-separated uppercase hex pairs. The same machine must produce the
// same identifier across restarts so the server can match directories to
// their owning host.
func MachineID() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("listing network interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}

		return FormatMAC(iface.HardwareAddr.String()), nil
	}

	return "", fmt.Errorf("no usable network interface found for machine identity")
}

// FormatMAC normalizes a hardware address into colon-separated uppercase
// hex pairs. Accepts the common separator styles (colons, hyphens, dots)
// and returns the input unchanged when it does not look like a 48-bit
// address.
func FormatMAC(addr string) string {
	hex := strings.NewReplacer(":", "", "-", "", ".", "").Replace(addr)
	if len(hex) != 12 {
		return addr
	}

	pairs := make([]string, 0, 6)
	for i := 0; i < len(hex); i += 2 {
		pairs = append(pairs, strings.ToUpper(hex[i:i+2]))
	}

	return strings.Join(pairs, ":")
}
