package domain

import (
	"fmt"
	"strings"
)

// Validate checks an entry read back from a snapshot. Only presence is
// checked: address formats are whatever the backend accepted.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.IPAddress) == "" {
		return fmt.Errorf("IP address must be set")
	}
	if strings.TrimSpace(e.MACAddress) == "" {
		return fmt.Errorf("MAC address must be set for IP %s", e.IPAddress)
	}
	return nil
}
