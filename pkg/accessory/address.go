package accessory

import "strings"

// NormalizeAddress lowercases addr and replaces colons with dashes, so
// "AA:BB:CC:DD:EE:FF" and "aa-bb-cc-dd-ee-ff" identify the same device.
func NormalizeAddress(addr string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(addr)), ":", "-")
}

// ColonAddress converts a normalized address back to the colon separated
// form used by system tools.
func ColonAddress(addr string) string {
	return strings.ReplaceAll(NormalizeAddress(addr), "-", ":")
}
