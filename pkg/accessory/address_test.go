package accessory

import (
	"strings"
	"testing"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AA:BB:CC:DD:EE:FF", "aa-bb-cc-dd-ee-ff"},
		{"aa-bb-cc-dd-ee-ff", "aa-bb-cc-dd-ee-ff"},
		{"Aa:bB-cc:DD-ee:ff", "aa-bb-cc-dd-ee-ff"},
		{" 00:11:22:33:44:55 ", "00-11-22-33-44-55"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := NormalizeAddress(tt.in)
			if got != tt.want {
				t.Fatalf("NormalizeAddress(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if again := NormalizeAddress(got); again != got {
				t.Fatalf("not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestColonAddressRoundTrip(t *testing.T) {
	for _, in := range []string{"AA:BB:CC:DD:EE:FF", "aa:bb:cc:dd:ee:ff", "aa-bb-cc-dd-ee-ff"} {
		got := ColonAddress(NormalizeAddress(in))
		if !strings.EqualFold(got, "AA:BB:CC:DD:EE:FF") {
			t.Fatalf("round trip of %q gave %q", in, got)
		}
	}
}
