package target

import "testing"

func TestCapability(t *testing.T) {
	cases := []struct {
		triple string
		want   Capability
	}{
		{"thumbv7m-none-eabi", Thumbv7m},
		{"thumbv6m-none-eabi", Thumbv6m},
		{"armv7em-none-eabihf", Thumbv7m},
		{"x86_64-unknown-linux-gnu", Other},
		{"aarch64-apple-darwin", Other},
		{"", Other},
	}
	for _, c := range cases {
		got := Parse(c.triple).Capability()
		if got != c.want {
			t.Errorf("Parse(%q).Capability() = %v, want %v", c.triple, got, c.want)
		}
	}
}

func TestParseFields(t *testing.T) {
	tr := Parse("thumbv7m-none-eabi")
	if tr.Arch != "thumbv7m" || tr.Vendor != "none" || tr.OS != "eabi" {
		t.Errorf("Parse() = %+v", tr)
	}
}
