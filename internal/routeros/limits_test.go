package routeros

import (
	"errors"
	"testing"
)

func TestParseDataLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"   ", 0, false},
		{"0B", 0, false},
		{"512B", 512, false},
		{"1KB", 1024, false},
		{"500MB", 500 * 1024 * 1024, false},
		{"1GB", 1 << 30, false},
		{"2TB", 2 << 40, false},
		{"1.5GB", 1610612736, false},
		{"0.5MB", 524288, false},
		{"500mb", 500 * 1024 * 1024, false},
		{"500 MB", 500 * 1024 * 1024, false},
		{" 1.5 gb ", 1610612736, false},
		{"MB", 0, true},
		{"512", 0, true}, // bare number: unit is mandatory
		{"0", 0, true},
		{"abc", 0, true},
		{"500XB", 0, true},
		{"-5MB", 0, true},
		{"1..5GB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDataLimit(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDataLimit(%q) = %d, want error", tt.in, got)
				}
				if !errors.Is(err, ErrInvalidDataLimit) {
					t.Errorf("error %v does not wrap ErrInvalidDataLimit", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataLimit(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDataLimit(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0B"},
		{512, "512B"},
		{1024, "1KB"},
		{500 * 1024 * 1024, "500MB"},
		{1610612736, "1.5GB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestParseDeviceUptime(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"45s", 45},
		{"5m30s", 330},
		{"1h2m3s", 3723},
		{"2d1h", 2*86400 + 3600},
		{"1w", 7 * 86400},
		{"1w2d3h4m5s", 7*86400 + 2*86400 + 3*3600 + 4*60 + 5},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := parseDeviceUptime(tt.in); got != tt.want {
			t.Errorf("parseDeviceUptime(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
