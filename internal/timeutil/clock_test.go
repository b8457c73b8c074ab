package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestMockClock_SetAndAdvance(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	if got := clock.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	clock.Advance(90 * time.Second)
	if got := clock.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Errorf("after Advance Now() = %v", got)
	}

	later := start.Add(24 * time.Hour)
	clock.Set(later)
	if got := clock.Now(); !got.Equal(later) {
		t.Errorf("after Set Now() = %v, want %v", got, later)
	}
}

func TestEpochRoundTrip(t *testing.T) {
	ts := time.Date(2019, 11, 5, 8, 30, 15, 500000000, time.UTC)
	secs := ToEpoch(ts)
	if secs != 1572942615.5 {
		t.Fatalf("ToEpoch = %f", secs)
	}
	if got := FromEpoch(secs); !got.Equal(ts) {
		t.Errorf("FromEpoch = %v, want %v", got, ts)
	}
}

func TestParseEpoch(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    float64
		wantErr bool
	}{
		{"seconds", "1572942615", 1572942615, false},
		{"fractional", " 12.5 ", 12.5, false},
		{"rfc3339", "2019-11-05T08:30:15Z", 1572942615, false},
		{"empty", "", 0, true},
		{"garbage", "yesterday", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseEpoch(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseEpoch(%q) expected error", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEpoch(%q) unexpected error: %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseEpoch(%q) = %f, want %f", tc.in, got, tc.want)
			}
		})
	}
}
