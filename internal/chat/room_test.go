package chat

import (
	"errors"
	"testing"
)

func TestCanonicalRoomID(t *testing.T) {
	tests := []struct {
		name string
		a, b int64
		want string
	}{
		{"ascending pair", 3, 7, "3_7"},
		{"descending pair", 7, 3, "3_7"},
		{"large ids", 1000000, 42, "42_1000000"},
		{"adjacent ids", 1, 2, "1_2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalRoomID(tt.a, tt.b); got != tt.want {
				t.Errorf("CanonicalRoomID(%d, %d) = %q, want %q", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCanonicalRoomIDSymmetry(t *testing.T) {
	if CanonicalRoomID(3, 7) != CanonicalRoomID(7, 3) {
		t.Error("room id must not depend on argument order")
	}
}

func TestParseParticipants(t *testing.T) {
	tests := []struct {
		name    string
		roomID  string
		wantA   int64
		wantB   int64
		wantErr bool
	}{
		{"valid", "3_7", 3, 7, false},
		{"equal ids parse", "5_5", 5, 5, false},
		{"zero participant", "0_9", 0, 9, false},
		{"reversed order", "7_3", 0, 0, true},
		{"no separator", "37", 0, 0, true},
		{"empty", "", 0, 0, true},
		{"non-numeric left", "x_7", 0, 0, true},
		{"non-numeric right", "3_y", 0, 0, true},
		{"extra segment", "3_7_9", 0, 0, true},
		{"negative id", "-3_7", 0, 0, true},
		{"trailing underscore", "3_", 0, 0, true},
		{"leading underscore", "_7", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, err := ParseParticipants(tt.roomID)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRoomID) {
					t.Fatalf("ParseParticipants(%q) error = %v, want ErrMalformedRoomID", tt.roomID, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseParticipants(%q) unexpected error: %v", tt.roomID, err)
			}
			if a != tt.wantA || b != tt.wantB {
				t.Errorf("ParseParticipants(%q) = (%d, %d), want (%d, %d)", tt.roomID, a, b, tt.wantA, tt.wantB)
			}
		})
	}
}

func TestRoomIDRoundTrip(t *testing.T) {
	a, b, err := ParseParticipants(CanonicalRoomID(42, 7))
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	if a != 7 || b != 42 {
		t.Errorf("round trip = (%d, %d), want (7, 42)", a, b)
	}
}
