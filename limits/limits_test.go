package limits

import (
	"errors"
	"testing"
)

// TestMaxPayloadLeavesRoomForHeaders verifies that a maximum payload plus all
// framing still fits a pool buffer
func TestMaxPayloadLeavesRoomForHeaders(t *testing.T) {
	total := MaxPayloadSize + RTPHeaderSize + FECPayloadIDSize + FECLengthPrefixSize
	if total != MaxPacketSize {
		t.Errorf("payload+framing = %d, want %d", total, MaxPacketSize)
	}
}

func TestValidatePacketSize(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr error
	}{
		{"empty", 0, ErrPacketEmpty},
		{"one byte", 1, nil},
		{"at limit", MaxPacketSize, nil},
		{"over limit", MaxPacketSize + 1, ErrPacketTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePacketSize(make([]byte, tt.size))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateChannelCount(t *testing.T) {
	for _, n := range []int{1, 2, MaxChannels} {
		if err := ValidateChannelCount(n); err != nil {
			t.Errorf("ValidateChannelCount(%d) = %v", n, err)
		}
	}
	for _, n := range []int{0, -1, MaxChannels + 1} {
		if err := ValidateChannelCount(n); !errors.Is(err, ErrTooManyChannels) {
			t.Errorf("ValidateChannelCount(%d) = %v, want ErrTooManyChannels", n, err)
		}
	}
}

func TestValidateBlockLength(t *testing.T) {
	if err := ValidateBlockLength(20, 10, MaxFECBlockLength); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateBlockLength(0, 10, MaxFECBlockLength); !errors.Is(err, ErrBlockEmpty) {
		t.Errorf("got %v, want ErrBlockEmpty", err)
	}
	if err := ValidateBlockLength(200, 56, MaxFECBlockLength); !errors.Is(err, ErrBlockTooLarge) {
		t.Errorf("got %v, want ErrBlockTooLarge", err)
	}
	if err := ValidateBlockLength(10, -1, MaxFECBlockLength); !errors.Is(err, ErrBlockTooLarge) {
		t.Errorf("got %v, want ErrBlockTooLarge", err)
	}
}
