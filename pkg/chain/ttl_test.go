package chain

import (
	"testing"
	"time"
)

func TestUniformTTL(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := (UniformTTL{}).TTL(i, 3, time.Hour); got != time.Hour {
			t.Errorf("layer %d ttl = %v", i, got)
		}
	}
}

func TestDecayingTTL(t *testing.T) {
	tests := []struct {
		name     string
		strategy DecayingTTL
		index    int
		count    int
		want     time.Duration
	}{
		{"last layer keeps base", DecayingTTL{Factor: 0.5}, 2, 3, time.Hour},
		{"middle layer halves", DecayingTTL{Factor: 0.5}, 1, 3, 30 * time.Minute},
		{"first layer quarters", DecayingTTL{Factor: 0.5}, 0, 3, 15 * time.Minute},
		{"single layer keeps base", DecayingTTL{Factor: 0.5}, 0, 1, time.Hour},
		{"invalid factor keeps base", DecayingTTL{Factor: 1.5}, 0, 3, time.Hour},
		{"floor applies", DecayingTTL{Factor: 0.01, Floor: 5 * time.Minute}, 0, 2, 5 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.strategy.TTL(tt.index, tt.count, time.Hour); got != tt.want {
				t.Errorf("TTL = %v, want %v", got, tt.want)
			}
		})
	}
}
