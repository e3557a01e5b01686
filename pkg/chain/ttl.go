package chain

import (
	"math"
	"time"
)

// TTLStrategy decides how long each layer keeps a value written with baseTTL.
type TTLStrategy interface {
	TTL(layerIndex, layerCount int, baseTTL time.Duration) time.Duration
}

// UniformTTL keeps the same TTL in every layer.
type UniformTTL struct{}

// TTL returns baseTTL.
func (UniformTTL) TTL(layerIndex, layerCount int, baseTTL time.Duration) time.Duration {
	return baseTTL
}

// DecayingTTL shortens the TTL of faster layers so a process-local copy goes
// stale sooner than the shared one. With Factor 0.5 and three layers, L1 keeps
// a quarter of baseTTL, L2 half and L3 all of it.
type DecayingTTL struct {
	Factor float64
	// Floor is the shortest TTL any layer gets.
	Floor time.Duration
}

// TTL returns baseTTL scaled by Factor^(distance from the last layer).
func (s DecayingTTL) TTL(layerIndex, layerCount int, baseTTL time.Duration) time.Duration {
	if s.Factor <= 0 || s.Factor >= 1 || layerCount <= 1 {
		return baseTTL
	}
	exponent := float64(layerCount - 1 - layerIndex)
	if exponent < 0 {
		exponent = 0
	}
	ttl := time.Duration(float64(baseTTL) * math.Pow(s.Factor, exponent))
	if ttl < s.Floor {
		ttl = s.Floor
	}
	return ttl
}
