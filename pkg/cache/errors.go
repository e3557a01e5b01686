package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrMiss is returned when a key is absent or expired.
	ErrMiss = errors.New("cache: miss")

	// ErrInvalidKey is returned for empty, oversized or malformed keys.
	ErrInvalidKey = errors.New("cache: invalid key")

	// ErrUnavailable is returned when a layer's backend cannot be reached.
	ErrUnavailable = errors.New("cache: layer unavailable")

	// ErrClosed is returned by operations on a closed layer.
	ErrClosed = errors.New("cache: layer closed")
)

// IsMiss reports whether err is a cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// IsFailure reports whether err means the layer misbehaved, as opposed to a
// plain miss or a caller mistake. Breakers count only failures.
func IsFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrMiss) && !errors.Is(err, ErrInvalidKey)
}

// WrapError adds the layer name and operation to err.
func WrapError(err error, layer, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("cache layer %s %s: %w", layer, operation, err)
}
