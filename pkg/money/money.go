// Package money holds the amount rules shared by the ledger, the flows and the
// payment gateway: major-unit decimals inside the service, kobo at the
// processor boundary, and naira formatting for user-facing text.
package money

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotPositive is returned for zero or negative amounts.
	ErrNotPositive = errors.New("Amount must be greater than zero")
	// ErrInvalidAmount is returned for amounts that do not parse.
	ErrInvalidAmount = errors.New("Invalid amount")
	// ErrTooPrecise is returned for amounts with fractions of a kobo.
	ErrTooPrecise = errors.New("Amount cannot have more than two decimal places")
	// ErrTooLarge is returned for amounts above MaxAmount.
	ErrTooLarge = errors.New("Amount is too large")
)

var (
	hundred = decimal.NewFromInt(100)

	// MaxAmount is the largest amount the ledger's NUMERIC(15,2) column holds.
	MaxAmount = decimal.RequireFromString("9999999999999.99")
)

// Parse reads a major-unit amount such as "3000" or "2500.50".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// Validate checks that a is positive, at most MaxAmount and has at most two
// decimal places. Valid amounts always fit ToMinor.
func Validate(a decimal.Decimal) error {
	if !a.IsPositive() {
		return ErrNotPositive
	}
	if a.GreaterThan(MaxAmount) {
		return ErrTooLarge
	}
	if !a.Equal(a.Truncate(2)) {
		return ErrTooPrecise
	}
	return nil
}

// ToMinor converts major units to kobo. It is only used where a request leaves
// for the processor.
func ToMinor(a decimal.Decimal) int64 {
	return a.Mul(hundred).Round(0).IntPart()
}

// FromMinor converts kobo back to major units.
func FromMinor(kobo int64) decimal.Decimal {
	return decimal.New(kobo, -2)
}

// Format renders a as naira with thousands separators, e.g. "₦3,000.00".
func Format(a decimal.Decimal) string {
	s := a.Abs().StringFixed(2)
	whole, frac := s[:len(s)-3], s[len(s)-2:]

	var b strings.Builder
	if a.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString("₦")
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

const (
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// ReferenceLength is the length of generated transaction references.
	ReferenceLength = 10
)

// NewReference returns a fresh reference of ReferenceLength characters drawn
// uniformly from A-Z and 0-9. Uniqueness is enforced by the ledger, not here.
func NewReference() string {
	max := big.NewInt(int64(len(referenceAlphabet)))
	b := make([]byte, ReferenceLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("money: crypto/rand unavailable: " + err.Error())
		}
		b[i] = referenceAlphabet[n.Int64()]
	}
	return string(b)
}

// IsReference reports whether s has the shape of a generated reference.
func IsReference(s string) bool {
	if len(s) != ReferenceLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(referenceAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
