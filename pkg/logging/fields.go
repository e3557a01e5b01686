package logging

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserID tags an entry with the acting user.
func UserID(id string) zap.Field {
	return zap.String("user_id", id)
}

// Reference tags an entry with a transaction reference.
func Reference(ref string) zap.Field {
	return zap.String("reference", ref)
}

// Amount tags an entry with a major-unit amount.
func Amount(a decimal.Decimal) zap.Field {
	return zap.String("amount", a.StringFixed(2))
}

// Op tags an entry with a gateway or storage operation name.
func Op(name string) zap.Field {
	return zap.String("op", name)
}
