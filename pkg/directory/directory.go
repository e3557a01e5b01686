// Package directory serves the processor's bank list and account-name
// lookups through the cache chain. Both change rarely and sit on the path of
// every "add bank account" screen.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"money-saver/pkg/apperrors"
	"money-saver/pkg/bankaccount"
	"money-saver/pkg/cache"
	"money-saver/pkg/chain"
	"money-saver/pkg/logging"
	"money-saver/pkg/paystack"

	"go.uber.org/zap"
)

const (
	// BanksTTL is how long the bank list is cached.
	BanksTTL = 24 * time.Hour
	// ResolveTTL is how long a resolved account name is cached.
	ResolveTTL = time.Hour
	// NegativeTTL is how long an unresolvable account is remembered.
	NegativeTTL = 5 * time.Minute
)

// Gateway is the part of the processor client the directory needs.
type Gateway interface {
	Country() string
	ListBanks(ctx context.Context) ([]paystack.Bank, error)
	ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error)
}

// Directory answers bank and account lookups.
type Directory struct {
	gateway Gateway
	cache   *chain.Chain
	keys    *cache.KeyPattern
	logger  *logging.Logger
}

// New creates a Directory reading through c.
func New(gateway Gateway, c *chain.Chain, logger *logging.Logger) *Directory {
	return &Directory{
		gateway: gateway,
		cache:   c,
		keys:    cache.NewKeyPattern("directory", ":"),
		logger:  logging.OrNoOp(logger).Named("directory"),
	}
}

// Banks returns the processor's bank list.
func (d *Directory) Banks(ctx context.Context) ([]paystack.Bank, error) {
	key := d.keys.Build("banks", d.gateway.Country())

	raw, err := d.cache.Load(ctx, key, BanksTTL, func(ctx context.Context) ([]byte, error) {
		banks, err := d.gateway.ListBanks(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(banks)
	})
	if err != nil {
		d.logger.Warn("bank list unavailable", zap.Error(err))
		return nil, apperrors.BadGateway(
			apperrors.WithMessage(paystack.Message(err, "Failed to fetch banks")),
			apperrors.WithError(err),
		)
	}

	var banks []paystack.Bank
	if err := json.Unmarshal(raw, &banks); err != nil {
		d.dropCorrupt(ctx, key, err)
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}
	return banks, nil
}

// resolution is the cached form of an account lookup. Failed entries are
// negative results.
type resolution struct {
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	Failed        bool   `json:"failed,omitempty"`
	Message       string `json:"message,omitempty"`
}

var errUnresolvable = errors.New("account could not be resolved")

// Resolve returns the registered holder of accountNumber at bankCode.
func (d *Directory) Resolve(ctx context.Context, accountNumber, bankCode string) (*paystack.ResolvedAccount, error) {
	if !bankaccount.IsAccountNumber(accountNumber) {
		return nil, apperrors.BadRequest(apperrors.WithMessage(bankaccount.ErrAccountNumber.Error()))
	}
	if bankCode == "" {
		return nil, apperrors.BadRequest(apperrors.WithMessage("Bank Code is required"))
	}

	key := d.keys.Build("resolve", bankCode, accountNumber)

	raw, err := d.cache.Load(ctx, key, ResolveTTL, func(ctx context.Context) ([]byte, error) {
		acct, err := d.gateway.ResolveAccount(ctx, accountNumber, bankCode)
		if paystack.IsClientError(err) {
			d.rememberFailure(ctx, key, paystack.Message(err, ""))
			return nil, errUnresolvable
		}
		if err != nil {
			return nil, err
		}
		return json.Marshal(resolution{AccountNumber: acct.AccountNumber, AccountName: acct.AccountName})
	})
	if errors.Is(err, errUnresolvable) {
		return nil, verificationFailed(err)
	}
	if err != nil {
		return nil, apperrors.BadGateway(apperrors.WithMessage("Account verification failed"), apperrors.WithError(err))
	}

	var r resolution
	if err := json.Unmarshal(raw, &r); err != nil {
		d.dropCorrupt(ctx, key, err)
		return nil, apperrors.Unexpected(apperrors.WithError(err))
	}
	if r.Failed {
		return nil, verificationFailed(errors.New(r.Message))
	}
	if r.AccountNumber == "" {
		r.AccountNumber = accountNumber
	}
	return &paystack.ResolvedAccount{AccountNumber: r.AccountNumber, AccountName: r.AccountName}, nil
}

func verificationFailed(cause error) error {
	return apperrors.BadRequest(apperrors.WithMessage("Account verification failed"), apperrors.WithError(cause))
}

func (d *Directory) rememberFailure(ctx context.Context, key, message string) {
	value, _ := json.Marshal(resolution{Failed: true, Message: message})
	if err := d.cache.Set(ctx, key, value, NegativeTTL); err != nil {
		d.logger.Warn("caching failed resolution", zap.String("key", key), zap.Error(err))
	}
}

func (d *Directory) dropCorrupt(ctx context.Context, key string, err error) {
	d.logger.Error("corrupt cache entry", zap.String("key", key), zap.Error(err))
	if err := d.cache.Delete(ctx, key); err != nil {
		d.logger.Warn("deleting corrupt cache entry", zap.String("key", key), zap.Error(err))
	}
}
