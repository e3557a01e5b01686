package paystack

import (
	"context"
	"net/http"
	"net/url"

	"money-saver/pkg/money"

	"github.com/shopspring/decimal"
)

// Recipient is a payout destination registered with the processor.
type Recipient struct {
	Code string `json:"recipient_code"`
	Name string `json:"name"`
}

// Payout is an initiated transfer.
type Payout struct {
	Reference    string `json:"reference"`
	TransferCode string `json:"transfer_code"`
	Status       string `json:"status"`
}

// PayoutStatus is the processor's view of a transfer.
type PayoutStatus struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

// Transfer statuses reported by PayoutStatus.
const (
	TransferSuccess   = "success"
	TransferFailed    = "failed"
	TransferReversed  = "reversed"
	TransferAbandoned = "abandoned"
	TransferRejected  = "rejected"
	TransferBlocked   = "blocked"
)

// CreateRecipient registers a NUBAN account as a payout destination.
func (c *Client) CreateRecipient(ctx context.Context, name, accountNumber, bankCode string) (*Recipient, error) {
	body := map[string]any{
		"type":           "nuban",
		"name":           name,
		"account_number": accountNumber,
		"bank_code":      bankCode,
		"currency":       c.currency,
	}
	var r Recipient
	if err := c.do(ctx, "create_recipient", http.MethodPost, "/transferrecipient", nil, body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// InitiatePayout sends amount (major units) from the integration balance to
// recipient.
func (c *Client) InitiatePayout(ctx context.Context, amount decimal.Decimal, recipient, reference string) (*Payout, error) {
	body := map[string]any{
		"source":    "balance",
		"amount":    money.ToMinor(amount),
		"recipient": recipient,
		"reference": reference,
	}
	var p Payout
	if err := c.do(ctx, "initiate_payout", http.MethodPost, "/transfer", nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PayoutStatus fetches the status of the transfer identified by code (the
// transfer code or reference).
func (c *Client) PayoutStatus(ctx context.Context, code string) (*PayoutStatus, error) {
	var st PayoutStatus
	if err := c.do(ctx, "payout_status", http.MethodGet, "/transfer/"+url.PathEscape(code), nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
