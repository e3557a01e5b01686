package paystack

import (
	"context"
	"net/http"
	"net/url"
)

// Charge is an initialized hosted-checkout payment.
type Charge struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// ChargeStatus is the processor's view of a charge.
type ChargeStatus struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	GatewayResponse string `json:"gateway_response"`
	Amount          int64  `json:"amount"`
}

// Charge statuses reported by VerifyCharge.
const (
	ChargeSuccess   = "success"
	ChargeFailed    = "failed"
	ChargeAbandoned = "abandoned"
	ChargeReversed  = "reversed"
)

// InitializeCharge starts a hosted-checkout payment of amountMinor kobo.
func (c *Client) InitializeCharge(ctx context.Context, email string, amountMinor int64, reference string) (*Charge, error) {
	body := map[string]any{
		"email":     email,
		"amount":    amountMinor,
		"reference": reference,
		"currency":  c.currency,
	}
	var ch Charge
	if err := c.do(ctx, "initialize_charge", http.MethodPost, "/transaction/initialize", nil, body, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// VerifyCharge fetches the status of the charge with reference.
func (c *Client) VerifyCharge(ctx context.Context, reference string) (*ChargeStatus, error) {
	var st ChargeStatus
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := c.do(ctx, "verify_charge", http.MethodGet, path, nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
