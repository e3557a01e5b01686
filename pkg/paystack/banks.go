package paystack

import (
	"context"
	"net/http"
	"net/url"
)

// Bank is an entry of the processor's bank directory.
type Bank struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Slug string `json:"slug,omitempty"`
}

// ResolvedAccount is the registered holder of an account number.
type ResolvedAccount struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

// Country returns the country the bank list is scoped to.
func (c *Client) Country() string {
	return c.country
}

// ListBanks returns the banks of the configured country.
func (c *Client) ListBanks(ctx context.Context) ([]Bank, error) {
	q := url.Values{}
	q.Set("country", c.country)
	q.Set("perPage", "100")

	var banks []Bank
	if err := c.do(ctx, "list_banks", http.MethodGet, "/bank", q, nil, &banks); err != nil {
		return nil, err
	}
	return banks, nil
}

// ResolveAccount looks up the holder name of accountNumber at bankCode.
func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (*ResolvedAccount, error) {
	q := url.Values{}
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)

	var r ResolvedAccount
	if err := c.do(ctx, "resolve_account", http.MethodGet, "/bank/resolve", q, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
