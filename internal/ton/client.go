package ton

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	nanoPerTon     = 1_000_000_000
	defaultTimeout = 10 * time.Second
)

// Config describes the toncenter endpoint used for balance lookups.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client queries toncenter's v2 REST surface.
type Client struct {
	rest *resty.Client
}

// NewClient accepts either the REST base or the jsonRPC endpoint URL.
func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.Endpoint, "/")
	if strings.HasSuffix(strings.ToLower(base), "/jsonrpc") {
		base = base[:len(base)-len("/jsonrpc")]
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	rest := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		rest.SetQueryParam("api_key", key)
	}
	return &Client{rest: rest}
}

// Balance is a wallet balance in nanotons and whole TON.
type Balance struct {
	Nano string `json:"balance_nton"`
	Ton  string `json:"balance_ton"`
}

type balanceResponse struct {
	Ok     bool   `json:"ok"`
	Result string `json:"result"`
	Error  string `json:"error"`
	Code   int    `json:"code"`
}

// GetAccountBalance returns the balance of addr.
func (c *Client) GetAccountBalance(ctx context.Context, addr string) (*Balance, error) {
	if _, err := ParseAddress(addr); err != nil {
		return nil, err
	}
	var out balanceResponse
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("address", addr).
		Get("/getAddressBalance")
	if err != nil {
		return nil, fmt.Errorf("toncenter getAddressBalance: %w", err)
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil && resp.IsSuccess() {
		return nil, fmt.Errorf("toncenter getAddressBalance: decode: %w", err)
	}
	if !out.Ok {
		msg := out.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("toncenter getAddressBalance: %s", msg)
	}
	nano := strings.TrimSpace(out.Result)
	return &Balance{Nano: nano, Ton: formatTonString(nano)}, nil
}

func formatTonString(nano string) string {
	n, ok := new(big.Int).SetString(strings.TrimSpace(nano), 10)
	if !ok {
		return "0"
	}
	sign := ""
	if n.Sign() < 0 {
		sign = "-"
		n.Neg(n)
	}
	whole, frac := new(big.Int).QuoRem(n, big.NewInt(nanoPerTon), new(big.Int))
	digits := frac.Text(10)
	digits = strings.TrimRight(strings.Repeat("0", 9-len(digits))+digits, "0")
	if digits == "" {
		return sign + whole.Text(10)
	}
	return sign + whole.Text(10) + "." + digits
}
