package ton

import (
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
)

// AddressFormats lists the common renderings of one account address.
type AddressFormats struct {
	Bounceable    string `json:"bounceable"`
	NonBounceable string `json:"non_bounceable"`
	Raw           string `json:"raw"`
}

// ParseAddress accepts user-friendly and raw (wc:hex) forms.
func ParseAddress(addr string) (*address.Address, error) {
	addr = strings.TrimSpace(addr)
	a, err := address.ParseAddr(addr)
	if err == nil {
		return a, nil
	}
	raw, err2 := address.ParseRawAddr(addr)
	if err2 != nil {
		return nil, fmt.Errorf("invalid ton address %q: %w", addr, err)
	}
	return raw, nil
}

// Formats renders addr in bounceable, non-bounceable and raw form.
func Formats(addr string) (AddressFormats, error) {
	bounce, err := ParseAddress(addr)
	if err != nil {
		return AddressFormats{}, err
	}
	nonBounce, err := ParseAddress(addr)
	if err != nil {
		return AddressFormats{}, err
	}
	bounce.SetBounce(true)
	nonBounce.SetBounce(false)
	return AddressFormats{
		Bounceable:    bounce.String(),
		NonBounceable: nonBounce.String(),
		Raw:           bounce.StringRaw(),
	}, nil
}
