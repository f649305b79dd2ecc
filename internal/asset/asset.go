// Package asset handles asset symbol validation and the built-in registry
// of tradeable assets (stablecoins and volatile coins).
package asset

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Asset kinds.
const (
	KindStablecoin = "stablecoin"
	KindCrypto     = "crypto"
)

// symbolRegex matches normalized ticker symbols: 2-10 uppercase
// alphanumerics starting with a letter. Example: USDT, BTC, BNB.
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// ErrInvalidSymbol is returned for a malformed asset symbol.
var ErrInvalidSymbol = errors.New("asset: invalid symbol")

// Asset describes one tradeable asset.
type Asset struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Kind        string `json:"kind"` // "stablecoin" or "crypto"
	Description string `json:"description,omitempty"`
}

// registry holds the assets the desk trades out of the box. Deposits of
// unlisted symbols are still accepted; they just render without a display
// name.
var registry = map[string]Asset{
	"USDT": {Symbol: "USDT", Name: "Tether", Kind: KindStablecoin, Description: "USD-pegged stablecoin, primary P2P vehicle"},
	"USDC": {Symbol: "USDC", Name: "USD Coin", Kind: KindStablecoin, Description: "USD-pegged stablecoin"},
	"BTC":  {Symbol: "BTC", Name: "Bitcoin", Kind: KindCrypto},
	"ETH":  {Symbol: "ETH", Name: "Ethereum", Kind: KindCrypto},
	"BNB":  {Symbol: "BNB", Name: "BNB", Kind: KindCrypto},
}

// Normalize uppercases and validates a symbol. Returns the canonical form
// or ErrInvalidSymbol with the offending input.
func Normalize(symbol string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolRegex.MatchString(s) {
		return "", fmt.Errorf("%w: %q (expected 2-10 uppercase alphanumerics)", ErrInvalidSymbol, symbol)
	}
	return s, nil
}

// Lookup returns registry metadata for a symbol, if listed.
func Lookup(symbol string) (Asset, bool) {
	a, ok := registry[symbol]
	return a, ok
}

// List returns all registered assets, stablecoins first.
func List() []Asset {
	out := make([]Asset, 0, len(registry))
	for _, a := range registry {
		out = append(out, a)
	}
	// Stable ordering for API responses.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindStablecoin
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
