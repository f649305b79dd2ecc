package asset

import (
	"errors"
	"testing"
)

func TestNormalize_Canonicalizes(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"usdt", "USDT"},
		{" btc ", "BTC"},
		{"USDC", "USDC"},
		{"Bnb", "BNB"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		if err != nil {
			t.Errorf("Normalize(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalize_Rejects(t *testing.T) {
	for _, in := range []string{"", "B", "1INCH", "TOOLONGSYMBOL", "US-DT", "usd t"} {
		if _, err := Normalize(in); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("Normalize(%q): expected ErrInvalidSymbol, got %v", in, err)
		}
	}
}

func TestLookup_RegisteredAsset(t *testing.T) {
	a, ok := Lookup("USDT")
	if !ok {
		t.Fatal("USDT should be registered")
	}
	if a.Kind != KindStablecoin {
		t.Errorf("USDT kind = %q, want stablecoin", a.Kind)
	}
}

func TestLookup_UnknownSymbolAllowed(t *testing.T) {
	// Unlisted symbols are not an error at this layer: the vault accepts
	// deposits of any valid symbol.
	if _, ok := Lookup("DOGE"); ok {
		t.Error("DOGE should not be in the built-in registry")
	}
}

func TestList_StablecoinsFirst(t *testing.T) {
	assets := List()
	if len(assets) == 0 {
		t.Fatal("expected built-in assets")
	}
	seenCrypto := false
	for _, a := range assets {
		if a.Kind == KindCrypto {
			seenCrypto = true
		}
		if seenCrypto && a.Kind == KindStablecoin {
			t.Fatalf("stablecoins should sort before crypto: %+v", assets)
		}
	}
}
