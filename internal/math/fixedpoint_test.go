package math_test

import (
	fpmath "MatchCore/internal/math"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseFixed(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"100", "100", nil},
		{"0.00000001", "0.00000001", nil},
		{"1.50", "1.5", nil},
		{"0.000000001", "", fpmath.ErrPrecisionExceeded},
		{"abc", "", fpmath.ErrMalformedDecimal},
		{"", "", fpmath.ErrMalformedDecimal},
	}

	for _, tt := range tests {
		got, err := fpmath.ParseFixed(tt.in, fpmath.QuantityConfig)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseFixed(%q): got err %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFixed(%q): unexpected error %v", tt.in, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseFixed(%q): got %s, want %s", tt.in, got.String(), tt.want)
		}
	}
}

func TestNotional_Exact(t *testing.T) {
	price := decimal.RequireFromString("0.1")
	qty := decimal.RequireFromString("3")
	got := fpmath.Notional(price, qty)
	if !got.Equal(decimal.RequireFromString("0.3")) {
		t.Errorf("got %s, want 0.3", got)
	}
}

func TestPriceImprovement(t *testing.T) {
	two := decimal.NewFromInt(2)

	got := fpmath.PriceImprovement(decimal.NewFromInt(110), decimal.NewFromInt(100), two)
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("improvement: got %s, want 20", got)
	}

	got = fpmath.PriceImprovement(decimal.NewFromInt(100), decimal.NewFromInt(100), two)
	if !got.IsZero() {
		t.Errorf("equal prices: got %s, want 0", got)
	}

	got = fpmath.PriceImprovement(decimal.NewFromInt(90), decimal.NewFromInt(100), two)
	if !got.IsZero() {
		t.Errorf("worse price: got %s, want 0", got)
	}
}

func TestCanonicalBytes_IgnoresExponent(t *testing.T) {
	a := fpmath.CanonicalBytes(decimal.RequireFromString("1.50"))
	b := fpmath.CanonicalBytes(decimal.RequireFromString("1.5"))
	if string(a) != string(b) {
		t.Errorf("canonical bytes differ: %q vs %q", a, b)
	}
}
