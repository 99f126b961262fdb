package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewMoneyRejectsNonPositiveAmounts(t *testing.T) {
	for _, raw := range []string{"0", "-0.01", "-100", "0.000"} {
		_, err := NewMoney(decimal.RequireFromString(raw), "USD")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", raw, err)
		}
	}
}

func TestNewMoneyRejectsAmountsTheStoreWouldRound(t *testing.T) {
	for _, raw := range []string{"0.00001", "1.23456", "1000000000000000"} {
		_, err := NewMoney(decimal.RequireFromString(raw), "USD")
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected ErrInvalidAmount, got %v", raw, err)
		}
	}
	for _, raw := range []string{"0.0001", "1.2345", "1.23450000", "999999999999999.9999"} {
		if _, err := NewMoney(decimal.RequireFromString(raw), "USD"); err != nil {
			t.Fatalf("amount %s: unexpected error %v", raw, err)
		}
	}
}

func TestNewMoneyReportsAmountAndCurrencyTogether(t *testing.T) {
	_, err := NewMoney(decimal.Zero, "XYZ")
	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verr.Errors) != 2 || verr.Errors[0].Field != "amount" || verr.Errors[1].Field != "currency" {
		t.Fatalf("expected amount and currency entries, got %+v", verr.Errors)
	}
	if !errors.Is(err, ErrInvalidAmount) || !errors.Is(err, ErrInvalidCurrency) {
		t.Fatalf("expected both sentinels in %v", err)
	}
	if Message(err) != verr.Errors[0].Message {
		t.Fatalf("expected message of first entry, got %q", Message(err))
	}
}

func TestNewMoneyAcceptsSupportedCurrencies(t *testing.T) {
	amounts := []string{"0.01", "1", "100.00", "999999.99"}
	for _, currency := range []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "usd", " eur "} {
		for _, raw := range amounts {
			m, err := NewMoney(decimal.RequireFromString(raw), currency)
			if err != nil {
				t.Fatalf("%s %s: unexpected error %v", raw, currency, err)
			}
			if len(m.Currency()) != 3 || m.Currency() != toUpperTrim(currency) {
				t.Fatalf("expected normalized currency, got %q", m.Currency())
			}
		}
	}
}

func TestNewMoneyRejectsUnknownCurrency(t *testing.T) {
	for _, currency := range []string{"", "XYZ", "US", "USDD", "CHF"} {
		_, err := NewMoney(decimal.NewFromInt(10), currency)
		if !errors.Is(err, ErrInvalidCurrency) {
			t.Fatalf("currency %q: expected ErrInvalidCurrency, got %v", currency, err)
		}
	}
}

func TestMoneyEqualityByValue(t *testing.T) {
	a, _ := NewMoney(decimal.RequireFromString("100"), "USD")
	b, _ := NewMoney(decimal.RequireFromString("100.00"), "usd")
	c, _ := NewMoney(decimal.RequireFromString("100"), "EUR")

	if !a.Equal(b) {
		t.Fatalf("expected %s to equal %s", a, b)
	}
	if a.Equal(c) {
		t.Fatalf("expected different currencies to differ")
	}
}

func TestMoneyValidationErrorCarriesField(t *testing.T) {
	_, err := NewMoney(decimal.Zero, "USD")
	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0].Field != "amount" || verr.Errors[0].Code != "invalid_amount" {
		t.Fatalf("unexpected validation detail: %+v", verr.Errors)
	}
}

func toUpperTrim(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == ' ' {
			continue
		}
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		out = append(out, ch)
	}
	return string(out)
}
