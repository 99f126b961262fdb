package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

var supportedCurrencies = map[string]struct{}{
	"USD": {},
	"EUR": {},
	"GBP": {},
	"CAD": {},
	"AUD": {},
	"JPY": {},
}

// IsSupportedCurrency reports whether code (case-insensitive) is accepted.
func IsSupportedCurrency(code string) bool {
	_, ok := supportedCurrencies[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Money is an immutable positive amount in a supported currency.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// Stored amounts are NUMERIC(19,4).
const amountScale = 4

var amountCeiling = decimal.New(1, 19-amountScale)

// NewMoney validates amount and currency and reports every failing field.
// The currency code is normalized to upper case.
func NewMoney(amount decimal.Decimal, currency string) (Money, error) {
	verrs := &ValidationErrors{}
	if !validAmount(amount) {
		verrs.add("amount", ErrInvalidAmount)
	}

	code := strings.ToUpper(strings.TrimSpace(currency))
	if len(code) != 3 || !IsSupportedCurrency(code) {
		verrs.add("currency", ErrInvalidCurrency)
	}

	if err := verrs.Err(); err != nil {
		return Money{}, err
	}
	return Money{amount: amount, currency: code}, nil
}

// validAmount accepts positive amounts the store can hold without rounding.
func validAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() || amount.GreaterThanOrEqual(amountCeiling) {
		return false
	}
	return amount.Equal(amount.Truncate(amountScale))
}

// RestoreMoney rebuilds a stored amount without re-validating it.
func RestoreMoney(amount decimal.Decimal, currency string) Money {
	return Money{amount: amount, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string { return m.currency }

// Equal compares by value; 100 and 100.00 are equal.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

func (m Money) String() string {
	return m.amount.String() + " " + m.currency
}
