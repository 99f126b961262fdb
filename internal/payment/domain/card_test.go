package domain

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
	"testing"
	"time"
)

var cardNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestNewCardValid(t *testing.T) {
	card, err := NewCard("4111 1111-1111 1111", "Jane Doe", 12, 2026, "123", cardNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if card.LastFour() != "1111" {
		t.Fatalf("expected last four 1111, got %s", card.LastFour())
	}
	if card.Brand() != CardBrandVisa {
		t.Fatalf("expected Visa, got %s", card.Brand())
	}
	if card.MaskedNumber() != "**** **** **** 1111" {
		t.Fatalf("unexpected mask %q", card.MaskedNumber())
	}
	if card.NumberHash() != HashCardNumber("4111111111111111") {
		t.Fatalf("expected hash of normalized number")
	}
	if strings.Contains(card.NumberHash(), "4111111111111111") {
		t.Fatalf("hash must not contain the raw number")
	}
}

func TestNewCardRejectsLuhnFailure(t *testing.T) {
	_, err := NewCard("1234567890123", "Jane Doe", 12, 2026, "123", cardNow)
	if !errors.Is(err, ErrInvalidCardNumber) {
		t.Fatalf("expected ErrInvalidCardNumber, got %v", err)
	}
}

func TestLuhnProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 500; i++ {
		length := 13 + rng.IntN(7)
		valid := luhnNumber(rng, length)

		if !IsValidCardNumber(valid) {
			t.Fatalf("expected %s to pass", valid)
		}
		if _, err := NewCard(valid, "Holder", 1, 2030, "1234", cardNow); err != nil {
			t.Fatalf("expected card %s to be accepted: %v", valid, err)
		}

		last := int(valid[len(valid)-1] - '0')
		broken := valid[:len(valid)-1] + strconv.Itoa((last+1+rng.IntN(9))%10)
		if _, err := NewCard(broken, "Holder", 1, 2030, "123", cardNow); !errors.Is(err, ErrInvalidCardNumber) {
			t.Fatalf("expected %s to fail Luhn, got %v", broken, err)
		}
	}
}

func TestCardNumberLengthBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	for _, length := range []int{2, 12, 20, 24} {
		number := luhnNumber(rng, length)
		if _, err := NewCard(number, "Holder", 1, 2030, "123", cardNow); !errors.Is(err, ErrInvalidCardNumber) {
			t.Fatalf("length %d: expected ErrInvalidCardNumber, got %v", length, err)
		}
	}
	if _, err := NewCard("4111a11111111111", "Holder", 1, 2030, "123", cardNow); !errors.Is(err, ErrInvalidCardNumber) {
		t.Fatalf("expected non-digit number to fail")
	}
}

func TestNewCardExpiry(t *testing.T) {
	cases := []struct {
		name  string
		month int
		year  int
		ok    bool
	}{
		{name: "current_month", month: 6, year: 2025, ok: true},
		{name: "next_year", month: 1, year: 2026, ok: true},
		{name: "last_month", month: 5, year: 2025, ok: false},
		{name: "last_year", month: 12, year: 2024, ok: false},
		{name: "month_zero", month: 0, year: 2030, ok: false},
		{name: "month_thirteen", month: 13, year: 2030, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCard("4111111111111111", "Holder", tc.month, tc.year, "123", cardNow)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidExpiryDate) {
				t.Fatalf("expected ErrInvalidExpiryDate, got %v", err)
			}
		})
	}
}

func TestNewCardCollectsEveryFailingField(t *testing.T) {
	_, err := NewCard("123", "  ", 0, 2020, "12", cardNow)
	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verr.Errors) != 4 {
		t.Fatalf("expected 4 field errors, got %d", len(verr.Errors))
	}
	for _, sentinel := range []error{ErrEmptyCardholderName, ErrInvalidCardNumber, ErrInvalidExpiryDate, ErrInvalidCVV} {
		if !errors.Is(err, sentinel) {
			t.Fatalf("expected %v in %v", sentinel, err)
		}
	}
}

func TestNewCardCVV(t *testing.T) {
	for _, cvv := range []string{"123", "1234"} {
		if _, err := NewCard("4111111111111111", "H", 1, 2030, cvv, cardNow); err != nil {
			t.Fatalf("cvv %q: unexpected error %v", cvv, err)
		}
	}
	for _, cvv := range []string{"", "12", "12345", "12a"} {
		if _, err := NewCard("4111111111111111", "H", 1, 2030, cvv, cardNow); !errors.Is(err, ErrInvalidCVV) {
			t.Fatalf("cvv %q: expected ErrInvalidCVV, got %v", cvv, err)
		}
	}
}

func TestDetectBrand(t *testing.T) {
	cases := map[string]CardBrand{
		"4111111111111111": CardBrandVisa,
		"4222222222222":    CardBrandVisa,
		"5555555555554444": CardBrandMasterCard,
		"2221000000000009": CardBrandMasterCard,
		"378282246310005":  CardBrandAmericanExpress,
		"6011111111111117": CardBrandDiscover,
		"3530111333300000": CardBrandUnknown,
	}
	for number, want := range cases {
		if got := DetectBrand(number); got != want {
			t.Fatalf("%s: expected %s, got %s", number, want, got)
		}
	}
}

func TestCardEquality(t *testing.T) {
	a, _ := NewCard("4111111111111111", "Jane", 1, 2030, "123", cardNow)
	b, _ := NewCard("4111-1111-1111-1111", "Jane", 1, 2030, "999", cardNow)
	c, _ := NewCard("4111111111111111", "John", 1, 2030, "123", cardNow)
	if !a.Equal(b) {
		t.Fatalf("expected cards with same stored fields to be equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected different holders to differ")
	}
}

// luhnNumber returns a random digit string of length n whose last digit is the Luhn check digit.
func luhnNumber(rng *rand.Rand, n int) string {
	digits := make([]int, n)
	for i := 0; i < n-1; i++ {
		digits[i] = rng.IntN(10)
	}
	sum := 0
	double := true
	for i := n - 2; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	digits[n-1] = (10 - sum%10) % 10

	var b strings.Builder
	for _, d := range digits {
		b.WriteByte(byte('0' + d))
	}
	return b.String()
}
