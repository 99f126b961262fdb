package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

type CardBrand string

const (
	CardBrandVisa            CardBrand = "Visa"
	CardBrandMasterCard      CardBrand = "MasterCard"
	CardBrandAmericanExpress CardBrand = "AmericanExpress"
	CardBrandDiscover        CardBrand = "Discover"
	CardBrandUnknown         CardBrand = "Unknown"
)

var (
	cardSeparators = regexp.MustCompile(`[\s-]`)
	cvvPattern     = regexp.MustCompile(`^\d{3,4}$`)

	brandPatterns = []struct {
		brand   CardBrand
		pattern *regexp.Regexp
	}{
		{CardBrandVisa, regexp.MustCompile(`^4\d{12}(\d{3})?$`)},
		{CardBrandMasterCard, regexp.MustCompile(`^(5[1-5]\d{4}|222[1-9]\d{2}|22[3-9]\d{3}|2[3-6]\d{4}|27[01]\d{3}|2720\d{2})\d{10}$`)},
		{CardBrandAmericanExpress, regexp.MustCompile(`^3[47]\d{13}$`)},
		{CardBrandDiscover, regexp.MustCompile(`^6(?:011|5\d{2})\d{12}$`)},
	}
)

// Card is the stored representation of a payment card. The raw number is
// reduced to a one-way hash and its last four digits.
type Card struct {
	holderName  string
	numberHash  string
	last4       string
	expiryMonth int
	expiryYear  int
	brand       CardBrand
}

// NewCard validates the raw card data against now (UTC month granularity).
// Every failing field is reported.
func NewCard(number, holderName string, expiryMonth, expiryYear int, cvv string, now time.Time) (Card, error) {
	verr := &ValidationErrors{}

	holderName = strings.TrimSpace(holderName)
	if holderName == "" {
		verr.add("cardHolderName", ErrEmptyCardholderName)
	}

	digits := NormalizeCardNumber(number)
	if !IsValidCardNumber(digits) {
		verr.add("cardNumber", ErrInvalidCardNumber)
	}

	if !isValidExpiry(expiryMonth, expiryYear, now) {
		verr.add("expiryDate", ErrInvalidExpiryDate)
	}

	if !cvvPattern.MatchString(cvv) {
		verr.add("cvv", ErrInvalidCVV)
	}

	if err := verr.Err(); err != nil {
		return Card{}, err
	}

	return Card{
		holderName:  holderName,
		numberHash:  HashCardNumber(digits),
		last4:       digits[len(digits)-4:],
		expiryMonth: expiryMonth,
		expiryYear:  expiryYear,
		brand:       DetectBrand(digits),
	}, nil
}

// RestoreCard rebuilds a card from persisted fields without re-validating expiry.
func RestoreCard(holderName, numberHash, last4 string, expiryMonth, expiryYear int, brand CardBrand) Card {
	return Card{
		holderName:  holderName,
		numberHash:  numberHash,
		last4:       last4,
		expiryMonth: expiryMonth,
		expiryYear:  expiryYear,
		brand:       brand,
	}
}

func (c Card) HolderName() string { return c.holderName }
func (c Card) NumberHash() string { return c.numberHash }
func (c Card) LastFour() string { return c.last4 }
func (c Card) ExpiryMonth() int { return c.expiryMonth }
func (c Card) ExpiryYear() int { return c.expiryYear }
func (c Card) Brand() CardBrand { return c.brand }
func (c Card) Equal(o Card) bool { return c == o }
func (c Card) MaskedNumber() string { return MaskCardNumber(c.last4) }

// MaskCardNumber renders the display form "**** **** **** 1234".
func MaskCardNumber(last4 string) string {
	return "**** **** **** " + last4
}

// NormalizeCardNumber strips spaces and dashes.
func NormalizeCardNumber(number string) string {
	return cardSeparators.ReplaceAllString(number, "")
}

// IsValidCardNumber checks a normalized number for digits only, 13-19 length and the Luhn checksum.
func IsValidCardNumber(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		ch := digits[i]
		if ch < '0' || ch > '9' {
			return false
		}
		d := int(ch - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// DetectBrand derives the card network from prefix and length.
func DetectBrand(digits string) CardBrand {
	for _, candidate := range brandPatterns {
		if candidate.pattern.MatchString(digits) {
			return candidate.brand
		}
	}
	return CardBrandUnknown
}

// HashCardNumber returns the hex SHA-256 of the normalized number.
func HashCardNumber(digits string) string {
	sum := sha256.Sum256([]byte(digits))
	return hex.EncodeToString(sum[:])
}

func isValidExpiry(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}
	now = now.UTC()
	currentYear, currentMonth := now.Year(), int(now.Month())
	return year > currentYear || (year == currentYear && month >= currentMonth)
}
