package model

import (
	"errors"
	"strings"
	"time"
)

// Recipe is owned by a single user. Image holds the storage key of the
// uploaded picture (empty when none); turning it into a URL is the image
// store's job.
type Recipe struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	Name          string    `db:"name"`
	TimeMinutes   int       `db:"time_minutes"`
	Price         Price     `db:"price"`
	Link          string    `db:"link"`
	Image         string    `db:"image"`
	ImageBlurHash string    `db:"image_blurhash"`
	Tags          []Label   `db:"-"`
	Ingredients   []Label   `db:"-"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// TagIDs returns the IDs of the recipe's tags in order.
func (r *Recipe) TagIDs() []string { return labelIDs(r.Tags) }

// IngredientIDs returns the IDs of the recipe's ingredients in order.
func (r *Recipe) IngredientIDs() []string { return labelIDs(r.Ingredients) }

func labelIDs(labels []Label) []string {
	ids := make([]string, 0, len(labels))
	for _, l := range labels {
		ids = append(ids, l.ID)
	}
	return ids
}

// Price is a decimal amount with at most 5 digits, 2 of them after the
// point. It is kept in canonical text form ("5.50") so no float rounding
// ever touches it.
type Price string

const (
	priceMaxDigits   = 5
	priceDecimals    = 2
	priceIntegerPart = priceMaxDigits - priceDecimals
)

var (
	ErrPriceFormat    = errors.New("price: not a non-negative decimal number")
	ErrPriceDecimals  = errors.New("price: more than 2 decimal places")
	ErrPriceMaxDigits = errors.New("price: more than 5 digits in total")
)

// ParsePrice accepts "5", "5.5", "005.50" and similar non-negative decimal
// literals and returns the canonical two-decimal form.
func ParsePrice(s string) (Price, error) {
	s = strings.TrimSpace(s)
	intPart, fracPart, hasPoint := strings.Cut(s, ".")
	if intPart == "" && fracPart == "" {
		return "", ErrPriceFormat
	}
	if hasPoint && fracPart == "" {
		return "", ErrPriceFormat
	}
	if intPart == "" {
		intPart = "0"
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return "", ErrPriceFormat
	}

	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")

	if len(fracPart) > priceDecimals {
		return "", ErrPriceDecimals
	}
	if (intPart != "0" && len(intPart) > priceIntegerPart) || len(intPart)+len(fracPart) > priceMaxDigits {
		return "", ErrPriceMaxDigits
	}

	return Price(intPart + "." + fracPart + strings.Repeat("0", priceDecimals-len(fracPart))), nil
}

func (p Price) String() string { return string(p) }

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
