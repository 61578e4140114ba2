// Package locale converts between the pt-BR strings the back office sends and
// the typed values the application layer works with.
package locale

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tourism/backoffice/internal/domain/shared"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// ErrInvalidMoney is returned for amounts that are not non-negative pt-BR money
var ErrInvalidMoney = shared.NewDomainError("INVALID_MONEY", "Amount must be a non-negative value such as 1.234,56")

var (
	// 1.234.567,89 or 1.234
	groupedMoney = regexp.MustCompile(`^\d{1,3}(\.\d{3})+(,\d{1,2})?$`)
	// 1234567,89
	commaMoney = regexp.MustCompile(`^\d+(,\d{1,2})?$`)
	// 1234567.89, as sent by API clients that do not localize
	dotMoney = regexp.MustCompile(`^\d+\.\d{1,2}$`)
)

var printer = message.NewPrinter(language.BrazilianPortuguese)

// ParseMoney parses a pt-BR amount. An optional "R$" prefix is accepted.
// Dots are thousands separators and the comma is the decimal separator.
func ParseMoney(s string) (decimal.Decimal, error) {
	v := strings.TrimSpace(s)
	v = strings.TrimSpace(strings.TrimPrefix(v, "R$"))

	switch {
	case v == "":
		return decimal.Zero, ErrInvalidMoney
	case groupedMoney.MatchString(v), commaMoney.MatchString(v):
		v = strings.ReplaceAll(v, ".", "")
		v = strings.Replace(v, ",", ".", 1)
	case dotMoney.MatchString(v):
	default:
		return decimal.Zero, ErrInvalidMoney
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, ErrInvalidMoney
	}
	return d, nil
}

// ParseOptionalMoney parses s, treating an empty string as zero
func ParseOptionalMoney(s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	return ParseMoney(s)
}

// IsMoney reports whether s parses as money
func IsMoney(s string) bool {
	_, err := ParseMoney(s)
	return err == nil
}

// FormatMoney renders d as "R$ 1.234,56"
func FormatMoney(d decimal.Decimal) string {
	return "R$ " + FormatDecimal(d)
}

// FormatDecimal renders d with pt-BR separators and two decimals
func FormatDecimal(d decimal.Decimal) string {
	return printer.Sprint(number.Decimal(d.Round(2).InexactFloat64(), number.Scale(2)))
}
