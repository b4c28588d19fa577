// Package money formats deal amounts for prompts and CLI output.
package money

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCurrency is used for deals created without a currency.
const DefaultCurrency = "USD"

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
}

var printer = message.NewPrinter(language.English)

// NormalizeCurrency upper-cases a three letter ISO code, defaulting to USD.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// IsValidCurrency reports whether code looks like an ISO 4217 code.
func IsValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Format renders amount with thousands separators, e.g. "$12,500.00" or
// "12,500.00 CHF" for currencies without a known symbol.
func Format(amount float64, currency string) string {
	currency = NormalizeCurrency(currency)
	var num string
	if currency == "JPY" {
		num = printer.Sprintf("%.0f", amount)
	} else {
		num = printer.Sprintf("%.2f", amount)
	}
	if sym, ok := symbols[currency]; ok {
		if strings.HasPrefix(num, "-") {
			return "-" + sym + num[1:]
		}
		return sym + num
	}
	return num + " " + currency
}
