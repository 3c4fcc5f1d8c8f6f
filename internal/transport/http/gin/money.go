package httpgin

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var copPrinter = message.NewPrinter(language.MustParse("es-CO"))

// FormatCOP renders a whole-peso amount the way the storefront displays
// prices: grouped digits, no decimal places.
func FormatCOP(v int64) string {
	return copPrinter.Sprintf("$ %v", number.Decimal(v, number.MaxFractionDigits(0)))
}
