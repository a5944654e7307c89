package report

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer = message.NewPrinter(language.BritishEnglish)
	hundred = decimal.NewFromInt(100)
)

// Money formats v as pounds with thousands separators, e.g. £1,234.56.
// Grouping works on the decimal string so no figure passes through int64.
func Money(v float64) string {
	fixed := decimal.NewFromFloat(v).Round(2).StringFixed(2)

	sign := ""
	if rest, ok := strings.CutPrefix(fixed, "-"); ok {
		sign, fixed = "-", rest
	}
	whole, pence, _ := strings.Cut(fixed, ".")

	return sign + "£" + groupThousands(whole) + "." + pence
}

func groupThousands(digits string) string {
	var b strings.Builder
	for i := 0; i < len(digits); i++ {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}

// Percent formats a ratio as a percentage with one decimal, e.g. 0.2667 as
// 26.7%.
func Percent(ratio float64) string {
	return decimal.NewFromFloat(ratio).Mul(hundred).Round(1).StringFixed(1) + "%"
}

// Miles formats a mileage with thousands separators.
func Miles(n int) string {
	return printer.Sprintf("%d miles", n)
}
