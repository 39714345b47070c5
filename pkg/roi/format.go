package roi

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// NotComputable is shown instead of a break-even figure that does not exist.
const NotComputable = "nicht berechenbar"

// FormatEuro renders a whole-euro amount, e.g. "10.000 €".
func FormatEuro(v float64) string {
	return formatGerman(roundHalfUp(v), 0, 0) + " €"
}

// FormatMonths renders a break-even duration with at most one decimal.
func FormatMonths(v *float64) string {
	if v == nil {
		return NotComputable
	}
	return formatGerman(round1(*v), 0, 1) + " Monate"
}

// FormatHours renders whole hours, e.g. "18.000 Std".
func FormatHours(v float64) string {
	return formatGerman(roundHalfUp(v), 0, 0) + " Std"
}

// FormatDecimalHours always shows exactly one decimal, e.g. "10,0 Std".
func FormatDecimalHours(v float64) string {
	return formatGerman(round1(v), 1, 1) + " Std"
}

func FormatEvenings(v float64) string {
	return formatGerman(round1(v), 0, 1) + " Abende"
}

// FormatPercentage renders a fraction as a whole percentage, e.g. "76%".
func FormatPercentage(v float64) string {
	return strconv.FormatFloat(roundHalfUp(v*100), 'f', 0, 64) + "%"
}

// Format renders an output value the way the result panel shows it.
func (o Output) Format(s Snapshot) string {
	val, ok := s[o.Name]
	switch o.Name {
	case "savingsAnnual", "savingsMonthly":
		if !ok || val == nil {
			return NotComputable
		}
		return FormatEuro(*val)
	case "breakEvenMonths":
		return FormatMonths(val)
	case "eveningsSavedMonthly":
		if !ok || val == nil {
			return NotComputable
		}
		return FormatEvenings(*val)
	}
	if !ok || val == nil {
		return NotComputable
	}
	if o.Decimals > 0 {
		return FormatDecimalHours(*val)
	}
	return FormatHours(*val)
}

// formatGerman prints v with German grouping and decimal separators. The
// value is rounded by the caller so the printer never rounds half-even.
func formatGerman(v float64, minFrac, maxFrac int) string {
	p := message.NewPrinter(language.German)
	opts := []number.Option{number.MaxFractionDigits(maxFrac)}
	if minFrac > 0 {
		opts = append(opts, number.MinFractionDigits(minFrac))
	}
	return p.Sprint(number.Decimal(v, opts...))
}
