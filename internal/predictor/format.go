package predictor

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount renders a prediction rounded to a whole number with thousands
// separators, e.g. 12500.4 -> "12,500".
func FormatCount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	v = math.Round(v)
	if v == 0 {
		v = 0 // drop the sign of -0
	}
	return printer.Sprintf("%.0f", v)
}
