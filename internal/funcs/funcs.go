package funcs

import (
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

var TemplateFuncs = template.FuncMap{
	"upper":      strings.ToUpper,
	"lower":      strings.ToLower,
	"formatInt":  formatInt,
	"formatUSDT": formatUSDT,
}

func formatInt(n int64) string {
	return printer.Sprintf("%d", n)
}

// formatUSDT renders an already-stringified decimal amount with thousands
// separators, keeping the 8 decimal places intact.
func formatUSDT(amount string) string {
	whole, frac, found := strings.Cut(amount, ".")

	var n int64
	for _, c := range whole {
		if c < '0' || c > '9' {
			return amount
		}
		n = n*10 + int64(c-'0')
	}

	formatted := printer.Sprintf("%d", n)
	if found {
		return formatted + "." + frac
	}
	return formatted
}
