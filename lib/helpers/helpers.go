package helpers

import (
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var markdownV2Replacer = func() *strings.Replacer {
	charactersToEscape := []string{"\\", ".", "-", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "=", "|", "{", "}", "!"}

	pairs := make([]string, 0, len(charactersToEscape)*2)
	for _, char := range charactersToEscape {
		pairs = append(pairs, char, "\\"+char)
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeMarkdownV2 escapes text for Telegram's MarkdownV2 parse mode.
func EscapeMarkdownV2(text string) string {
	return markdownV2Replacer.Replace(text)
}

// FormatPercent renders a SoC value with at most one decimal, e.g. 87 or 45.5, escaped.
func FormatPercent(value float64) string {
	return EscapeMarkdownV2(humanize.FtoaWithDigits(value, 1))
}

// FormatNumberUS formats with thousands separators and fixed decimals.
func FormatNumberUS(value float64, decimals int) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.*f", decimals, value)
}
