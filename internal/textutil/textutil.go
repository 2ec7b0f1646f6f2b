package textutil

import (
	"regexp"
	"strings"
)

// Sanitize removes NUL characters from a string. Postgres text columns
// reject \x00, so this must run before every persistence write.
func Sanitize(text string) string {
	return strings.ReplaceAll(text, "\x00", "")
}

var pricedTagPattern = regexp.MustCompile(`\(\+\d+\)`)

// HasPricedTag reports whether the tag carries a parenthesized additive
// price, e.g. "加起司(+30)". Used as an inclusion filter for export rows.
func HasPricedTag(tag string) bool {
	return pricedTagPattern.MatchString(tag)
}

// decorativeRanges covers the pictographic blocks commonly dropped into
// dish names, plus the bare star and the variation selector emoji
// sequences leave behind.
var decorativeRanges = [...]struct{ lo, hi rune }{
	{0x1F300, 0x1F5FF},
	{0x1F600, 0x1F64F},
	{0x1F680, 0x1F6FF},
	{0x1F900, 0x1F9FF},
	{0x2600, 0x26FF},
	{0x2700, 0x27BF},
	{0x2B50, 0x2B50},
	{0xFE0F, 0xFE0F},
}

func isDecorative(r rune) bool {
	for _, block := range decorativeRanges {
		if r >= block.lo && r <= block.hi {
			return true
		}
	}
	return false
}

// StripDecorative removes pictographic runes and any whitespace that
// immediately trails them, then trims. Applied to display-name-like
// fields destined for the tabular export, never to full advice text.
// Idempotent.
func StripDecorative(text string) string {
	var builder strings.Builder
	builder.Grow(len(text))

	skipSpace := false
	for _, r := range text {
		if isDecorative(r) {
			skipSpace = true
			continue
		}
		if skipSpace && (r == ' ' || r == '\t' || r == '　') {
			continue
		}
		skipSpace = false
		builder.WriteRune(r)
	}
	return strings.TrimSpace(builder.String())
}
