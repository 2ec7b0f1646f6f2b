package export

import (
	"regexp"
	"strings"

	"github.com/weihan/menu-copilot-back/internal/prompt"
)

type BlockKind int

const (
	KindParagraph BlockKind = iota
	KindHeading1
	KindHeading2
	KindHeading3
	KindHeading4
	KindBullet
	KindNumbered
	KindRule
	KindBlank
)

// Block is one typed unit destined for the document artifact.
// Transient: built here, consumed by the encoder, then discarded.
type Block struct {
	Kind BlockKind
	Text string
}

const (
	cameraMark        = "📸"
	cameraReplacement = "【建議放置餐點照片】"
)

var numberedPattern = regexp.MustCompile(`^\d+[.、)）]\s*`)

// Blocks classifies extracted markdown line by line into typed document
// blocks. The internal strategy-table section is redacted first, then
// the photo-suggestion pictogram is replaced with its textual form.
func Blocks(markdown string) []Block {
	lines := redactStrategyTable(strings.Split(markdown, "\n"))

	blocks := make([]Block, 0, len(lines))
	for _, line := range lines {
		line = strings.ReplaceAll(line, cameraMark, cameraReplacement)
		trimmed := strings.TrimSpace(line)

		// Longest heading marker first, so "#### " is never taken for "### ".
		switch {
		case trimmed == "":
			blocks = append(blocks, Block{Kind: KindBlank})
		case strings.HasPrefix(trimmed, "#### "):
			blocks = append(blocks, Block{Kind: KindHeading4, Text: strings.TrimSpace(trimmed[5:])})
		case strings.HasPrefix(trimmed, "### "):
			blocks = append(blocks, Block{Kind: KindHeading3, Text: strings.TrimSpace(trimmed[4:])})
		case strings.HasPrefix(trimmed, "## "):
			blocks = append(blocks, Block{Kind: KindHeading2, Text: strings.TrimSpace(trimmed[3:])})
		case strings.HasPrefix(trimmed, "# "):
			blocks = append(blocks, Block{Kind: KindHeading1, Text: strings.TrimSpace(trimmed[2:])})
		case isRuleLine(trimmed):
			blocks = append(blocks, Block{Kind: KindRule})
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			blocks = append(blocks, Block{Kind: KindBullet, Text: strings.TrimSpace(trimmed[2:])})
		case numberedPattern.MatchString(trimmed):
			blocks = append(blocks, Block{Kind: KindNumbered, Text: trimmed})
		default:
			blocks = append(blocks, Block{Kind: KindParagraph, Text: trimmed})
		}
	}
	return blocks
}

// redactStrategyTable drops the contiguous block starting at the known
// strategy-table heading through its pipe-delimited rows and one
// optional trailing rule. The table is internal planning material and
// must not appear in the delivered document.
func redactStrategyTable(lines []string) []string {
	out := make([]string, 0, len(lines))
	i := 0
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) != prompt.StrategyTableHeading {
			out = append(out, lines[i])
			i++
			continue
		}
		i++
		for i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "|") {
			i++
		}
		if i < len(lines) && isRuleLine(strings.TrimSpace(lines[i])) {
			i++
		}
	}
	return out
}

func isRuleLine(trimmed string) bool {
	return trimmed == "---" || trimmed == "***" || trimmed == "___"
}
