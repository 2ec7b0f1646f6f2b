// Package response interprets completion-service output. The model's
// format compliance is loose at best, so everything here is heuristic
// and kept as independently testable pure functions.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/weihan/menu-copilot-back/internal/domain"
)

// ParseError means the completion response did not match the expected
// contract. Raw carries the offending text so it can be handed to the
// human for manual recovery.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MenuItem is one structured item parsed out of an export response.
type MenuItem struct {
	Name  string
	Price string
	Tags  []string
}

// Models drift between string and numeric prices, so the price field is
// decoded flexibly.
func (m *MenuItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  string          `json:"name"`
		Price json.RawMessage `json:"price"`
		Tags  []string        `json:"tags"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Name = raw.Name
	m.Tags = raw.Tags
	m.Price = decodeFlexibleString(raw.Price)
	return nil
}

func decodeFlexibleString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err == nil {
		return number.String()
	}
	return strings.Trim(string(trimmed), `"`)
}

var (
	fencedJSONPattern     = regexp.MustCompile("(?s)```(?:json|JSON)[ \t]*\n(.*?)```")
	fencedMarkdownPattern = regexp.MustCompile("(?s)```(?:markdown|md)[ \t]*\n(.*?)```")
)

// Items extracts a JSON item array from a completion response: a fenced
// json block first, then the first top-level [...] span. Parse failures
// are returned with the raw text, never retried.
func Items(text string) ([]MenuItem, error) {
	candidate := ""
	if match := fencedJSONPattern.FindStringSubmatch(text); match != nil {
		candidate = strings.TrimSpace(match[1])
	} else {
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start >= 0 && end > start {
			candidate = text[start : end+1]
		}
	}
	if candidate == "" {
		return nil, &ParseError{Raw: text, Err: errors.New("no JSON array in model output")}
	}

	var items []MenuItem
	if err := json.Unmarshal([]byte(candidate), &items); err != nil {
		return nil, &ParseError{Raw: text, Err: fmt.Errorf("decode item array: %w", err)}
	}
	return items, nil
}

// Markdown extracts the inner content of a fenced markdown block, or
// returns the whole trimmed response when no fence is found. Always
// succeeds.
func Markdown(text string) string {
	if match := fencedMarkdownPattern.FindStringSubmatch(text); match != nil {
		return strings.TrimSpace(match[1])
	}
	return strings.TrimSpace(text)
}

const adviceExcerptLimit = 300

// FinalAdvice recovers the most recent agreed-upon advice from the turn
// history: the assistant turn immediately after the latest resummarize
// command, else the latest assistant turn, else a marked placeholder so
// the report pipeline never blocks on missing content.
func FinalAdvice(turns []domain.Turn, documentName, documentExcerpt string) string {
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		if turn.Role != domain.RoleHuman || !strings.Contains(turn.Content, domain.CommandResummarize) {
			continue
		}
		if i+1 < len(turns) && turns[i+1].Role == domain.RoleAssistant {
			return turns[i+1].Content
		}
		break
	}

	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == domain.RoleAssistant {
			return turns[i].Content
		}
	}

	return fmt.Sprintf("（本案尚未產生優化建議，以下為菜單「%s」內容節錄）\n%s",
		documentName, Excerpt(documentExcerpt, adviceExcerptLimit))
}

// Excerpt clamps text to at most limit runes, appending an ellipsis when
// truncated.
func Excerpt(text string, limit int) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if limit <= 0 || len(runes) <= limit {
		return trimmed
	}
	return string(runes[:limit]) + "…"
}
