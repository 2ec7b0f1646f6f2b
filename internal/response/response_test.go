package response

import (
	"errors"
	"strings"
	"testing"

	"github.com/weihan/menu-copilot-back/internal/domain"
)

func TestItemsFencedJSON(t *testing.T) {
	text := "以下是整理好的菜單：\n```json\n[\n" +
		`{"name":"和牛漢堡","price":"180","tags":["加起司(+30)","附沙拉"]},` + "\n" +
		`{"name":"招牌紅茶","price":45,"tags":[]}` + "\n]\n```\n如需調整請告訴我。"

	items, err := Items(text)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Name != "和牛漢堡" || items[0].Price != "180" {
		t.Fatalf("unexpected first item: %+v", items[0])
	}
	if items[1].Price != "45" {
		t.Fatalf("expected numeric price decoded as string, got %q", items[1].Price)
	}
}

func TestItemsBareArrayFallback(t *testing.T) {
	text := `模型直接輸出了 [{"name":"紅茶","price":"45","tags":[]}] 這樣的內容`
	items, err := Items(text)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(items) != 1 || items[0].Name != "紅茶" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestItemsNonJSONIsParseError(t *testing.T) {
	raw := "抱歉，我無法以 JSON 格式輸出。"
	_, err := Items(raw)
	if err == nil {
		t.Fatal("expected error")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if parseErr.Raw != raw {
		t.Fatalf("expected raw text preserved, got %q", parseErr.Raw)
	}
}

func TestItemsBrokenArrayIsParseErrorNotPartial(t *testing.T) {
	text := "```json\n[{\"name\":\"紅茶\",\"price\":\"45\"\n```"
	items, err := Items(text)
	if err == nil {
		t.Fatalf("expected parse error, got %d items", len(items))
	}
}

func TestMarkdownFenced(t *testing.T) {
	text := "說明文字\n```markdown\n# 結案報告\n內容\n```\n結尾"
	if got := Markdown(text); got != "# 結案報告\n內容" {
		t.Fatalf("unexpected markdown: %q", got)
	}
}

func TestMarkdownUnfencedReturnsWhole(t *testing.T) {
	text := "  # 結案報告\n內容  "
	if got := Markdown(text); got != "# 結案報告\n內容" {
		t.Fatalf("unexpected markdown: %q", got)
	}
}

func TestFinalAdvicePrefersTurnAfterResummarize(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleHuman, Content: "第一次提問"},
		{Role: domain.RoleAssistant, Content: "第一版建議"},
		{Role: domain.RoleHuman, Content: domain.CommandResummarize},
		{Role: domain.RoleAssistant, Content: "重整後的建議"},
		{Role: domain.RoleHuman, Content: "謝謝"},
		{Role: domain.RoleAssistant, Content: "不客氣"},
	}
	if got := FinalAdvice(turns, "menu.jpg", "節錄"); got != "重整後的建議" {
		t.Fatalf("expected resummarized advice, got %q", got)
	}
}

func TestFinalAdviceFallsBackToLastAssistantTurn(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleHuman, Content: "提問"},
		{Role: domain.RoleAssistant, Content: "最後的建議"},
		{Role: domain.RoleHuman, Content: "追加一句"},
	}
	if got := FinalAdvice(turns, "menu.jpg", "節錄"); got != "最後的建議" {
		t.Fatalf("expected last assistant turn, got %q", got)
	}
}

func TestFinalAdvicePlaceholderWhenNoAssistantTurn(t *testing.T) {
	turns := []domain.Turn{
		{Role: domain.RoleHuman, Content: "只有人類說話"},
	}
	got := FinalAdvice(turns, "menu.jpg", "和牛漢堡 180")
	if !strings.Contains(got, "menu.jpg") || !strings.Contains(got, "和牛漢堡 180") {
		t.Fatalf("placeholder missing document context: %q", got)
	}
}

func TestExcerptClampsByRunes(t *testing.T) {
	if got := Excerpt("一二三四五", 3); got != "一二三…" {
		t.Fatalf("unexpected excerpt: %q", got)
	}
	if got := Excerpt("short", 10); got != "short" {
		t.Fatalf("unexpected excerpt: %q", got)
	}
}
