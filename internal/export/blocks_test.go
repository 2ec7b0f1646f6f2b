package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/weihan/menu-copilot-back/internal/prompt"
)

func TestBlocksClassification(t *testing.T) {
	markdown := strings.Join([]string{
		"# 結案報告",
		"## 摘要",
		"### 細節",
		"#### 附註",
		"",
		"---",
		"- 第一點",
		"* 第二點",
		"1. 編號項目",
		"一般段落",
	}, "\n")

	blocks := Blocks(markdown)
	wantKinds := []BlockKind{
		KindHeading1, KindHeading2, KindHeading3, KindHeading4,
		KindBlank, KindRule, KindBullet, KindBullet, KindNumbered, KindParagraph,
	}
	if len(blocks) != len(wantKinds) {
		t.Fatalf("expected %d blocks, got %d: %+v", len(wantKinds), len(blocks), blocks)
	}
	for i, want := range wantKinds {
		if blocks[i].Kind != want {
			t.Errorf("block %d: kind = %v, want %v (text %q)", i, blocks[i].Kind, want, blocks[i].Text)
		}
	}
	if blocks[0].Text != "結案報告" {
		t.Errorf("heading text not stripped of marker: %q", blocks[0].Text)
	}
	if blocks[3].Text != "附註" {
		t.Errorf("level-4 heading misclassified: %q", blocks[3].Text)
	}
	if blocks[8].Text != "1. 編號項目" {
		t.Errorf("numbered item should keep its marker: %q", blocks[8].Text)
	}
}

func TestBlocksRedactsStrategyTable(t *testing.T) {
	markdown := strings.Join([]string{
		"# 報告",
		prompt.StrategyTableHeading,
		"| 活動名稱 | 目標 |",
		"| --- | --- |",
		"| 週年慶 | 拉新 |",
		"---",
		"結尾段落",
	}, "\n")

	blocks := Blocks(markdown)
	for _, block := range blocks {
		if strings.Contains(block.Text, "週年慶") || strings.Contains(block.Text, "活動名稱") {
			t.Fatalf("strategy table leaked into blocks: %+v", blocks)
		}
		if block.Kind == KindRule {
			t.Fatalf("trailing rule after table should be redacted: %+v", blocks)
		}
	}
	if blocks[len(blocks)-1].Text != "結尾段落" {
		t.Fatalf("content after table lost: %+v", blocks)
	}
}

func TestBlocksReplacesCameraPictogram(t *testing.T) {
	blocks := Blocks("- 📸 招牌餐點")
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
	if !strings.Contains(blocks[0].Text, "【建議放置餐點照片】") {
		t.Fatalf("pictogram not replaced: %q", blocks[0].Text)
	}
	if strings.Contains(blocks[0].Text, "📸") {
		t.Fatalf("pictogram still present: %q", blocks[0].Text)
	}
}

func TestEncodeDOCXProducesDocument(t *testing.T) {
	blocks := Blocks("# 結案報告\n\n內容段落\n- 重點")
	content, err := EncodeDOCX(blocks, nil)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(content) == 0 {
		t.Fatal("expected non-empty document bytes")
	}
}

func TestEncodeDOCXSkipsBrokenLogoEntirely(t *testing.T) {
	blocks := Blocks("內容段落")
	content, err := EncodeDOCX(blocks, []byte("not an image"))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	// No logo paragraph means no right-justified paragraph at all.
	if strings.Contains(docxBodyXML(t, content), "<w:jc") {
		t.Fatal("broken logo left an aligned paragraph in the document")
	}
}

func docxBodyXML(t *testing.T, content []byte) string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("open docx archive: %v", err)
	}
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		opened, err := file.Open()
		if err != nil {
			t.Fatalf("open document.xml: %v", err)
		}
		defer opened.Close()
		raw, err := io.ReadAll(opened)
		if err != nil {
			t.Fatalf("read document.xml: %v", err)
		}
		return string(raw)
	}
	t.Fatal("document.xml missing from archive")
	return ""
}
