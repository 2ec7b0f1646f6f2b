package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// Heading run sizes in half-points, as go-docx size strings.
var headingSizes = map[BlockKind]string{
	KindHeading1: "32",
	KindHeading2: "28",
	KindHeading3: "24",
	KindHeading4: "20",
}

// EncodeDOCX renders document blocks into the closing-report docx. When
// logo bytes are provided, a right-aligned brand image paragraph is
// prepended; a broken logo is skipped, never fatal.
func EncodeDOCX(blocks []Block, logo []byte) ([]byte, error) {
	doc := docx.New().WithDefaultTheme()

	if embeddableImage(logo) {
		_, _ = doc.AddParagraph().Justification("right").AddInlineDrawing(logo)
	}

	for _, block := range blocks {
		switch block.Kind {
		case KindBlank:
			doc.AddParagraph()
		case KindRule:
			doc.AddParagraph().AddText(strings.Repeat("─", 30))
		case KindHeading1, KindHeading2, KindHeading3, KindHeading4:
			doc.AddParagraph().AddText(block.Text).Size(headingSizes[block.Kind]).Bold()
		case KindBullet:
			doc.AddParagraph().AddText("• " + block.Text)
		case KindNumbered:
			doc.AddParagraph().AddText(block.Text)
		default:
			doc.AddParagraph().AddText(block.Text)
		}
	}

	buffer := bytes.NewBuffer(nil)
	if _, err := doc.WriteTo(buffer); err != nil {
		return nil, fmt.Errorf("encode docx: %w", err)
	}
	return buffer.Bytes(), nil
}

// embeddableImage tries the drawing against a scratch document first, so
// a broken logo is skipped without leaving an empty aligned paragraph in
// the real report.
func embeddableImage(image []byte) bool {
	if len(image) == 0 {
		return false
	}
	_, err := docx.New().WithDefaultTheme().AddParagraph().AddInlineDrawing(image)
	return err == nil
}
