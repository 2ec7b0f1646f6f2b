package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/weihan/menu-copilot-back/internal/domain"
)

// DocumentReader loads the stored bytes of an uploaded document.
type DocumentReader interface {
	Read(ctx context.Context, storageRef string) ([]byte, error)
}

// Recognizer runs text recognition over a stored document.
type Recognizer interface {
	RecognizeText(ctx context.Context, storageRef string) (string, error)
}

// ExtractError is fatal to the current turn and is reported verbatim to
// the human.
type ExtractError struct {
	DocumentName string
	Err          error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.DocumentName, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

var ocrExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".pdf":  true,
}

// Extractor turns a stored document into text, dispatching on file kind
// between OCR and a raw UTF-8 read. Pure dispatch: no retries, no
// memoization, every call re-extracts from the original bytes.
type Extractor struct {
	reader DocumentReader
	ocr    Recognizer
}

func NewExtractor(reader DocumentReader, ocr Recognizer) *Extractor {
	return &Extractor{reader: reader, ocr: ocr}
}

func (x *Extractor) Text(ctx context.Context, doc domain.Document) (string, error) {
	ext := strings.ToLower(filepath.Ext(doc.Name))
	if ocrExtensions[ext] {
		text, err := x.ocr.RecognizeText(ctx, doc.StorageRef)
		if err != nil {
			return "", &ExtractError{DocumentName: doc.Name, Err: err}
		}
		return text, nil
	}

	raw, err := x.reader.Read(ctx, doc.StorageRef)
	if err != nil {
		return "", &ExtractError{DocumentName: doc.Name, Err: err}
	}
	if !utf8.Valid(raw) {
		return "", &ExtractError{DocumentName: doc.Name, Err: errors.New("document is not valid UTF-8 text")}
	}
	return string(raw), nil
}
