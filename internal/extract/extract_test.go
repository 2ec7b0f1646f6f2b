package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/weihan/menu-copilot-back/internal/domain"
)

type fakeReader struct {
	content []byte
	err     error
	calls   int
}

func (r *fakeReader) Read(_ context.Context, _ string) ([]byte, error) {
	r.calls++
	return r.content, r.err
}

type fakeRecognizer struct {
	text  string
	err   error
	calls int
}

func (r *fakeRecognizer) RecognizeText(_ context.Context, _ string) (string, error) {
	r.calls++
	return r.text, r.err
}

func TestExtractorReadsTextFilesDirectly(t *testing.T) {
	reader := &fakeReader{content: []byte("招牌菜單\n紅茶 45")}
	ocr := &fakeRecognizer{text: "should not be used"}
	extractor := NewExtractor(reader, ocr)

	text, err := extractor.Text(context.Background(), domain.Document{Name: "menu.txt", StorageRef: "ref-1"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if text != "招牌菜單\n紅茶 45" {
		t.Fatalf("unexpected text: %q", text)
	}
	if ocr.calls != 0 {
		t.Fatalf("expected no OCR call for text file, got %d", ocr.calls)
	}
}

func TestExtractorDispatchesImagesToOCR(t *testing.T) {
	reader := &fakeReader{content: []byte{0xFF, 0xD8}}
	ocr := &fakeRecognizer{text: "和牛漢堡 180"}
	extractor := NewExtractor(reader, ocr)

	text, err := extractor.Text(context.Background(), domain.Document{Name: "Menu.JPG", StorageRef: "ref-2"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if text != "和牛漢堡 180" {
		t.Fatalf("unexpected text: %q", text)
	}
	if reader.calls != 0 {
		t.Fatalf("expected no direct read for image file, got %d", reader.calls)
	}
}

func TestExtractorWrapsOCRFailure(t *testing.T) {
	ocr := &fakeRecognizer{err: errors.New("quota exceeded")}
	extractor := NewExtractor(&fakeReader{}, ocr)

	_, err := extractor.Text(context.Background(), domain.Document{Name: "menu.pdf", StorageRef: "ref-3"})
	if err == nil {
		t.Fatal("expected error")
	}
	var extractErr *ExtractError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected *ExtractError, got %T", err)
	}
	if extractErr.DocumentName != "menu.pdf" {
		t.Fatalf("unexpected document name: %q", extractErr.DocumentName)
	}
}

func TestExtractorRejectsBinaryGarbageAsText(t *testing.T) {
	reader := &fakeReader{content: []byte{0xFF, 0xFE, 0xFD}}
	extractor := NewExtractor(reader, &fakeRecognizer{})

	_, err := extractor.Text(context.Background(), domain.Document{Name: "menu.csv", StorageRef: "ref-4"})
	if err == nil {
		t.Fatal("expected error for non-UTF-8 content")
	}
}
