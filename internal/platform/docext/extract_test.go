package docext

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"

	"github.com/yungbote/caseforge-backend/internal/domain/documents"
)

func docxBytes(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	data := docxBytes(t, `<w:p><w:r><w:t>Best Paper</w:t></w:r><w:r><w:t>Award 2021</w:t></w:r></w:p>`)
	text, typ, err := Extract("award.docx", "", data)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if typ != documents.TypeDOCX || text != "Best Paper Award 2021" {
		t.Fatalf("unexpected result %q %s", text, typ)
	}
}

func TestExtractMarkdown(t *testing.T) {
	text, typ, err := Extract("notes.md", "text/markdown", []byte("# Judging\n\n  Reviewer for   NeurIPS\n"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if typ != documents.TypeMarkdown || text != "# Judging Reviewer for NeurIPS" {
		t.Fatalf("unexpected result %q %s", text, typ)
	}
}

func TestExtractRejectsUnsupported(t *testing.T) {
	if _, _, err := Extract("x.pdf", "", nil); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if _, _, err := Extract("photo.png", "image/png", []byte{0x89, 'P', 'N', 'G', 0, 0}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for image, got %v", err)
	}
	if _, _, err := Extract("fake.pdf", "application/pdf", []byte("not a pdf")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported for mislabeled pdf, got %v", err)
	}
	if _, _, err := Extract("bad.pdf", "", []byte("%PDF-1.4 garbage")); err == nil {
		t.Fatalf("expected error for corrupt pdf")
	}
}
