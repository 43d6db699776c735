// Package docext pulls plain text out of uploaded exhibits.
package docext

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	pdf "github.com/ledongthuc/pdf"

	"github.com/yungbote/caseforge-backend/internal/domain/documents"
)

var (
	ErrEmpty       = errors.New("docext: empty file")
	ErrUnsupported = errors.New("docext: unsupported document type")
)

// Extract sniffs data and returns its text with whitespace collapsed.
// Images carry no text layer and return ErrUnsupported.
func Extract(name, mime string, data []byte) (string, documents.Type, error) {
	if len(data) == 0 {
		return "", "", ErrEmpty
	}
	switch {
	case isPDF(data):
		s, err := extractPDF(data)
		return s, documents.TypePDF, err
	case isZip(data):
		s, err := extractDOCX(data)
		return s, documents.TypeDOCX, err
	}
	t := documents.TypeFromName(name, mime)
	switch t {
	case documents.TypeImage:
		return "", t, ErrUnsupported
	case documents.TypePDF, documents.TypeDOCX:
		return "", t, fmt.Errorf("%w: %s claims %s but the content does not match", ErrUnsupported, name, t)
	}
	if !isProbablyText(data) {
		return "", t, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
	return collapseWhitespace(string(data)), documents.TypeMarkdown, nil
}

func isPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func isZip(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func isProbablyText(b []byte) bool {
	sample := b[:min(len(b), 4096)]
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || c >= 0x20 {
			good++
		}
	}
	return float64(good)/float64(len(sample)) > 0.9
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parse panic: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return collapseWhitespace(string(b)), nil
}

// extractDOCX gathers every <w:t> run of word/document.xml.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx container: %w", err)
	}
	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%w: zip without word/document.xml", ErrUnsupported)
	}
	rc, err := doc.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	dec := xml.NewDecoder(rc)
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "t" {
			continue
		}
		var v string
		if err := dec.DecodeElement(&v, &se); err == nil && v != "" {
			out.WriteString(v)
			out.WriteString(" ")
		}
	}
	s := collapseWhitespace(out.String())
	if s == "" {
		return "", errors.New("docx: no text")
	}
	return s, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}
