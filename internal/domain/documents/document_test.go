package documents

import "testing"

func TestTypeFromName(t *testing.T) {
	cases := []struct {
		name, mime string
		want       Type
	}{
		{"cv.PDF", "", TypePDF},
		{"letter", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", TypeDOCX},
		{"notes.md", "", TypeMarkdown},
		{"scan.jpeg", "", TypeImage},
		{"blob", "image/png", TypeImage},
	}
	for _, c := range cases {
		if got := TypeFromName(c.name, c.mime); got != c.want {
			t.Fatalf("TypeFromName(%q,%q): expected %s got %s", c.name, c.mime, c.want, got)
		}
	}
}

func TestFinalize(t *testing.T) {
	d := &Document{Status: StatusDraft}
	if !d.Finalize() || d.Status != StatusFinal {
		t.Fatalf("expected DRAFT -> FINAL")
	}
	if d.Finalize() {
		t.Fatalf("expected second finalize to report false")
	}
}
