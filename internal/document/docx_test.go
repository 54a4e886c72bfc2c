package document

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run is one formatted text chunk inside a test paragraph.
type run struct {
	text string
	bold bool
}

func buildDocx(t *testing.T, paragraphs ...[]run) string {
	t.Helper()
	var body strings.Builder
	for _, runs := range paragraphs {
		body.WriteString("<w:p>")
		for _, r := range runs {
			body.WriteString("<w:r>")
			if r.bold {
				body.WriteString("<w:rPr><w:b/></w:rPr>")
			}
			body.WriteString(`<w:t xml:space="preserve">` + r.text + `</w:t>`)
			body.WriteString("</w:r>")
		}
		body.WriteString("</w:p>")
	}
	docXML := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body.String() + `</w:body></w:document>`

	path := filepath.Join(t.TempDir(), "resume.docx")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	zw := zip.NewWriter(f)
	entries := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   docXML,
	}
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close file: %v", err)
	}
	return path
}

func TestExtractText(t *testing.T) {
	path := buildDocx(t,
		[]run{{text: "JANE DOE", bold: true}},
		[]run{{text: "Software Engineer at "}, {text: "Acme Corp", bold: true}},
		[]run{{text: "   "}}, // whitespace-only paragraph is dropped
		[]run{{text: "Built web applications"}},
	)

	text, err := ExtractText(path)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "JANE DOE\nSoftware Engineer at Acme Corp\nBuilt web applications"
	if text != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", text, want)
	}
}

func TestExtractTextNotDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.docx")
	if err := os.WriteFile(path, []byte("plain text, not a zip"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := ExtractText(path); err == nil {
		t.Fatalf("expected error for non-zip input")
	}
}

func TestPatchTextReplacesParagraphs(t *testing.T) {
	src := buildDocx(t,
		[]run{{text: "JANE DOE", bold: true}},
		[]run{{text: "Developed web applications using Python"}},
	)
	dst := filepath.Join(filepath.Dir(src), "out.docx")

	modified := "JANE DOE\nDeveloped scalable web applications using Python and Go"
	if err := PatchText(src, dst, modified); err != nil {
		t.Fatalf("patch: %v", err)
	}

	text, err := ExtractText(dst)
	if err != nil {
		t.Fatalf("extract patched: %v", err)
	}
	if text != modified {
		t.Fatalf("unexpected patched text:\n got %q\nwant %q", text, modified)
	}
}

func TestPatchTextKeepsLongestRunFormatting(t *testing.T) {
	src := buildDocx(t,
		[]run{{text: "Led ", bold: false}, {text: "development of internal tooling", bold: true}},
	)
	dst := filepath.Join(filepath.Dir(src), "out.docx")

	if err := PatchText(src, dst, "Led development of customer-facing tooling"); err != nil {
		t.Fatalf("patch: %v", err)
	}

	docXML, err := readDocumentXML(dst)
	if err != nil {
		t.Fatalf("read patched xml: %v", err)
	}
	// The bold run was the longest, so it must carry the new text.
	if !strings.Contains(docXML, `<w:rPr><w:b/></w:rPr><w:t xml:space="preserve">Led development of customer-facing tooling</w:t>`) {
		t.Fatalf("bold run does not carry new text: %s", docXML)
	}
	text, err := ExtractText(dst)
	if err != nil {
		t.Fatalf("extract patched: %v", err)
	}
	if text != "Led development of customer-facing tooling" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestPatchTextUnchangedParagraphUntouched(t *testing.T) {
	src := buildDocx(t,
		[]run{{text: "EDUCATION", bold: true}},
		[]run{{text: "BSc Computer Science"}},
	)
	dst := filepath.Join(filepath.Dir(src), "out.docx")

	// Same content: nothing should change structurally.
	if err := PatchText(src, dst, "EDUCATION\nBSc Computer Science"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	docXML, err := readDocumentXML(dst)
	if err != nil {
		t.Fatalf("read xml: %v", err)
	}
	if !strings.Contains(docXML, `<w:t xml:space="preserve">EDUCATION</w:t>`) {
		t.Fatalf("unchanged paragraph was rewritten: %s", docXML)
	}
}

func TestPatchTextFewerLinesThanParagraphs(t *testing.T) {
	src := buildDocx(t,
		[]run{{text: "SUMMARY"}},
		[]run{{text: "Engineer"}},
		[]run{{text: "Hobbies: chess"}},
	)
	dst := filepath.Join(filepath.Dir(src), "out.docx")

	if err := PatchText(src, dst, "PROFILE\nSenior Engineer"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	text, err := ExtractText(dst)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "PROFILE\nSenior Engineer\nHobbies: chess"
	if text != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", text, want)
	}
}

func TestPatchTextEscapesSpecialCharacters(t *testing.T) {
	src := buildDocx(t, []run{{text: "Worked on tooling"}})
	dst := filepath.Join(filepath.Dir(src), "out.docx")

	if err := PatchText(src, dst, "Worked on <pipelines> & tooling"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	text, err := ExtractText(dst)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if text != "Worked on <pipelines> & tooling" {
		t.Fatalf("round-trip mangled special characters: %q", text)
	}
}
