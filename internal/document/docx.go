package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

const documentEntry = "word/document.xml"

var (
	// ErrNotDocx means the upload is not a readable OOXML package.
	ErrNotDocx = errors.New("file is not a valid docx document")

	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>|<w:p/>`)
	runRe       = regexp.MustCompile(`(?s)<w:r[ >].*?</w:r>`)
	textRe      = regexp.MustCompile(`(?s)<w:t(?:\s[^>]*)?>(.*?)</w:t>|<w:t(?:\s[^>]*)?/>`)
	tabRe       = regexp.MustCompile(`<w:tab\s*/>`)
	tagRe       = regexp.MustCompile(`<[^>]+>`)
)

// ExtractText returns the document's paragraph text, one line per
// non-empty paragraph.
func ExtractText(path string) (string, error) {
	docXML, err := readDocumentXML(path)
	if err != nil {
		return "", err
	}
	var lines []string
	for _, para := range paragraphRe.FindAllString(docXML, -1) {
		if text := paragraphText(para); strings.TrimSpace(text) != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// PatchText writes a copy of srcPath to dstPath with the i-th non-empty
// paragraph replaced by the i-th non-empty line of newContent. Formatting
// survives because only run text changes: the paragraph's longest run keeps
// its properties and receives the whole new line, the other runs are
// emptied. Paragraphs beyond the supplied lines are left untouched.
func PatchText(srcPath, dstPath, newContent string) error {
	docXML, err := readDocumentXML(srcPath)
	if err != nil {
		return err
	}

	var lines []string
	for _, line := range strings.Split(newContent, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	idx := 0
	patched := paragraphRe.ReplaceAllStringFunc(docXML, func(para string) string {
		if strings.TrimSpace(paragraphText(para)) == "" {
			return para
		}
		if idx >= len(lines) {
			return para
		}
		line := lines[idx]
		idx++
		return patchParagraph(para, line)
	})

	return writeDocx(srcPath, dstPath, patched)
}

func readDocumentXML(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != documentEntry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", documentEntry, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", documentEntry, err)
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%w: missing %s", ErrNotDocx, documentEntry)
}

// paragraphText concatenates the run texts of one paragraph's XML.
func paragraphText(para string) string {
	withTabs := tabRe.ReplaceAllString(para, "\t")
	var sb strings.Builder
	for _, m := range textRe.FindAllStringSubmatch(withTabs, -1) {
		sb.WriteString(unescapeXML(m[1]))
	}
	return sb.String()
}

// patchParagraph puts newText into the paragraph's longest run and empties
// the rest. Runs without a text element (images, fields) stay as they are.
func patchParagraph(para, newText string) string {
	if paragraphText(para) == newText {
		return para
	}

	runs := runRe.FindAllStringIndex(para, -1)
	longest, longestLen := -1, -1
	for i, loc := range runs {
		run := para[loc[0]:loc[1]]
		if !textRe.MatchString(run) {
			continue
		}
		runText := paragraphText(run)
		if len(runText) > longestLen {
			longest, longestLen = i, len(runText)
		}
	}
	if longest < 0 {
		return para
	}

	var sb strings.Builder
	prev := 0
	for i, loc := range runs {
		sb.WriteString(para[prev:loc[0]])
		run := para[loc[0]:loc[1]]
		switch {
		case !textRe.MatchString(run):
			sb.WriteString(run)
		case i == longest:
			sb.WriteString(setRunText(run, newText))
		default:
			sb.WriteString(setRunText(run, ""))
		}
		prev = loc[1]
	}
	sb.WriteString(para[prev:])
	return sb.String()
}

// setRunText replaces every text element of the run; the first one receives
// text, the rest become empty.
func setRunText(run, text string) string {
	first := true
	return textRe.ReplaceAllStringFunc(run, func(string) string {
		if !first {
			return `<w:t/>`
		}
		first = false
		if text == "" {
			return `<w:t/>`
		}
		return `<w:t xml:space="preserve">` + escapeXML(text) + `</w:t>`
	})
}

// writeDocx copies every archive entry of src verbatim except
// word/document.xml, which is replaced with docXML.
func writeDocx(srcPath, dstPath, docXML string) error {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotDocx, err)
	}
	defer zr.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, f := range zr.File {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method})
		if err != nil {
			zw.Close()
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
		if f.Name == documentEntry {
			if _, err := io.WriteString(w, docXML); err != nil {
				zw.Close()
				return fmt.Errorf("write %s: %w", documentEntry, err)
			}
			continue
		}
		rc, err := f.Open()
		if err != nil {
			zw.Close()
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		if _, err := io.Copy(w, rc); err != nil {
			rc.Close()
			zw.Close()
			return fmt.Errorf("copy %s: %w", f.Name, err)
		}
		rc.Close()
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(s)); err != nil {
		return s
	}
	return buf.String()
}

var xmlUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&#xA;", "\n",
	"&#x9;", "\t",
	"&amp;", "&",
)

func unescapeXML(s string) string {
	return xmlUnescaper.Replace(s)
}
