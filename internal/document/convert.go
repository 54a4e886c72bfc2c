package document

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const convertTimeout = 60 * time.Second

// Converter turns DOCX files into PDFs by shelling out to LibreOffice.
type Converter struct {
	sofficePath string
}

func NewConverter(sofficePath string) *Converter {
	if sofficePath == "" {
		sofficePath = "soffice"
	}
	return &Converter{sofficePath: sofficePath}
}

// ToPDF converts docxPath into a PDF next to it in outDir and returns the
// PDF path. The conversion is bounded by a 60 second deadline.
func (c *Converter) ToPDF(ctx context.Context, docxPath, outDir string) (string, error) {
	absDocx, err := filepath.Abs(docxPath)
	if err != nil {
		return "", fmt.Errorf("resolve input path: %w", err)
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, convertTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.sofficePath,
		"--headless", "--convert-to", "pdf", "--outdir", absOut, absDocx)
	cmd.Dir = absOut
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("soffice convert: %w: %s", err, strings.TrimSpace(string(out)))
	}

	base := strings.TrimSuffix(filepath.Base(absDocx), filepath.Ext(absDocx))
	pdfPath := filepath.Join(absOut, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("soffice finished but %s is missing", pdfPath)
	}
	return pdfPath, nil
}
