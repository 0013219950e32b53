package normalize

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the plain text content of a PDF document.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("normalize: open pdf: %w", err)
	}
	text, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("normalize: extract pdf text: %w", err)
	}
	raw, err := io.ReadAll(text)
	if err != nil {
		return "", fmt.Errorf("normalize: read pdf text: %w", err)
	}
	return normalizeWhitespace(string(raw)), nil
}
