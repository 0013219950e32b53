// Package normalize converts raw document bytes into plain text for
// analysis. Format is detected from the storage key extension.
//
// Supported formats:
//   - .pdf: text extraction
//   - .docx: Microsoft Word (archive/zip, word/document.xml)
//   - .txt, .md: passthrough with whitespace normalization
//   - .email.json: email sidecar (subject + body)
package normalize

import (
	"fmt"
	"path"
	"strings"
)

// Format identifies a supported input document format.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatDocx  Format = "docx"
	FormatText  Format = "txt"
	FormatEmail Format = "email"
)

// ErrUnsupported wraps the extension of an unrecognized format.
type ErrUnsupported struct {
	Ext string
}

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("normalize: unsupported format %q", e.Ext)
}

// Detect returns the document format for a storage key.
func Detect(key string) (Format, error) {
	base := strings.ToLower(path.Base(key))
	if strings.HasSuffix(base, ".email.json") {
		return FormatEmail, nil
	}
	switch path.Ext(base) {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDocx, nil
	case ".txt", ".md", ".markdown", ".text":
		return FormatText, nil
	default:
		return "", &ErrUnsupported{Ext: path.Ext(base)}
	}
}

// Text converts document bytes to plain text according to the key's
// detected format.
func Text(key string, data []byte) (string, error) {
	format, err := Detect(key)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatPDF:
		return extractPDF(data)
	case FormatDocx:
		return extractDocx(data)
	case FormatText:
		return normalizeWhitespace(string(data)), nil
	case FormatEmail:
		email, err := ParseEmail(data)
		if err != nil {
			return "", err
		}
		return email.Combined(), nil
	default:
		return "", &ErrUnsupported{Ext: path.Ext(key)}
	}
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
