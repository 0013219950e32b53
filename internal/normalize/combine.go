package normalize

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// CombinePDFs merges multiple PDF documents into one, preserving input
// order. Submissions sometimes arrive as several attachments that together
// form the solicitation; the pipeline analyzes them as a single document.
func CombinePDFs(docs [][]byte) ([]byte, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("normalize: no documents to combine")
	}
	if len(docs) == 1 {
		return docs[0], nil
	}
	readers := make([]io.ReadSeeker, len(docs))
	for i, doc := range docs {
		readers[i] = bytes.NewReader(doc)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, nil); err != nil {
		return nil, fmt.Errorf("normalize: merge pdfs: %w", err)
	}
	return out.Bytes(), nil
}
