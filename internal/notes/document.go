package notes

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Document is the on-disk form of a transcription run
type Document struct {
	Source string `json:"source,omitempty"`
	Notes  []Note `json:"notes"`
}

// Decode reads a note document from r
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse notes: %w", err)
	}
	return &doc, nil
}

// Load reads a note document from a JSON file
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open notes: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes doc as indented JSON
func (doc *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
