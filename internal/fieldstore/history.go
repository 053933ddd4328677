package fieldstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// History carries outputs from one run of a step to the next.
type History interface {
	Load(ctx context.Context, key string) (map[string]string, error)
	Save(ctx context.Context, key string, outputs map[string]string) error
}

// Document is the persisted form of a history. Steps maps a step key to the
// outputs its last run recorded.
type Document struct {
	RunID     string                       `json:"run_id,omitempty"`
	UpdatedAt time.Time                    `json:"updated_at"`
	Steps     map[string]map[string]string `json:"steps"`
}

// ParseDocument decodes a history document. Empty input yields an empty
// document.
func ParseDocument(data []byte) (Document, error) {
	doc := Document{Steps: map[string]map[string]string{}}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode history: %w", err)
	}
	if doc.Steps == nil {
		doc.Steps = map[string]map[string]string{}
	}
	return doc, nil
}

// Put replaces the outputs of key and stamps the document.
func (d *Document) Put(key, runID string, outputs map[string]string, now time.Time) {
	if d.Steps == nil {
		d.Steps = map[string]map[string]string{}
	}
	d.Steps[key] = copyOutputs(outputs)
	d.RunID = runID
	d.UpdatedAt = now.UTC()
}

// Encode renders the document as indented JSON.
func (d Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return data, nil
}

// FileHistory keeps the history document in a local JSON file.
type FileHistory struct {
	Path  string
	RunID string
	Now   func() time.Time
}

func (h *FileHistory) Load(_ context.Context, key string) (map[string]string, error) {
	doc, err := h.read()
	if err != nil {
		return nil, err
	}
	return copyOutputs(doc.Steps[key]), nil
}

// Save writes the outputs of key, keeping the entries of other steps. The
// file is replaced atomically.
func (h *FileHistory) Save(_ context.Context, key string, outputs map[string]string) error {
	doc, err := h.read()
	if err != nil {
		return err
	}
	doc.Put(key, h.RunID, outputs, h.now())

	data, err := doc.Encode()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(h.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	tmp := h.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := os.Rename(tmp, h.Path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (h *FileHistory) read() (Document, error) {
	data, err := os.ReadFile(h.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ParseDocument(nil)
		}
		return Document{}, fmt.Errorf("read history: %w", err)
	}
	return ParseDocument(data)
}

func (h *FileHistory) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// NoopHistory remembers nothing.
type NoopHistory struct{}

func (NoopHistory) Load(context.Context, string) (map[string]string, error) { return nil, nil }

func (NoopHistory) Save(context.Context, string, map[string]string) error { return nil }
