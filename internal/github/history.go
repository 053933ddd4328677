package gh

import (
	"context"
	"fmt"
	"time"

	"github.com/rancher/svn-action/internal/fieldstore"
)

// VariableHistory stores step history in repository Actions variables, one
// variable per step key, so that it survives across workflow runs.
type VariableHistory struct {
	Client Client
	Owner  string
	Repo   string
	// Prefix is prepended to the step key to form the variable name.
	Prefix string
	RunID  string
	Now    func() time.Time
}

var _ fieldstore.History = (*VariableHistory)(nil)

func (h *VariableHistory) Load(ctx context.Context, key string) (map[string]string, error) {
	doc, err := h.read(ctx, key)
	if err != nil {
		return nil, err
	}
	return doc.Steps[key], nil
}

func (h *VariableHistory) Save(ctx context.Context, key string, outputs map[string]string) error {
	doc, err := h.read(ctx, key)
	if err != nil {
		return err
	}
	now := time.Now()
	if h.Now != nil {
		now = h.Now()
	}
	doc.Put(key, h.RunID, outputs, now)

	data, err := doc.Encode()
	if err != nil {
		return err
	}
	return h.Client.PutVariable(ctx, h.Owner, h.Repo, VariableName(h.Prefix, key), string(data))
}

func (h *VariableHistory) read(ctx context.Context, key string) (fieldstore.Document, error) {
	name := VariableName(h.Prefix, key)
	value, found, err := h.Client.GetVariable(ctx, h.Owner, h.Repo, name)
	if err != nil {
		return fieldstore.Document{}, err
	}
	if !found {
		return fieldstore.ParseDocument(nil)
	}
	doc, err := fieldstore.ParseDocument([]byte(value))
	if err != nil {
		return fieldstore.Document{}, fmt.Errorf("variable %s: %w", name, err)
	}
	return doc, nil
}
