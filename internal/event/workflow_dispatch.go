package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/go-github/v55/github"
)

// DispatchPayload captures the subset of a workflow_dispatch event used by
// the action.
type DispatchPayload struct {
	Ref        string
	Workflow   string
	Repository Repository
	// Inputs holds the dispatch inputs with the JSON types the event carried.
	Inputs map[string]any
}

// Repository identifies the owner/name of the repository where the event originated.
type Repository struct {
	Owner string
	Name  string
}

// ParseWorkflowDispatchEvent decodes a GitHub workflow_dispatch event payload
// from the provided reader. Events of other types decode to empty inputs.
func ParseWorkflowDispatchEvent(r io.Reader) (DispatchPayload, error) {
	var raw github.WorkflowDispatchEvent

	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return DispatchPayload{}, fmt.Errorf("decode workflow_dispatch event: %w", err)
	}

	payload := DispatchPayload{
		Ref:      strings.TrimSpace(raw.GetRef()),
		Workflow: strings.TrimSpace(raw.GetWorkflow()),
		Repository: Repository{
			Owner: strings.TrimSpace(raw.GetRepo().GetOwner().GetLogin()),
			Name:  strings.TrimSpace(raw.GetRepo().GetName()),
		},
		Inputs: map[string]any{},
	}

	inputs := bytes.TrimSpace(raw.Inputs)
	if len(inputs) == 0 || bytes.Equal(inputs, []byte("null")) {
		return payload, nil
	}

	dec = json.NewDecoder(bytes.NewReader(inputs))
	dec.UseNumber()
	if err := dec.Decode(&payload.Inputs); err != nil {
		return DispatchPayload{}, fmt.Errorf("decode workflow_dispatch inputs: %w", err)
	}

	return payload, nil
}

// ParseWorkflowDispatchEventFile reads the event JSON from disk.
func ParseWorkflowDispatchEventFile(path string) (DispatchPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return DispatchPayload{}, fmt.Errorf("open event file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close event file: %v\n", closeErr)
		}
	}()

	return ParseWorkflowDispatchEvent(f)
}
