package app

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rancher/svn-action/internal/event"
	"github.com/rancher/svn-action/internal/fieldstore"
)

// collectFields merges the step fields from the fields file, INPUT_*
// variables and workflow_dispatch inputs, in increasing precedence.
func (r *Runner) collectFields() (map[string]any, error) {
	var fromFile map[string]any
	if r.cfg.FieldsFile != "" {
		loaded, err := fieldstore.LoadFile(r.cfg.FieldsFile)
		if err != nil {
			return nil, err
		}
		fromFile = loaded
	}

	fromEnv := fieldstore.FromEnv(os.LookupEnv)

	var fromDispatch map[string]any
	if r.cfg.EventName == "workflow_dispatch" && r.cfg.EventPath != "" {
		payload, err := event.ParseWorkflowDispatchEventFile(r.cfg.EventPath)
		if err != nil {
			return nil, fmt.Errorf("parse workflow_dispatch event: %w", err)
		}
		fromDispatch = dispatchFields(payload.Inputs)
		if r.log != nil && len(fromDispatch) > 0 {
			r.log.Debug("using workflow_dispatch inputs", "count", len(fromDispatch), "ref", payload.Ref)
		}
	}

	return fieldstore.Merge(fromFile, fromEnv, fromDispatch), nil
}

func dispatchFields(inputs map[string]any) map[string]any {
	fields := make(map[string]any)
	for name, value := range inputs {
		if !slices.Contains(fieldstore.Names, name) || value == nil {
			continue
		}
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		fields[name] = value
	}
	return fields
}
