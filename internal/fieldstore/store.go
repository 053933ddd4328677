// Package fieldstore holds the pipeline fields of one invocation, the outputs
// it records and the outputs a previous run of the same step left behind.
package fieldstore

import "sync"

// Store is the capability the orchestrator uses to talk to the pipeline host.
type Store interface {
	// Get returns a raw field value. Values keep the type their source
	// produced.
	Get(name string) (any, bool)
	// SetOutput records an output of the current run.
	SetOutput(name, value string)
	// PreviousOutput returns an output recorded by the previous run.
	PreviousOutput(name string) (string, bool)
}

// Output is a recorded name/value pair.
type Output struct {
	Name  string
	Value string
}

// Memory is an in-process Store.
type Memory struct {
	mu       sync.Mutex
	fields   map[string]any
	previous map[string]string
	outputs  []Output
	index    map[string]int
}

// NewMemory returns a Store over fields with the given previous outputs.
// Either map may be nil.
func NewMemory(fields map[string]any, previous map[string]string) *Memory {
	return &Memory{
		fields:   copyFields(fields),
		previous: copyOutputs(previous),
		index:    make(map[string]int),
	}
}

func (m *Memory) Get(name string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.fields[name]
	return v, ok
}

// SetOutput records value under name. Setting a name twice keeps its
// original position.
func (m *Memory) SetOutput(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[name]; ok {
		m.outputs[i].Value = value
		return
	}
	m.index[name] = len(m.outputs)
	m.outputs = append(m.outputs, Output{Name: name, Value: value})
}

func (m *Memory) PreviousOutput(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.previous[name]
	return v, ok
}

// Outputs returns the recorded outputs in the order they were first set.
func (m *Memory) Outputs() []Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Output(nil), m.outputs...)
}

// OutputMap returns the recorded outputs keyed by name.
func (m *Memory) OutputMap() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.outputs))
	for _, o := range m.outputs {
		out[o.Name] = o.Value
	}
	return out
}

// Merge combines field sources. Later sources override earlier ones.
func Merge(sources ...map[string]any) map[string]any {
	merged := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			merged[k] = v
		}
	}
	return merged
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyOutputs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
