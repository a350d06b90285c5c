package systems

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmytrogajewski/ett-summary/internal/config"
)

// System is one tenant with its prompt templates
type System struct {
	Key                   string
	InitialPromptTemplate string
	UpdatePromptTemplate  string
}

// BuildPrompt renders the prompt for a transcript. An empty summary selects
// the initial template, anything else the update template.
func (s System) BuildPrompt(summary, transcription string) string {
	if summary == "" {
		return strings.ReplaceAll(s.InitialPromptTemplate, config.PlaceholderTranscription, transcription)
	}
	// Single pass, so placeholders inside the substituted text stay literal.
	return strings.NewReplacer(
		config.PlaceholderSummary, summary,
		config.PlaceholderTranscription, transcription,
	).Replace(s.UpdatePromptTemplate)
}

// Registry holds the configured systems. It is immutable after construction
// and safe for concurrent reads.
type Registry struct {
	systems map[string]System
	keys    []string
}

// NewRegistry creates a registry from the configured systems
func NewRegistry(cfgs []config.SystemConfig) (*Registry, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no systems configured")
	}

	r := &Registry{
		systems: make(map[string]System, len(cfgs)),
		keys:    make([]string, 0, len(cfgs)),
	}
	for _, c := range cfgs {
		if _, exists := r.systems[c.Key]; exists {
			return nil, fmt.Errorf("duplicate system key: %s", c.Key)
		}
		r.systems[c.Key] = System{
			Key:                   c.Key,
			InitialPromptTemplate: c.InitialPrompt,
			UpdatePromptTemplate:  c.UpdatePrompt,
		}
		r.keys = append(r.keys, c.Key)
	}
	sort.Strings(r.keys)

	return r, nil
}

// Get retrieves a system by key
func (r *Registry) Get(key string) (System, bool) {
	sys, ok := r.systems[key]
	return sys, ok
}

// Has checks if a system is registered
func (r *Registry) Has(key string) bool {
	_, ok := r.systems[key]
	return ok
}

// Keys returns all registered system keys in sorted order
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.keys))
	copy(keys, r.keys)
	return keys
}
