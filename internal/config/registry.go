package config

import (
	"errors"
	"fmt"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/sonara-health/sonara/pkg/provider/analysis"
	analysisanyllm "github.com/sonara-health/sonara/pkg/provider/analysis/anyllm"
	analysisopenai "github.com/sonara-health/sonara/pkg/provider/analysis/openai"
	"github.com/sonara-health/sonara/pkg/provider/embeddings"
	embeddingsopenai "github.com/sonara-health/sonara/pkg/provider/embeddings/openai"
	"github.com/sonara-health/sonara/pkg/provider/stt"
	sttopenai "github.com/sonara-health/sonara/pkg/provider/stt/openai"
	"github.com/sonara-health/sonara/pkg/provider/stt/whispercpp"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory
// has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	stt        map[string]func(ProviderEntry) (stt.Provider, error)
	analysis   map[string]func(ProviderEntry) (analysis.Provider, error)
	embeddings map[string]func(ProviderEntry) (embeddings.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:        make(map[string]func(ProviderEntry) (stt.Provider, error)),
		analysis:   make(map[string]func(ProviderEntry) (analysis.Provider, error)),
		embeddings: make(map[string]func(ProviderEntry) (embeddings.Provider, error)),
	}
}

// RegisterSTT registers an STT provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterAnalysis registers an analysis provider factory under name.
func (r *Registry) RegisterAnalysis(name string, factory func(ProviderEntry) (analysis.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.analysis[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embeddings.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// CreateSTT instantiates an STT provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateAnalysis instantiates an analysis provider using the factory
// registered under entry.Name.
func (r *Registry) CreateAnalysis(entry ProviderEntry) (analysis.Provider, error) {
	r.mu.RLock()
	factory, ok := r.analysis[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: analysis/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory
// registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embeddings.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// DefaultRegistry returns a [Registry] with all built-in providers
// registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterSTT("openai", func(entry ProviderEntry) (stt.Provider, error) {
		var opts []sttopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, sttopenai.WithBaseURL(entry.BaseURL))
		}
		return sttopenai.New(entry.APIKey, entry.Model, opts...)
	})
	r.RegisterSTT("whispercpp", func(entry ProviderEntry) (stt.Provider, error) {
		var opts []whispercpp.Option
		if entry.Model != "" {
			opts = append(opts, whispercpp.WithModel(entry.Model))
		}
		return whispercpp.New(entry.BaseURL, opts...)
	})

	r.RegisterAnalysis("openai", func(entry ProviderEntry) (analysis.Provider, error) {
		var opts []analysisopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, analysisopenai.WithBaseURL(entry.BaseURL))
		}
		return analysisopenai.New(entry.APIKey, entry.Model, opts...)
	})
	// Every backend any-llm-go supports is available as an analysis
	// provider under its own name.
	for _, backend := range []string{"anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"} {
		name := backend
		r.RegisterAnalysis(name, func(entry ProviderEntry) (analysis.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return analysisanyllm.New(name, entry.Model, opts...)
		})
	}

	r.RegisterEmbeddings("openai", func(entry ProviderEntry) (embeddings.Provider, error) {
		var opts []embeddingsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, embeddingsopenai.WithBaseURL(entry.BaseURL))
		}
		return embeddingsopenai.New(entry.APIKey, entry.Model, opts...)
	})

	return r
}
