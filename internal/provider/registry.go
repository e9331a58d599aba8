package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// Backend names a provider and the model and credentials to use with it.
type Backend struct {
	Name    string
	Model   string
	APIKey  string
	BaseURL string
}

// Factory builds a provider from a Backend.
type Factory func(b Backend, log *logging.Logger) (Provider, error)

type preset struct {
	factory string
	baseURL string
	model   string
}

// OpenAI-compatible services reachable through the openai adapter.
var presets = map[string]preset{
	"openai":     {factory: "openai", baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
	"openrouter": {factory: "openai", baseURL: "https://openrouter.ai/api/v1", model: "openai/gpt-4o-mini"},
	"groq":       {factory: "openai", baseURL: "https://api.groq.com/openai/v1", model: "llama-3.3-70b-versatile"},
	"ollama":     {factory: "ollama", baseURL: "http://localhost:11434", model: "llama3.2"},
}

// Registry maps provider names to factories and resolves aliases.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	aliases   map[string]string
	root      *logging.Logger
	log       *logging.Logger
}

// NewRegistry creates a registry with the openai and ollama adapters and
// their known presets.
func NewRegistry(log *logging.Logger) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
		root:      log,
		log:       log.Sub("provider.registry"),
	}
	r.Register("openai", func(b Backend, log *logging.Logger) (Provider, error) {
		return NewOpenAI(b, log)
	})
	r.Register("ollama", func(b Backend, log *logging.Logger) (Provider, error) {
		return NewOllama(b, log)
	})
	for name, p := range presets {
		if name != p.factory {
			r.Alias(name, p.factory)
		}
	}
	r.Alias("lmstudio", "openai")
	return r
}

// Register adds a factory under name, replacing any earlier one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	r.log.Debug().Str("provider", name).Msg("registered provider factory")
}

// Alias routes name to the factory registered as target.
func (r *Registry) Alias(name, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[name] = target
}

// Names returns every resolvable provider name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories)+len(r.aliases))
	for n := range r.factories {
		names = append(names, n)
	}
	for n := range r.aliases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name resolves to a factory.
func (r *Registry) Known(name string) bool {
	_, ok := r.factory(name)
	return ok
}

// Build creates a provider. Preset base URLs and models fill empty fields.
// Resolution order: exact factory name, then alias.
func (r *Registry) Build(b Backend) (Provider, error) {
	b.Name = strings.ToLower(strings.TrimSpace(b.Name))
	f, ok := r.factory(b.Name)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (known: %s)", b.Name, strings.Join(r.Names(), ", "))
	}
	if p, ok := presets[b.Name]; ok {
		if b.BaseURL == "" {
			b.BaseURL = p.baseURL
		}
		if b.Model == "" {
			b.Model = p.model
		}
	}
	if b.Model == "" {
		return nil, fmt.Errorf("provider %q needs a model", b.Name)
	}
	return f(b, r.root)
}

// BuildChain creates the primary provider and, when fallbacks are given, a
// Failover over them. A fallback is either "provider:model" or a bare model
// served by the primary's provider.
func (r *Registry) BuildChain(primary Backend, fallbacks []string) (Provider, error) {
	first, err := r.Build(primary)
	if err != nil {
		return nil, err
	}
	if len(fallbacks) == 0 {
		return first, nil
	}

	rest := make([]Provider, 0, len(fallbacks))
	for _, fb := range fallbacks {
		b := primary
		name, model, found := strings.Cut(fb, ":")
		if found && r.Known(strings.ToLower(name)) {
			b = Backend{Name: name, Model: model}
			if strings.EqualFold(name, primary.Name) {
				b.APIKey, b.BaseURL = primary.APIKey, primary.BaseURL
			}
		} else {
			b.Model = fb
		}
		p, err := r.Build(b)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", fb, err)
		}
		rest = append(rest, p)
	}
	return NewFailover(r.root, first, rest...), nil
}

func (r *Registry) factory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if f, ok := r.factories[name]; ok {
		return f, true
	}
	if target, ok := r.aliases[name]; ok {
		f, ok := r.factories[target]
		return f, ok
	}
	return nil, false
}
