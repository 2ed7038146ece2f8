package llm

import "strings"

// DocumentSearchModel is the pseudo-model name that bypasses generation and
// returns raw document context instead.
const DocumentSearchModel = "document-search"

// candidate pairs a configuration predicate with a provider constructor.
// Order matters: the first configured candidate becomes the default when no
// explicit provider preference is set.
type candidate struct {
	name       string
	configured func(Config) bool
	build      func(Config) Provider
}

var candidates = []candidate{
	{
		name:       "perplexity",
		configured: func(c Config) bool { return c.PerplexityAPIKey != "" },
		build: func(c Config) Provider {
			return NewPerplexityProvider(c.PerplexityAPIKey, c.PerplexityModel)
		},
	},
	{
		name:       "openai",
		configured: func(c Config) bool { return c.OpenAIAPIKey != "" },
		build: func(c Config) Provider {
			return NewOpenAIProvider(c.OpenAIAPIKey, c.OpenAIModel)
		},
	},
	{
		name:       "ibm",
		configured: func(c Config) bool { return c.IBMAPIKey != "" && c.IBMProjectID != "" },
		build: func(c Config) Provider {
			return NewWatsonxProvider(c.IBMAPIKey, c.IBMProjectID, c.IBMURL, c.IBMModel)
		},
	},
}

// Registry holds the providers that have credentials configured and knows
// which one answers by default.
type Registry struct {
	providers map[string]Provider
	byDefault Provider
}

// NewRegistry builds every configured provider. When preferred names a
// configured provider it becomes the default; otherwise the first configured
// candidate in detection order does. A registry with no providers is valid:
// the answer composer degrades to context-only answers.
func NewRegistry(cfg Config, preferred string) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, c := range candidates {
		if !c.configured(cfg) {
			continue
		}
		p := c.build(cfg)
		r.providers[c.name] = p
		if r.byDefault == nil {
			r.byDefault = p
		}
	}
	if preferred != "" {
		if p, ok := r.providers[preferred]; ok {
			r.byDefault = p
		}
	}
	return r
}

// Default returns the default provider, or nil when none is configured.
func (r *Registry) Default() Provider { return r.byDefault }

// Get returns the named provider, or nil when it is not configured.
func (r *Registry) Get(name string) Provider { return r.providers[name] }

// Empty reports whether no provider has credentials.
func (r *Registry) Empty() bool { return len(r.providers) == 0 }

// NameForModel maps a requested model name to the provider that serves it.
// An empty result means the model does not pin a provider and the default
// should be used.
func NameForModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case m == DocumentSearchModel:
		return DocumentSearchModel
	case strings.HasPrefix(m, "sonar") || strings.Contains(m, "perplexity"):
		return "perplexity"
	case strings.HasPrefix(m, "gpt") || strings.HasPrefix(m, "openai") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3"):
		return "openai"
	case strings.HasPrefix(m, "ibm") || strings.Contains(m, "granite"):
		return "ibm"
	default:
		return ""
	}
}
