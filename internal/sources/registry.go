package sources

// Registry holds the configured source adapters in declaration order
type Registry struct {
	sources []Source
	ranks   map[string]int
}

// NewRegistry creates an empty registry. Manual entries are always
// ranked, even though no adapter produces them.
func NewRegistry() *Registry {
	return &Registry{
		ranks: map[string]int{"manual": RankManual},
	}
}

// Register adds a source adapter
func (r *Registry) Register(s Source) {
	r.sources = append(r.sources, s)
	r.ranks[s.Name()] = s.Reliability()
}

// All returns the registered sources in registration order
func (r *Registry) All() []Source {
	return r.sources
}

// Names returns the registered source names in registration order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// Rank returns the reliability rank for a source name, 0 if unknown
func (r *Registry) Rank(source string) int {
	return r.ranks[source]
}
