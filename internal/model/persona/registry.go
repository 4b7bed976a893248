package persona

import "sort"

// Registry exposes persona retrieval for the dispatcher and HTTP handlers.
type Registry interface {
	List() []Definition
	FindByID(id string) (Definition, bool)
}

// MapRegistry implements Registry with an immutable map built at startup.
type MapRegistry struct {
	byID  map[string]Definition
	order []string
}

// NewRegistry builds a MapRegistry from the supplied definitions. Later
// duplicates of the same id are ignored; ids must be unique in config.
func NewRegistry(items []Definition) *MapRegistry {
	byID := make(map[string]Definition, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, exists := byID[item.ID]; exists {
			continue
		}
		byID[item.ID] = item
		order = append(order, item.ID)
	}
	sort.Strings(order)
	return &MapRegistry{byID: byID, order: order}
}

// List returns all definitions sorted by id.
func (r *MapRegistry) List() []Definition {
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// FindByID looks up a persona by identifier.
func (r *MapRegistry) FindByID(id string) (Definition, bool) {
	def, ok := r.byID[id]
	return def, ok
}
