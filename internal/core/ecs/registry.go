package ecs

// Registry tracks the component stores of every pooled type so a destroyed
// instance leaves nothing behind.
type Registry struct {
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Removable, 0, 4),
	}
}

// Register adds a component store to the registry.
func (r *Registry) Register(store Removable) {
	r.stores = append(r.stores, store)
}

// Stores returns the number of registered stores.
func (r *Registry) Stores() int { return len(r.stores) }

// RemoveAll clears id from every registered store and returns how many
// components it held.
func (r *Registry) RemoveAll(id EntityID) int {
	n := 0
	for _, s := range r.stores {
		if s.Remove(id) {
			n++
		}
	}
	return n
}
