package modules

// registry of all available modules, keyed by module id. Adding a module
// means adding an entry here; the core stays untouched.
var registry = map[string]Module{}

func register(m Module) {
	registry[m.ID()] = m
}

// Get resolves a module by id. Every active session must resolve or all
// mutating operations on it fail.
func Get(id string) (Module, error) {
	m, ok := registry[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

// All returns every registered module.
func All() []Module {
	out := make([]Module, 0, len(registry))
	for _, m := range registry {
		out = append(out, m)
	}
	return out
}
