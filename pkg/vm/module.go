package vm

import "github.com/hooklang/hook/pkg/value"

// ModuleLoader produces a module's value the first time it is
// requested (spec.md §4.9). Built-in modules register themselves with
// the VM before a script runs; dynamically loading external native
// extensions at runtime is out of core scope (spec.md §1).
type ModuleLoader func(v *VM) (value.Value, error)

// moduleCache maps a module name to its loader and, once invoked, its
// cached result. It is VM-scoped rather than a package-level map
// (SPEC_FULL.md REDESIGN FLAG #4): independent VM instances never
// share a cache, so one embedder's module registrations cannot leak
// into another's.
type moduleCache struct {
	loaders map[string]ModuleLoader
	cached  map[string]value.Value
}

func newModuleCache() *moduleCache {
	return &moduleCache{
		loaders: make(map[string]ModuleLoader),
		cached:  make(map[string]value.Value),
	}
}

// loadModule implements the LoadModule opcode's cache-or-load
// protocol: a cache hit returns a fresh retained reference to the
// already-built value; a miss invokes the registered loader once and
// caches the result for every later load of the same name.
func (v *VM) loadModule(name string) (value.Value, error) {
	if cached, ok := v.modules.cached[name]; ok {
		return value.Retain(cached), nil
	}
	loader, ok := v.modules.loaders[name]
	if !ok {
		return value.Value{}, moduleNotFoundError(name)
	}
	result, err := loader(v)
	if err != nil {
		return value.Value{}, err
	}
	v.modules.cached[name] = value.Retain(result)
	v.log.Debug().Str("module", name).Msg("module loaded and cached")
	return value.Retain(result), nil
}

func moduleNotFoundError(name string) error {
	return &moduleNotFound{name: name}
}

type moduleNotFound struct{ name string }

func (e *moduleNotFound) Error() string { return "no loader registered for module " + e.name }
