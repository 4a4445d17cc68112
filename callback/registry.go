package callback

import "sync"

// registry resolves (module, function) names to callables. Named
// descriptors survive serialisation (transform URIs, config files), so
// the application must populate the registry at startup.
var registry sync.Map // "module.function" -> Func

// Register binds a callable under (module, function). Re-registering a
// name replaces the previous callable.
func Register(module, function string, fn Func) {
	registry.Store(module+"."+function, fn)
}

// Unregister removes a binding. Mainly useful in tests.
func Unregister(module, function string) {
	registry.Delete(module + "." + function)
}

// Lookup resolves a (module, function) name.
func Lookup(module, function string) (Func, bool) {
	v, ok := registry.Load(module + "." + function)
	if !ok {
		return nil, false
	}
	return v.(Func), true
}
