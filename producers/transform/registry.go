package transform

import (
	"sync"

	"github.com/meigma/resx/resource"
)

// registry resolves transformer identifiers. Names appear inside
// transform URIs, so the application must register its transformers
// before parsing references that mention them.
var registry sync.Map // name -> resource.Transformer

// Register binds a transformer under an identifier. Re-registering a
// name replaces the previous transformer.
func Register(name string, t resource.Transformer) {
	registry.Store(name, t)
}

// Unregister removes a transformer binding.
func Unregister(name string) {
	registry.Delete(name)
}

// Lookup resolves a transformer identifier.
func Lookup(name string) (resource.Transformer, bool) {
	v, ok := registry.Load(name)
	if !ok {
		return nil, false
	}
	return v.(resource.Transformer), true
}
