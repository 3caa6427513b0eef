package module

import (
	"fmt"
	"sort"
	"sync"
)

var (
	handlersMu sync.RWMutex
	handlers   = make(map[string]HandlerFactory)
)

// RegisterHandler makes a handler factory available under the given name.
// It is intended to be called at startup, before the engine runs. It
// panics if the name is empty, the factory is nil, or the name is taken,
// matching the database/sql driver registration convention.
func RegisterHandler(name string, factory HandlerFactory) {
	handlersMu.Lock()
	defer handlersMu.Unlock()

	if name == "" {
		panic("module: RegisterHandler with empty name")
	}
	if factory == nil {
		panic("module: RegisterHandler with nil factory")
	}
	if _, dup := handlers[name]; dup {
		panic(fmt.Sprintf("module: RegisterHandler called twice for %q", name))
	}
	handlers[name] = factory
}

// LookupHandler returns the factory registered under name.
func LookupHandler(name string) (HandlerFactory, bool) {
	handlersMu.RLock()
	defer handlersMu.RUnlock()

	factory, ok := handlers[name]
	return factory, ok
}

// HandlerNames returns the registered handler names in sorted order.
func HandlerNames() []string {
	handlersMu.RLock()
	defer handlersMu.RUnlock()

	names := make([]string, 0, len(handlers))
	for n := range handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
