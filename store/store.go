// Package store routes a connection URL to a registered data layer backend.
// Backends register themselves from their package init; importing a backend
// package is what makes its scheme available.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/threadkeep/threadkeep/datalayer"
)

// Options carries everything a backend needs to open a store. URL is the
// only required field; its scheme selects the backend.
type Options struct {
	// URL is a mongodb:// / mongodb+srv:// connection string, a sqlite://
	// path, a bare filesystem path, or ":memory:".
	URL string
	// DBName applies to server backends and is ignored by file-backed ones.
	DBName string

	Logger *slog.Logger

	// DebugURLTemplate is a fmt template with one %s verb for the thread id.
	DebugURLTemplate string
}

// Opener opens a backend store from the shared options.
type Opener func(ctx context.Context, opts Options) (datalayer.DataLayer, error)

var (
	mu      sync.RWMutex
	openers = map[string]Opener{}
)

// Register installs an Opener under a backend name. Call from package init;
// registering the same name twice is a programming error.
func Register(name string, open Opener) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := openers[name]; ok {
		panic("store: backend already registered: " + name)
	}
	openers[name] = open
}

// BackendFor maps a connection URL to the backend name that handles it.
// Anything that is not a mongodb URL is treated as a sqlite path.
func BackendFor(url string) string {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(url, "mongodb://") || strings.HasPrefix(url, "mongodb+srv://") {
		return "mongo"
	}
	return "sqlite"
}

// Open resolves the backend from opts.URL and opens it.
func Open(ctx context.Context, opts Options) (datalayer.DataLayer, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, fmt.Errorf("missing database url")
	}

	name := BackendFor(opts.URL)
	mu.RLock()
	open, ok := openers[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend %q not registered (have: %s)", name, strings.Join(registered(), ", "))
	}
	return open(ctx, opts)
}

func registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
