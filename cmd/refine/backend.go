package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/refine"
	"github.com/benbjohnson/refine/bitblast"
)

// backends holds the factories compiled into this binary. The cgo backends
// register themselves when built with their tag.
var backends = map[string]func(timeout time.Duration) refine.BackendFactory{
	"bitblast": bitblast.Factory,
}

func newBackendFactory(config refine.SolverConfig) (refine.BackendFactory, error) {
	fn := backends[config.Backend]
	if fn == nil {
		names := make([]string, 0, len(backends))
		for name := range backends {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("backend %q not compiled in; available: %v", config.Backend, names)
	}
	return fn(config.Timeout), nil
}
