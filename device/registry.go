// SPDX-License-Identifier: EPL-2.0

package device

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Opener opens target (a backend specific device name or path) for one
// direction.
type Opener func(target string, dir Direction, logger *zap.Logger) (Device, error)

// Registry of device backends by name (e.g., "file", "malgo", "oto").
type Registry struct {
	openers map[string]Opener

	mtx *sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		openers: make(map[string]Opener),
		mtx:     &sync.Mutex{},
	}
}

func (r *Registry) Register(backend string, o Opener) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.openers[backend] = o
}

func (r *Registry) Get(backend string) (Opener, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	o, ok := r.openers[backend]
	return o, ok
}

// Backends lists the registered names, sorted.
func (r *Registry) Backends() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	names := make([]string, 0, len(r.openers))
	for n := range r.openers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Open looks up backend and opens target with it.
func (r *Registry) Open(backend, target string, dir Direction, logger *zap.Logger) (Device, error) {
	o, ok := r.Get(backend)
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownBackend, backend, r.Backends())
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dev, err := o(target, dir, logger.With(zap.String("backend", backend), zap.String("target", target)))
	if err != nil {
		return nil, fmt.Errorf("opening %s device %q: %w", backend, target, err)
	}
	return dev, nil
}
