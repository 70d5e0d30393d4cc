// Copyright 2023 The acquirecloud Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package arena

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cshenton/block-allocator/golibs/container/bytes"
	"github.com/cshenton/block-allocator/golibs/errors"
	"github.com/cshenton/block-allocator/golibs/logging"
)

type (
	// BufferFactory builds the backing bts.Buffer for a newly created
	// arena, given the size the caller asked for.
	BufferFactory func(totalSize uint32) (bytes.Buffer, error)

	// Registry owns a named collection of Arenas sharing one
	// BufferFactory. It is meant to be registered as a linker.Component so
	// Init/Shutdown are driven by the enclosing application's lifecycle.
	Registry struct {
		newBuffer BufferFactory
		logger    logging.Logger

		lock    sync.Mutex
		arenas  map[string]*Arena
		byToken map[uuid.UUID]string
	}
)

// NewRegistry creates a Registry that builds each arena's backing storage
// with newBuffer (e.g. an in-memory buffer or an MMFile-backed one).
func NewRegistry(newBuffer BufferFactory) *Registry {
	return &Registry{
		newBuffer: newBuffer,
		arenas:    map[string]*Arena{},
		byToken:   map[uuid.UUID]string{},
	}
}

// Init implements linker.Initializer.
func (r *Registry) Init(ctx context.Context) error {
	r.logger = logging.NewLogger("arena.Registry")
	r.logger.Infof("arena registry initialized")
	return nil
}

// Shutdown implements linker.Shutdowner.
func (r *Registry) Shutdown() {
	r.lock.Lock()
	defer r.lock.Unlock()
	for name, a := range r.arenas {
		if err := a.Close(); err != nil {
			r.logger.Warnf("closing arena %q: %v", name, err)
		}
	}
	r.arenas = map[string]*Arena{}
	r.byToken = map[uuid.UUID]string{}
}

// Create allocates a new named Arena of totalSize bytes and returns an
// opaque token identifying it. The name must be unique within the registry.
func (r *Registry) Create(name string, totalSize uint32) (uuid.UUID, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, exists := r.arenas[name]; exists {
		return uuid.UUID{}, fmt.Errorf("arena %q already exists: %w", name, errors.ErrExist)
	}

	buf, err := r.newBuffer(totalSize)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("could not allocate backing storage for arena %q: %w", name, err)
	}
	a, err := New(name, totalSize, buf)
	if err != nil {
		_ = buf.Close()
		return uuid.UUID{}, err
	}

	token := uuid.New()
	r.arenas[name] = a
	r.byToken[token] = name
	return token, nil
}

// Get returns the Arena identified by token.
func (r *Registry) Get(token uuid.UUID) (*Arena, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	name, ok := r.byToken[token]
	if !ok {
		return nil, fmt.Errorf("unknown arena token %s: %w", token, errors.ErrNotExist)
	}
	return r.arenas[name], nil
}

// Remove closes and forgets the Arena identified by token.
func (r *Registry) Remove(token uuid.UUID) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	name, ok := r.byToken[token]
	if !ok {
		return fmt.Errorf("unknown arena token %s: %w", token, errors.ErrNotExist)
	}
	a := r.arenas[name]
	delete(r.arenas, name)
	delete(r.byToken, token)
	return a.Close()
}

// Names returns the names of every arena currently registered.
func (r *Registry) Names() []string {
	r.lock.Lock()
	defer r.lock.Unlock()

	names := make([]string, 0, len(r.arenas))
	for name := range r.arenas {
		names = append(names, name)
	}
	return names
}
