// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package transform

import (
	"fmt"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Entry is one registered transformer: instance plus normalized traits and
// the extensions/MIME types it was registered under.
type Entry struct {
	Name       string
	Instance   Transformer
	Traits     Traits
	Extensions []string
	MIMETypes  []string

	order int // registration ordinal, used to break Priority ties
}

// Registry holds every registered transformer, read-only after Init
// completes.
type Registry struct {
	mu                 sync.RWMutex
	entries            map[string]*Entry
	order              []string
	byExtension        map[string][]*Entry
	byMIME             map[string][]*Entry
	defaultTransformer string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:     make(map[string]*Entry),
		byExtension: make(map[string][]*Entry),
		byMIME:      make(map[string][]*Entry),
	}
}

// Register records a transformer under name with the given extensions and
// MIME types it claims. Traits are normalized to their defaults.
func (r *Registry) Register(name string, inst Transformer, extensions, mimeTypes []string, traits Traits) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &Entry{
		Name:       name,
		Instance:   inst,
		Traits:     traits.Normalize(),
		Extensions: extensions,
		MIMETypes:  mimeTypes,
		order:      len(r.order),
	}
	r.entries[name] = e
	r.order = append(r.order, name)

	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		r.byExtension[ext] = append(r.byExtension[ext], e)
	}
	for _, m := range mimeTypes {
		r.byMIME[m] = append(r.byMIME[m], e)
	}
	return e
}

// SetDefault registers the fallback transformer name used when no
// extension or MIME entry claims a file.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultTransformer = name
}

// Get returns the registered entry by name.
func (r *Registry) Get(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// All returns every registered entry in registration order.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}

func highestPriority(entries []*Entry) *Entry {
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Traits.Priority > best.Traits.Priority {
			best = e
		} else if e.Traits.Priority == best.Traits.Priority && e.order < best.order {
			best = e
		}
	}
	return best
}

// GetForFile dispatches a file to a transformer entry along the
// extension -> MIME -> default chain. Multiple claimants on the same
// extension are broken by highest Priority, then registration order.
func (r *Registry) GetForFile(relPath string, sniff func() string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext := strings.ToLower(filepath.Ext(relPath))
	if candidates, ok := r.byExtension[ext]; ok && len(candidates) > 0 {
		return highestPriority(candidates), nil
	}

	if sniff != nil {
		mt := sniff()
		mt, _, _ = mime.ParseMediaType(mt)
		if candidates, ok := r.byMIME[mt]; ok && len(candidates) > 0 {
			return highestPriority(candidates), nil
		}
	}

	if r.defaultTransformer != "" {
		if e, ok := r.entries[r.defaultTransformer]; ok {
			return e, nil
		}
	}

	return nil, fmt.Errorf("transform: no transformer for %q", relPath)
}

// Names returns registered entries sorted by name, used by plan validation
// to present deterministic diagnostics.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]string(nil), r.order...)
	sort.Strings(out)
	return out
}

// CheckDependencies fails when the transitive Dependencies graph among the
// registered transformers contains a cycle, naming the cycle. Run once
// after registration, before the registry serves any plan.
func (r *Registry) CheckDependencies() error {
	if cyc := DetectCycle(r, r.Names()); len(cyc) > 0 {
		return fmt.Errorf("transform: circular transformer dependency: %s", strings.Join(cyc, " -> "))
	}
	return nil
}
