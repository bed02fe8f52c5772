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

// Package transform implements the transformer registry: trait-aware
// registration, file dispatch, plan validation, and plan optimization. A
// Transformer composes shared content-loading/encoding helpers via free
// functions rather than base-class inheritance.
package transform

import "github.com/copytree/copytree/pkg/pipeline"

// ContentType enumerates the type tokens a Transformer declares in its
// traits' InputTypes/OutputTypes.
type ContentType string

const (
	TypeAny    ContentType = "any"
	TypeText   ContentType = "text"
	TypeBinary ContentType = "binary"
	TypePDF    ContentType = "pdf"
	TypeImage  ContentType = "image"
)

// Requirements describes external resources a transformer needs to run.
type Requirements struct {
	APIKey  bool
	Network bool
	// MemoryClass is an informal tag ("low", "medium", "high") consulted by
	// missing_resource plan validation when a memory budget is configured.
	MemoryClass string
}

// Traits is the declarative metadata the registry uses for validation and
// scheduling. Zero-value traits are normalized to the documented defaults
// by Normalize.
type Traits struct {
	InputTypes  []ContentType
	OutputTypes []ContentType

	Idempotent     bool
	Heavy          bool
	OrderSensitive bool
	Stateful       bool

	Dependencies  []string
	ConflictsWith []string
	Requirements  Requirements
	Tags          []string

	// Priority: higher wins when multiple transformers claim the same
	// extension/MIME type; ties broken by registration order.
	Priority int
}

// Normalize fills in trait defaults: idempotent=true, heavy=false,
// inputTypes=[text], outputTypes=[text], empty dependency/conflict/tag
// lists. It is applied once at registration so callers
// never have to special-case a zero Traits value.
func (t Traits) Normalize() Traits {
	if t.InputTypes == nil {
		t.InputTypes = []ContentType{TypeText}
	}
	if t.OutputTypes == nil {
		t.OutputTypes = []ContentType{TypeText}
	}
	// Idempotent defaults true; there is no way to distinguish "unset" from
	// "false" on a bool, so registration helpers that want idempotent=false
	// must set it explicitly via WithIdempotent(false) (see registry.go).
	return t
}

func hasType(types []ContentType, want ContentType) bool {
	for _, t := range types {
		if t == want || t == TypeAny {
			return true
		}
	}
	return false
}

// TypesCompatible reports whether producer's OutputTypes intersects
// consumer's InputTypes, with "any" on either side disabling the check
//.
func TypesCompatible(producer, consumer Traits) bool {
	for _, out := range producer.OutputTypes {
		if out == TypeAny {
			return true
		}
		if hasType(consumer.InputTypes, out) {
			return true
		}
	}
	for _, in := range consumer.InputTypes {
		if in == TypeAny {
			return true
		}
	}
	return false
}

// Transformer is the capability interface every content-level mutator
// implements: name, declared traits, and a two-step
// apply-if-applicable contract.
type Transformer interface {
	Name() string
	Traits() Traits
	CanTransform(file *pipeline.FileRecord) bool
	DoTransform(file *pipeline.FileRecord) (*pipeline.FileRecord, error)
}
