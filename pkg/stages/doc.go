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

// Package stages wires pkg/discovery, pkg/rules, pkg/gitutil, pkg/source,
// pkg/transform, pkg/secrets, and pkg/cache into the concrete pipeline.Stage
// graph described in the external design: Discovery -> Git filter ->
// Ruleset filter -> Always-include -> External-source merge -> Limit ->
// Load -> Transform -> Instructions/metadata injection -> Dedup -> Sort.
// Each stage is a thin adapter; the actual algorithms live in the packages
// it wires together.
package stages

import "github.com/copytree/copytree/pkg/pipeline"

// clampConcurrency bounds a configured worker-pool size to a sane range,
// mirroring pkg/discovery's own walker clamp so every fan-out stage in this
// package agrees on the same default/ceiling.
func clampConcurrency(n int) int {
	if n <= 0 {
		return 5
	}
	if n > 50 {
		return 50
	}
	return n
}

// cloneMeta returns a shallow copy of a FileRecord's metadata map, allocating
// a fresh one if m is nil, mirroring the helper pkg/transform/builtin keeps
// for the same purpose.
func cloneMeta(m map[string]pipeline.MetaValue) map[string]pipeline.MetaValue {
	if m == nil {
		return make(map[string]pipeline.MetaValue)
	}
	cp := make(map[string]pipeline.MetaValue, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
