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

// Package testing provides fixture helpers shared by the discovery, rules,
// and pipeline test suites: building a temp directory tree from a
// path->content map, and reading it back for assertions.
//
//	root := testing.BuildTree(t, map[string]string{
//	    "README.md":  "# hi\n",
//	    "src/app.js": "console.log(1)\n",
//	    ".gitignore": "*.log\n",
//	})
package testing
