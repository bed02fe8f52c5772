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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Defaults(t *testing.T) {
	n := Traits{}.Normalize()
	assert.Equal(t, []ContentType{TypeText}, n.InputTypes)
	assert.Equal(t, []ContentType{TypeText}, n.OutputTypes)
}

func TestGetForFile_ExtensionDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register("markdown", &stub{name: "markdown"}, []string{".md"}, nil, Traits{Idempotent: true})

	e, err := reg.GetForFile("docs/README.md", func() string { return "" })
	require.NoError(t, err)
	assert.Equal(t, "markdown", e.Name)
}

func TestGetForFile_MIMEFallback(t *testing.T) {
	reg := NewRegistry()
	reg.Register("pdf", &stub{name: "pdf"}, nil, []string{"application/pdf"}, Traits{Idempotent: true})

	e, err := reg.GetForFile("paper.bin", func() string { return "application/pdf" })
	require.NoError(t, err)
	assert.Equal(t, "pdf", e.Name)
}

func TestGetForFile_DefaultFallback(t *testing.T) {
	reg := NewRegistry()
	reg.Register("binary", &stub{name: "binary"}, nil, nil, Traits{Idempotent: true})
	reg.SetDefault("binary")

	e, err := reg.GetForFile("mystery.xyz", func() string { return "" })
	require.NoError(t, err)
	assert.Equal(t, "binary", e.Name)
}

func TestGetForFile_NoMatchErrors(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.GetForFile("mystery.xyz", func() string { return "" })
	require.Error(t, err)
}

func TestGetForFile_PriorityBreaksExtensionTies(t *testing.T) {
	reg := NewRegistry()
	reg.Register("generic", &stub{name: "generic"}, []string{".csv"}, nil, Traits{Idempotent: true})
	reg.Register("fancy", &stub{name: "fancy"}, []string{".csv"}, nil, Traits{Idempotent: true, Priority: 10})

	e, err := reg.GetForFile("data.csv", func() string { return "" })
	require.NoError(t, err)
	assert.Equal(t, "fancy", e.Name)
}

func TestGetForFile_RegistrationOrderBreaksPriorityTies(t *testing.T) {
	reg := NewRegistry()
	reg.Register("first", &stub{name: "first"}, []string{".csv"}, nil, Traits{Idempotent: true})
	reg.Register("second", &stub{name: "second"}, []string{".csv"}, nil, Traits{Idempotent: true})

	e, err := reg.GetForFile("data.csv", func() string { return "" })
	require.NoError(t, err)
	assert.Equal(t, "first", e.Name)
}

func TestAll_RegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register("b", &stub{name: "b"}, nil, nil, Traits{Idempotent: true})
	reg.Register("a", &stub{name: "a"}, nil, nil, Traits{Idempotent: true})

	var names []string
	for _, e := range reg.All() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"b", "a"}, names)
	assert.Equal(t, []string{"a", "b"}, reg.Names())
}
