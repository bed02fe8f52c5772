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

// Package profile loads project profile files discovered by convention in
// the project root: .copytree.yml, .copytree.json, a bare .copytree INI
// file, and named variants (.copytree-<name>.<ext>). A profile supplies
// include/exclude/always lists, transformer enable/disable/config, and
// output defaults that seed pipeline.Options before CLI flags override
// them. YAML takes precedence over JSON when both exist.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	copytreeerrors "github.com/copytree/copytree/internal/errors"
	"github.com/copytree/copytree/pkg/pipeline"
)

// TransformerConfig is one profile entry under "transformers".
type TransformerConfig struct {
	// Enabled is tri-state: nil means "leave the registry default alone".
	Enabled *bool          `yaml:"enabled" json:"enabled"`
	Options map[string]any `yaml:"options" json:"options"`
}

// OutputConfig carries the profile's output defaults. Pointer fields are
// tri-state so merging can tell "unset" from "explicitly false".
type OutputConfig struct {
	Format         string `yaml:"format" json:"format"`
	ShowSize       *bool  `yaml:"showSize" json:"showSize"`
	AddLineNumbers *bool  `yaml:"addLineNumbers" json:"addLineNumbers"`
	OnlyTree       *bool  `yaml:"onlyTree" json:"onlyTree"`
}

// Profile is the parsed, validated contents of one profile file.
type Profile struct {
	Name    string   `yaml:"name" json:"name"`
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
	Always  []string `yaml:"always" json:"always"`

	Transformers map[string]TransformerConfig `yaml:"transformers" json:"transformers"`
	Output       OutputConfig                 `yaml:"output" json:"output"`

	// Path is the file the profile was loaded from.
	Path string `yaml:"-" json:"-"`
	// Warnings records ignored unknown keys and other non-fatal oddities.
	Warnings []string `yaml:"-" json:"-"`
}

// recognizedKeys are the top-level keys the schema defines; anything else
// is ignored with a warning rather than an error.
var recognizedKeys = map[string]bool{
	"name": true, "include": true, "exclude": true, "always": true,
	"transformers": true, "output": true,
}

var recognizedOutputKeys = map[string]bool{
	"format": true, "showSize": true, "addLineNumbers": true, "onlyTree": true,
}

// Discover finds the default profile file in dir, honoring the YAML >
// JSON > INI precedence. Returns "" when no profile file exists.
func Discover(dir string) string {
	for _, name := range []string{".copytree.yml", ".copytree.yaml", ".copytree.json", ".copytree"} {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// DiscoverNamed finds the named profile variant .copytree-<name>.<ext> in
// dir, with the same extension precedence as Discover.
func DiscoverNamed(dir, name string) string {
	for _, ext := range []string{".yml", ".yaml", ".json", ""} {
		p := filepath.Join(dir, ".copytree-"+name+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// List enumerates every profile file present in dir: the default profile
// (if any) first, then named variants sorted by name.
func List(dir string) []string {
	var out []string
	if p := Discover(dir); p != "" {
		out = append(out, p)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return out
	}
	var named []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), ".copytree-") {
			named = append(named, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(named)
	return append(out, named...)
}

// Load parses the profile file at path, picking the parser from the file
// extension: .yml/.yaml → YAML, .json → JSON, anything else → INI.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, copytreeerrors.NewConfigurationError(
			"Cannot read profile file", err.Error(),
			"Check that the profile file exists and is readable", err)
	}

	var p *Profile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		p, err = parseYAML(data)
	case ".json":
		p, err = parseJSON(data)
	default:
		p, err = parseINI(data)
	}
	if err != nil {
		return nil, copytreeerrors.NewConfigurationError(
			fmt.Sprintf("Invalid profile file %s", filepath.Base(path)),
			err.Error(),
			"Fix the syntax error in the profile file", err)
	}

	p.Path = path
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseYAML(data []byte) (*Profile, error) {
	// Decode twice: once loosely to catch unknown keys for warnings, once
	// strictly into the schema struct.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	p.Warnings = unknownKeyWarnings(raw)
	return &p, nil
}

func parseJSON(data []byte) (*Profile, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	p.Warnings = unknownKeyWarnings(raw)
	return &p, nil
}

func unknownKeyWarnings(raw map[string]any) []string {
	var warnings []string
	for k := range raw {
		if !recognizedKeys[k] {
			warnings = append(warnings, fmt.Sprintf("profile: ignoring unknown key %q", k))
		}
	}
	if out, ok := raw["output"].(map[string]any); ok {
		for k := range out {
			if !recognizedOutputKeys[k] {
				warnings = append(warnings, fmt.Sprintf("profile: ignoring unknown output key %q", k))
			}
		}
	}
	sort.Strings(warnings)
	return warnings
}

// parseINI handles the bare .copytree variant: "key = value" lines, list
// values comma-separated, sections [output] and [transformers.<name>].
func parseINI(data []byte) (*Profile, error) {
	p := &Profile{}
	section := ""
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSpace(line[1 : len(line)-1])
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: expected key = value, got %q", i+1, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case section == "":
			switch key {
			case "name":
				p.Name = value
			case "include":
				p.Include = splitList(value)
			case "exclude":
				p.Exclude = splitList(value)
			case "always":
				p.Always = splitList(value)
			default:
				p.Warnings = append(p.Warnings, fmt.Sprintf("profile: ignoring unknown key %q", key))
			}
		case section == "output":
			switch key {
			case "format":
				p.Output.Format = value
			case "showSize":
				p.Output.ShowSize = parseBoolPtr(value)
			case "addLineNumbers":
				p.Output.AddLineNumbers = parseBoolPtr(value)
			case "onlyTree":
				p.Output.OnlyTree = parseBoolPtr(value)
			default:
				p.Warnings = append(p.Warnings, fmt.Sprintf("profile: ignoring unknown output key %q", key))
			}
		case strings.HasPrefix(section, "transformers."):
			name := strings.TrimPrefix(section, "transformers.")
			if p.Transformers == nil {
				p.Transformers = make(map[string]TransformerConfig)
			}
			tc := p.Transformers[name]
			if key == "enabled" {
				tc.Enabled = parseBoolPtr(value)
			} else {
				if tc.Options == nil {
					tc.Options = make(map[string]any)
				}
				tc.Options[key] = value
			}
			p.Transformers[name] = tc
		default:
			p.Warnings = append(p.Warnings, fmt.Sprintf("profile: ignoring unknown section %q", section))
		}
	}
	return p, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBoolPtr(value string) *bool {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return nil
	}
	return &b
}

func (p *Profile) validate() error {
	if p.Output.Format != "" {
		switch pipeline.OutputFormat(p.Output.Format) {
		case pipeline.FormatXML, pipeline.FormatJSON, pipeline.FormatMarkdown,
			pipeline.FormatTree, pipeline.FormatNDJSON, pipeline.FormatSARIF:
		default:
			return copytreeerrors.NewConfigurationError(
				fmt.Sprintf("Unknown output format %q in profile", p.Output.Format),
				"The output.format key names a format copytree cannot render",
				"Use one of: xml, json, markdown, tree, ndjson, sarif", nil)
		}
	}
	return nil
}

// Apply overlays the profile onto opts, returning the merged Options.
// Profile lists append to (not replace) whatever the caller already set;
// scalar output defaults apply only where the profile set them. CLI flags
// applied after Apply still win.
func (p *Profile) Apply(opts pipeline.Options) pipeline.Options {
	opts.Include = append(opts.Include, p.Include...)
	opts.Exclude = append(opts.Exclude, p.Exclude...)
	opts.Always = append(opts.Always, p.Always...)

	if p.Output.Format != "" {
		opts.Format = pipeline.OutputFormat(p.Output.Format)
	}
	if p.Output.ShowSize != nil {
		opts.ShowSize = *p.Output.ShowSize
	}
	if p.Output.AddLineNumbers != nil {
		opts.AddLineNumbers = *p.Output.AddLineNumbers
	}
	if p.Output.OnlyTree != nil {
		opts.OnlyTree = *p.Output.OnlyTree
	}

	for name, tc := range p.Transformers {
		if tc.Enabled != nil && *tc.Enabled {
			opts.Transformers = appendUnique(opts.Transformers, name)
		}
	}
	sort.Strings(opts.Transformers)
	return opts
}

// DisabledTransformers lists the transformer names the profile explicitly
// turns off, for the registry wiring to skip.
func (p *Profile) DisabledTransformers() []string {
	var out []string
	for name, tc := range p.Transformers {
		if tc.Enabled != nil && !*tc.Enabled {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
