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

// Package format implements the streaming output layer: one
// prologue/body/epilogue writer per artifact format (XML, JSON, Markdown,
// Tree, NDJSON, SARIF), each emitting a chunk per file with bounded memory.
// Every writer uses the same Render entrypoint whether the caller wants the
// result streamed straight to a sink or buffered into a string, so the
// round-trip byte-identity guarantee holds by construction:
// there is only one code path.
package format

import (
	"bufio"
	"bytes"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/copytree/copytree/pkg/pipeline"
)

// SecretFinding is the minimal shape the SARIF writer needs from a secret
// scan; pkg/secrets produces these without pkg/format depending on
// pkg/secrets, keeping the formatter's import graph a leaf.
type SecretFinding struct {
	RuleID      string
	Path        string
	StartLine   int
	EndLine     int
	StartColumn int
	EndColumn   int
	Match       string
	Tags        []string
}

// RenderOptions configures one Render call, carrying the external-interface
// options relevant to output shaping.
type RenderOptions struct {
	BaseDir        string
	Generated      time.Time
	AddLineNumbers bool
	ShowSize       bool
	OnlyTree       bool
	Instructions   string

	// CharLimit bounds the total number of characters written to the sink
	// across the whole artifact; 0 means unlimited. Content past the limit
	// is silently dropped rather than erroring, matching a best-effort
	// "paste budget" rather than a hard validation rule.
	CharLimit int

	Findings []SecretFinding
}

// Stats is the subset of pipeline.PipelineStats the epilogue reports.
type Stats struct {
	FileCount  int
	TotalBytes int64
	Duration   time.Duration
}

// TreeNode is one directory or file entry in the rendered tree block.
type TreeNode struct {
	Name     string
	IsDir    bool
	Size     int64
	Children []*TreeNode
}

// BuildTree arranges files' RelativePaths into a nested directory tree,
// sorted so that a parent directory's own files precede its
// subdirectories' files at the same level.
func BuildTree(files []*pipeline.FileRecord) *TreeNode {
	root := &TreeNode{Name: "", IsDir: true}
	for _, f := range files {
		parts := strings.Split(f.RelativePath, "/")
		cur := root
		for i, part := range parts {
			isLast := i == len(parts)-1
			child := findChild(cur, part)
			if child == nil {
				child = &TreeNode{Name: part, IsDir: !isLast}
				cur.Children = append(cur.Children, child)
			}
			if isLast {
				child.IsDir = false
				child.Size = f.Size
			}
			cur = child
		}
	}
	sortTree(root)
	return root
}

func findChild(n *TreeNode, name string) *TreeNode {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func sortTree(n *TreeNode) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.IsDir != b.IsDir {
			return !a.IsDir // files before subdirectories at the same level
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
	for _, c := range n.Children {
		if c.IsDir {
			sortTree(c)
		}
	}
}

// Formatter is the three-phase contract every output format implements
//: Prologue (header/tree/front-matter), one PerFile call per record,
// and Epilogue (closing tags, summary).
type Formatter interface {
	Format() pipeline.OutputFormat
	Prologue(w io.Writer, tree *TreeNode, opts RenderOptions) error
	PerFile(w io.Writer, f *pipeline.FileRecord, opts RenderOptions) error
	Epilogue(w io.Writer, stats Stats, opts RenderOptions) error
}

// ByFormat returns the Formatter registered for name, or nil.
func ByFormat(name pipeline.OutputFormat) Formatter {
	switch name {
	case pipeline.FormatXML:
		return &XMLFormatter{}
	case pipeline.FormatJSON:
		return &JSONFormatter{}
	case pipeline.FormatMarkdown:
		return &MarkdownFormatter{}
	case pipeline.FormatTree:
		return &TreeFormatter{}
	case pipeline.FormatNDJSON:
		return &NDJSONFormatter{}
	case pipeline.FormatSARIF:
		return &SARIFFormatter{}
	default:
		return nil
	}
}

// charLimitWriter truncates the stream once RenderOptions.CharLimit bytes
// have been forwarded to the underlying sink; it always reports a full
// write to its caller so callers never see a short-write error, since the
// truncation is an intentional budget, not a failure.
type charLimitWriter struct {
	w         io.Writer
	remaining int // negative means unlimited
}

func (c *charLimitWriter) Write(p []byte) (int, error) {
	if c.remaining < 0 {
		_, err := c.w.Write(p)
		return len(p), err
	}
	if c.remaining <= 0 {
		return len(p), nil
	}
	forward := p
	if len(forward) > c.remaining {
		forward = forward[:c.remaining]
	}
	n, err := c.w.Write(forward)
	c.remaining -= n
	return len(p), err
}

// Render runs one formatter's three-phase contract over files in order,
// flushing after every file so a buffered sink exerts real backpressure
// (the sink's write-back pressure primitive) without buffering
// the whole artifact in memory.
func Render(w io.Writer, f Formatter, files []*pipeline.FileRecord, stats Stats, opts RenderOptions) error {
	limit := -1
	if opts.CharLimit > 0 {
		limit = opts.CharLimit
	}
	lw := &charLimitWriter{w: w, remaining: limit}
	bw := bufio.NewWriter(lw)

	tree := BuildTree(files)

	if err := f.Prologue(bw, tree, opts); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	if !opts.OnlyTree {
		for _, file := range files {
			if err := f.PerFile(bw, file, opts); err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return err
			}
		}
	}

	if err := f.Epilogue(bw, stats, opts); err != nil {
		return err
	}
	return bw.Flush()
}

// RenderToString runs Render into an in-memory buffer, used by callers that
// want the artifact as a string (e.g. the "ask" conversation flow feeding a
// provider) rather than streamed to a sink. It is built on the exact same
// Prologue/PerFile/Epilogue calls as the streaming path, so its output is
// byte-identical to concatenating the streamed chunks.
func RenderToString(f Formatter, files []*pipeline.FileRecord, stats Stats, opts RenderOptions) (string, error) {
	var buf bytes.Buffer
	if err := Render(&buf, f, files, stats, opts); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// languageForExt maps a file extension to a Markdown fence language tag
//; unknown extensions get no language tag.
var languageForExt = map[string]string{
	".js":   "js",
	".jsx":  "jsx",
	".ts":   "ts",
	".tsx":  "tsx",
	".css":  "css",
	".json": "json",
	".yml":  "yaml",
	".yaml": "yaml",
	".py":   "python",
	".go":   "go",
	".rs":   "rust",
	".sh":   "bash",
	".txt":  "text",
	".md":   "markdown",
	".html": "html",
	".xml":  "xml",
	".sql":  "sql",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".java": "java",
	".rb":   "ruby",
	".php":  "php",
}

func fenceLanguage(relPath string) string {
	ext := strings.ToLower(relPath[strings.LastIndexByte(relPath, '.')+1:])
	if ext == relPath {
		return ""
	}
	return languageForExt["."+ext]
}

// addLineNumbers prefixes each line with a right-aligned 1-based line
// number, the "addLineNumbers" option shared by the text-bearing formats.
func addLineNumbers(content string) string {
	lines := strings.Split(content, "\n")
	width := len(itoa(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		b.WriteString(padLeft(itoa(i+1), width))
		b.WriteString("  ")
		b.WriteString(line)
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func padLeft(s string, width int) string {
	for len(s) < width {
		s = " " + s
	}
	return s
}

func binaryPlaceholder(f *pipeline.FileRecord) string {
	return "[binary file, " + itoa(int(f.Size)) + " bytes]"
}

func fileBody(f *pipeline.FileRecord, opts RenderOptions) string {
	if f.IsBinary || !f.Loaded {
		return binaryPlaceholder(f)
	}
	if opts.AddLineNumbers {
		return addLineNumbers(f.Content)
	}
	return f.Content
}
