package services

import (
	"slices"
	"strings"

	"github.com/kerbaras/docport/pkg/config"
	"github.com/kerbaras/docport/pkg/outline"
)

// FormatAuto lets each document kind pick its own format.
const FormatAuto = "auto"

// FormatTable maps remote document kinds onto the export formats they
// support. The first listed format is the kind's default.
type FormatTable struct {
	Matrix      map[string][]string
	Aliases     map[string]string
	Unsupported []string
	Fallback    string
	// Primary is the only kind a specific global format applies to.
	Primary string
	// Local lists the formats rendered on this side from the outline tree.
	Local map[string]bool
}

func DefaultShimoTable() FormatTable {
	return FormatTable{
		Matrix: map[string][]string{
			"newdoc":       {"md", "jpg", "docx", "pdf"},
			"modoc":        {"docx", "wps", "pdf"},
			"mosheet":      {"xlsx"},
			"presentation": {"pptx", "pdf"},
			"mindmap":      {"xmind", "jpg"},
		},
		Aliases: map[string]string{
			"ppt":   "presentation",
			"pptx":  "presentation",
			"sheet": "mosheet",
		},
		Unsupported: []string{"table", "board", "form"},
		Fallback:    "md",
		Primary:     "newdoc",
		Local:       map[string]bool{},
	}
}

func DefaultMubuTable() FormatTable {
	local := map[string]bool{}
	for _, f := range outline.Formats() {
		local[f] = true
	}
	return FormatTable{
		Matrix: map[string][]string{
			"doc": {"md", "opml", "json", "mm", "html", "epub"},
		},
		Aliases:  map[string]string{},
		Fallback: "md",
		Primary:  "doc",
		Local:    local,
	}
}

// TableFor returns the platform's default table with the configured
// overrides applied.
func TableFor(platform string, overrides config.FormatsConfig) FormatTable {
	t := DefaultShimoTable()
	if platform == config.PlatformMubu {
		t = DefaultMubuTable()
	}
	return t.Merge(overrides)
}

// Merge applies overrides on top of a copy of t.
func (t FormatTable) Merge(o config.FormatsConfig) FormatTable {
	out := FormatTable{
		Matrix:      make(map[string][]string, len(t.Matrix)+len(o.Matrix)),
		Aliases:     make(map[string]string, len(t.Aliases)+len(o.Aliases)),
		Unsupported: append([]string(nil), t.Unsupported...),
		Fallback:    t.Fallback,
		Primary:     t.Primary,
		Local:       t.Local,
	}
	for k, v := range t.Matrix {
		out.Matrix[k] = append([]string(nil), v...)
	}
	for k, v := range o.Matrix {
		out.Matrix[strings.ToLower(k)] = append([]string(nil), v...)
	}
	for k, v := range t.Aliases {
		out.Aliases[k] = v
	}
	for k, v := range o.Aliases {
		out.Aliases[strings.ToLower(k)] = strings.ToLower(v)
	}
	for _, k := range o.Unsupported {
		if k = strings.ToLower(k); !slices.Contains(out.Unsupported, k) {
			out.Unsupported = append(out.Unsupported, k)
		}
	}
	if o.Fallback != "" {
		out.Fallback = o.Fallback
	}
	return out
}

// Normalize maps a kind through the alias table.
func (t FormatTable) Normalize(kind string) string {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if alias, ok := t.Aliases[kind]; ok {
		return alias
	}
	return kind
}

// Resolve picks the export format of one document. ok is false when the kind
// cannot be exported at all.
func (t FormatTable) Resolve(kind, global string, perKind map[string]string) (string, bool) {
	kind = t.Normalize(kind)
	if slices.Contains(t.Unsupported, kind) {
		return "", false
	}

	supported := t.Matrix[kind]
	if len(supported) == 0 {
		if global != "" && global != FormatAuto {
			return global, true
		}
		if t.Fallback != "" {
			return t.Fallback, true
		}
		return "md", true
	}

	setting := func() string {
		if s := perKind[kind]; slices.Contains(supported, s) {
			return s
		}
		return ""
	}

	if global == "" || global == FormatAuto {
		if s := setting(); s != "" {
			return s, true
		}
		return supported[0], true
	}
	if kind == t.Primary {
		if slices.Contains(supported, global) {
			return global, true
		}
		return supported[0], true
	}
	if s := setting(); s != "" {
		return s, true
	}
	return supported[0], true
}

// IsLocal reports whether format is rendered from the outline tree.
func (t FormatTable) IsLocal(format string) bool {
	return t.Local[format]
}
