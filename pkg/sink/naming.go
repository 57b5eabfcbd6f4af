package sink

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/utils"
)

const (
	DefaultTimestampFormat = "YYYY-MM-DD_HH-mm"
	untitled               = "Untitled"
)

var timestampTokens = []string{"YYYY", "MM", "DD", "HH", "mm", "ss"}

// FormatTimestamp expands the YYYY MM DD HH mm ss tokens of layout. Text
// between tokens is kept as is.
func FormatTimestamp(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DefaultTimestampFormat
	}
	values := map[string]string{
		"YYYY": fmt.Sprintf("%04d", t.Year()),
		"MM":   fmt.Sprintf("%02d", int(t.Month())),
		"DD":   fmt.Sprintf("%02d", t.Day()),
		"HH":   fmt.Sprintf("%02d", t.Hour()),
		"mm":   fmt.Sprintf("%02d", t.Minute()),
		"ss":   fmt.Sprintf("%02d", t.Second()),
	}
	var b strings.Builder
	for i := 0; i < len(layout); {
		matched := false
		for _, tok := range timestampTokens {
			if strings.HasPrefix(layout[i:], tok) {
				b.WriteString(values[tok])
				i += len(tok)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(layout[i])
			i++
		}
	}
	return b.String()
}

// BuildPath computes the suggested relative path of an exported document:
// subfolder segments, folder segments, then the sanitised title with an
// optional timestamp suffix and the format extension.
func BuildPath(subfolder string, folderPath []string, title, format string, naming data.Naming, created, updated *time.Time) string {
	var segs []string
	for _, seg := range strings.FieldsFunc(subfolder, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg = utils.SanitizeSegment(seg); seg != "" {
			segs = append(segs, seg)
		}
	}
	for _, seg := range folderPath {
		if seg = utils.SanitizeSegment(seg); seg != "" {
			segs = append(segs, seg)
		}
	}

	base := utils.SanitizeSegment(title)
	if base == "" {
		base = untitled
	}
	var stamp *time.Time
	switch naming.TimestampSource {
	case "createdAt":
		stamp = created
	case "updatedAt":
		stamp = updated
	}
	if stamp != nil {
		if ts := utils.SanitizeSegment(FormatTimestamp(*stamp, naming.TimestampFormat)); ts != "" {
			base += "__" + ts
		}
	}
	if format != "" {
		base += "." + format
	}
	return path.Join(append(segs, base)...)
}
