package transcode

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrEmptyManifest is returned when asked to concatenate nothing.
var ErrEmptyManifest = errors.New("concat manifest has no entries")

// Entry is one input of a concatenation, tagged with where it came from in
// the narration so ordering can be verified without touching the files.
// Path points into a run workspace that is gone once the run ends, so it is
// never serialized.
type Entry struct {
	Path     string `json:"-"`
	Sentence int    `json:"sentence"`
	// Ordinal is the clip position within the sentence, or -1 for a whole sentence timeline.
	Ordinal int `json:"ordinal"`
}

// Tag renders a stable label such as "s2c0" or "s2".
func (e Entry) Tag() string {
	if e.Ordinal < 0 {
		return fmt.Sprintf("s%d", e.Sentence)
	}
	return fmt.Sprintf("s%dc%d", e.Sentence, e.Ordinal)
}

// Flatten joins grouped entries in group order. Concatenating each group and
// then the group outputs yields the same sequence as concatenating the
// flattened list directly.
func Flatten(groups [][]Entry) []Entry {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	out := make([]Entry, 0, total)
	for _, group := range groups {
		out = append(out, group...)
	}
	return out
}

// RenderManifest produces ffconcat text for entries.
func RenderManifest(entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", ErrEmptyManifest
	}
	var b strings.Builder
	b.WriteString("ffconcat version 1.0\n")
	for _, entry := range entries {
		if strings.TrimSpace(entry.Path) == "" {
			return "", fmt.Errorf("concat manifest: empty path for %s", entry.Tag())
		}
		if strings.ContainsAny(entry.Path, "\n\r") {
			return "", fmt.Errorf("concat manifest: path for %s contains a line break", entry.Tag())
		}
		b.WriteString("file '")
		b.WriteString(quoteManifestPath(entry.Path))
		b.WriteString("'\n")
	}
	return b.String(), nil
}

// WriteManifest renders entries to path.
func WriteManifest(path string, entries []Entry) error {
	text, err := RenderManifest(entries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write concat manifest: %w", err)
	}
	return nil
}

// quoteManifestPath escapes single quotes for the concat demuxer, which
// closes the quoted string, emits an escaped quote, and reopens it.
func quoteManifestPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
