package transcode

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRenderManifestQuotesPaths(t *testing.T) {
	text, err := RenderManifest([]Entry{
		{Path: "/tmp/run/seg0.mp4", Sentence: 0, Ordinal: 0},
		{Path: "/tmp/run/it's.mp4", Sentence: 0, Ordinal: 1},
	})
	if err != nil {
		t.Fatalf("RenderManifest: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(text), "\n")
	want := []string{
		"ffconcat version 1.0",
		"file '/tmp/run/seg0.mp4'",
		`file '/tmp/run/it'\''s.mp4'`,
	}
	if !reflect.DeepEqual(lines, want) {
		t.Fatalf("unexpected manifest:\n%v\nwant:\n%v", lines, want)
	}
}

func TestRenderManifestRejectsBadEntries(t *testing.T) {
	if _, err := RenderManifest(nil); !errors.Is(err, ErrEmptyManifest) {
		t.Fatalf("expected ErrEmptyManifest, got %v", err)
	}
	if _, err := RenderManifest([]Entry{{Path: " "}}); err == nil {
		t.Fatal("expected error for blank path")
	}
	if _, err := RenderManifest([]Entry{{Path: "a\nfile 'b'"}}); err == nil {
		t.Fatal("expected error for path with newline")
	}
}

func TestFlattenPreservesGroupOrder(t *testing.T) {
	groups := [][]Entry{
		{{Path: "a", Sentence: 0, Ordinal: 0}, {Path: "b", Sentence: 0, Ordinal: 1}},
		{},
		{{Path: "c", Sentence: 2, Ordinal: 0}},
	}
	got := Flatten(groups)
	var tags []string
	for _, entry := range got {
		tags = append(tags, entry.Tag())
	}
	want := []string{"s0c0", "s0c1", "s2c0"}
	if !reflect.DeepEqual(tags, want) {
		t.Fatalf("Flatten tags = %v, want %v", tags, want)
	}
}

func TestEntryTag(t *testing.T) {
	if got := (Entry{Sentence: 3, Ordinal: -1}).Tag(); got != "s3" {
		t.Fatalf("unexpected timeline tag %q", got)
	}
	if got := (Entry{Sentence: 1, Ordinal: 2}).Tag(); got != "s1c2" {
		t.Fatalf("unexpected clip tag %q", got)
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := WriteManifest(path, []Entry{{Path: "/x.mp4"}}); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "file '/x.mp4'") {
		t.Fatalf("unexpected manifest %q", data)
	}
}
