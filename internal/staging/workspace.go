package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// WorkspacePrefix marks directories created by Acquire.
const WorkspacePrefix = "run-"

// Workspace is the scratch directory of a single assembly run.
type Workspace struct {
	Root  string
	RunID string

	mu       sync.Mutex
	released bool
}

// Acquire creates the workspace for runID under stagingDir. It fails when the
// directory already exists, so two runs never share scratch space. The root
// is absolute so concat manifests never resolve entries against the manifest
// directory.
func Acquire(stagingDir, runID string) (*Workspace, error) {
	stagingDir = strings.TrimSpace(stagingDir)
	runID = strings.TrimSpace(runID)
	if stagingDir == "" {
		return nil, errors.New("acquire workspace: staging directory is empty")
	}
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return nil, fmt.Errorf("acquire workspace: invalid run id %q", runID)
	}
	stagingDir, err := filepath.Abs(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("acquire workspace: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("acquire workspace: %w", err)
	}
	root := filepath.Join(stagingDir, WorkspacePrefix+runID)
	if err := os.Mkdir(root, 0o755); err != nil {
		return nil, fmt.Errorf("acquire workspace: %w", err)
	}
	return &Workspace{Root: root, RunID: runID}, nil
}

// Release removes the workspace and all files in it. It is safe to call more
// than once and from deferred functions.
func (w *Workspace) Release() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.released {
		return nil
	}
	if err := os.RemoveAll(w.Root); err != nil {
		return fmt.Errorf("release workspace %s: %w", w.Root, err)
	}
	w.released = true
	return nil
}

// Released reports whether Release completed.
func (w *Workspace) Released() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.released
}

// ClipPath is where candidate ordinal of sentence is downloaded.
func (w *Workspace) ClipPath(sentence, ordinal int, ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(w.Root, fmt.Sprintf("video%d-%d%s", sentence, ordinal, ext))
}

// SegmentPath is where the normalized version of a clip is rendered.
func (w *Workspace) SegmentPath(sentence, ordinal int) string {
	return filepath.Join(w.Root, fmt.Sprintf("trimmed%d-%d.mp4", sentence, ordinal))
}

// SentencePath is the per-sentence timeline.
func (w *Workspace) SentencePath(sentence int) string {
	return filepath.Join(w.Root, fmt.Sprintf("sentence%d.mp4", sentence))
}

// ManifestPath is the concat manifest for name, e.g. "sentence3" or "master".
func (w *Workspace) ManifestPath(name string) string {
	return filepath.Join(w.Root, "concat-"+name+".txt")
}

// MasterPath is the concatenation of all sentence timelines.
func (w *Workspace) MasterPath() string {
	return filepath.Join(w.Root, "master.mp4")
}

// AudioPath is where a remote background track is downloaded.
func (w *Workspace) AudioPath(ext string) string {
	if ext == "" {
		ext = ".audio"
	}
	return filepath.Join(w.Root, "audio"+ext)
}

// FaceCamPath is where the face-cam recording is fetched.
func (w *Workspace) FaceCamPath(ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(w.Root, "facecam"+ext)
}

// CompositePath is the master timeline with the face cam stacked under it.
func (w *Workspace) CompositePath() string {
	return filepath.Join(w.Root, "composite.mp4")
}

// FinalPath is the muxed result before it is published.
func (w *Workspace) FinalPath() string {
	return filepath.Join(w.Root, "final.mp4")
}
