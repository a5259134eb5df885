package assembly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"reelsmith/internal/transcode"
)

// fakeMedia is the on-disk stand-in for a media file. Tags record which
// source clips the file contains, in playback order.
type fakeMedia struct {
	Tags    []string `json:"tags"`
	Seconds float64  `json:"seconds"`
	Audio   string   `json:"audio,omitempty"`
	// FaceCam holds the tags of a recording stacked under the timeline.
	FaceCam []string `json:"face_cam,omitempty"`
}

func writeMedia(t *testing.T, path string, m fakeMedia) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func readMedia(path string) (fakeMedia, error) {
	var m fakeMedia
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

func storeMedia(path string, m fakeMedia) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// fakeEngine implements transcode.Engine over fakeMedia files.
type fakeEngine struct {
	mu sync.Mutex

	// failNormalize lists source tags whose normalization fails.
	failNormalize map[string]bool
	// failConcat makes every concatenation fail.
	failConcat bool
	// failStack makes every face-cam composition fail.
	failStack bool
	// onNormalize runs before each normalization.
	onNormalize func(ctx context.Context) error
	// onConcat runs before each concatenation with its output path.
	onConcat func(output string)

	normalized map[string]float64
	concats    [][]transcode.Entry
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{failNormalize: map[string]bool{}, normalized: map[string]float64{}}
}

func (f *fakeEngine) ProbeDuration(_ context.Context, path string) (float64, error) {
	m, err := readMedia(path)
	if err != nil {
		return 0, err
	}
	return m.Seconds, nil
}

func (f *fakeEngine) TrimAndNormalize(ctx context.Context, req transcode.NormalizeRequest) error {
	if f.onNormalize != nil {
		if err := f.onNormalize(ctx); err != nil {
			return err
		}
	}
	m, err := readMedia(req.Input)
	if err != nil {
		return err
	}
	for _, tag := range m.Tags {
		if f.failNormalize[tag] {
			return fmt.Errorf("corrupt source %s", tag)
		}
	}
	seconds := req.Seconds
	if m.Seconds > 0 && m.Seconds < seconds {
		seconds = m.Seconds
	}
	f.mu.Lock()
	for _, tag := range m.Tags {
		f.normalized[tag] = seconds
	}
	f.mu.Unlock()
	return storeMedia(req.Output, fakeMedia{Tags: m.Tags, Seconds: seconds})
}

func (f *fakeEngine) Concatenate(_ context.Context, entries []transcode.Entry, manifestPath, output string) error {
	if f.onConcat != nil {
		f.onConcat(output)
	}
	if f.failConcat {
		return errors.New("concat demuxer failed")
	}
	if err := transcode.WriteManifest(manifestPath, entries); err != nil {
		return err
	}
	var out fakeMedia
	for _, entry := range entries {
		m, err := readMedia(entry.Path)
		if err != nil {
			return err
		}
		out.Tags = append(out.Tags, m.Tags...)
		out.Seconds += m.Seconds
	}
	f.mu.Lock()
	f.concats = append(f.concats, append([]transcode.Entry(nil), entries...))
	f.mu.Unlock()
	return storeMedia(output, out)
}

func (f *fakeEngine) StackFaceCam(_ context.Context, req transcode.StackRequest) error {
	if f.failStack {
		return errors.New("vstack failed")
	}
	main, err := readMedia(req.Main)
	if err != nil {
		return err
	}
	face, err := readMedia(req.FaceCam)
	if err != nil {
		return err
	}
	seconds := main.Seconds
	if req.Seconds < seconds {
		seconds = req.Seconds
	}
	return storeMedia(req.Output, fakeMedia{Tags: main.Tags, Seconds: seconds, FaceCam: face.Tags})
}

func (f *fakeEngine) MuxAudio(_ context.Context, video, audio, output string) error {
	v, err := readMedia(video)
	if err != nil {
		return err
	}
	a, err := readMedia(audio)
	if err != nil {
		return err
	}
	seconds := v.Seconds
	if a.Seconds < seconds {
		seconds = a.Seconds
	}
	return storeMedia(output, fakeMedia{Tags: v.Tags, Seconds: seconds, Audio: audio, FaceCam: v.FaceCam})
}

func (f *fakeEngine) normalizedSeconds(tag string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.normalized[tag]
	return s, ok
}
