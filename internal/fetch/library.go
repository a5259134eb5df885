package fetch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AudioFile is one track in the local audio library.
type AudioFile struct {
	Name string `json:"name"`
	// Locator is the value a request passes as its audio field; it resolves
	// against the audio directory.
	Locator  string    `json:"locator"`
	Size     int64     `json:"size_bytes"`
	Modified time.Time `json:"modified"`
}

// ListAudio returns the regular files directly under dir sorted by name.
// Dotfiles are skipped. A missing or unset directory yields an empty list.
func ListAudio(dir string) ([]AudioFile, error) {
	if strings.TrimSpace(dir) == "" {
		return []AudioFile{}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []AudioFile{}, nil
		}
		return nil, fmt.Errorf("list audio library: %w", err)
	}

	files := make([]AudioFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", filepath.Join(dir, name), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, AudioFile{
			Name:     strings.TrimSuffix(name, filepath.Ext(name)),
			Locator:  name,
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Locator < files[j].Locator })
	return files, nil
}
