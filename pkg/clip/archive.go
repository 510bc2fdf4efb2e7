// Package clip turns search results into bounded clip downloads, with a
// per-folder archive so repeated runs never re-download the same range.
package clip

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// archiveFileName is the dedup ledger kept inside each output folder.
const archiveFileName = "download-archive.txt"

// Archive is a persistent set of downloaded (video, range) keys, one per
// line in a plain text file. Keys are appended as downloads complete, so a
// crash mid-batch loses at most the in-flight clip.
type Archive struct {
	mu   sync.Mutex
	path string
	keys map[string]struct{}
}

// OpenArchive loads the archive for folder, creating the folder if needed.
func OpenArchive(folder string) (*Archive, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("clip: create output folder: %w", err)
	}

	a := &Archive{
		path: filepath.Join(folder, archiveFileName),
		keys: make(map[string]struct{}),
	}

	f, err := os.Open(a.path)
	if os.IsNotExist(err) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("clip: open archive: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key := strings.TrimSpace(scanner.Text())
		if key != "" {
			a.keys[key] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("clip: read archive: %w", err)
	}
	return a, nil
}

// Contains reports whether key was already downloaded.
func (a *Archive) Contains(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.keys[key]
	return ok
}

// Add records key durably before updating the in-memory set.
func (a *Archive) Add(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("clip: append archive: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, key); err != nil {
		return fmt.Errorf("clip: append archive: %w", err)
	}
	a.keys[key] = struct{}{}
	return nil
}
