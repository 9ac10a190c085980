package imagesource

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/game"
	"github.com/google/uuid"
)

// Sub-directory names under the image root, one per label.
const (
	AIDir   = "ai"
	RealDir = "real"
)

var allowedExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

type folderEntry struct {
	ref  domain.ImageRef
	path string
}

// Folder serves images from <root>/ai and <root>/real.
type Folder struct {
	root string

	mu       sync.RWMutex
	entries  map[string]folderEntry
	refs     []domain.ImageRef
	warnings []string
}

// NewFolder scans root. A missing or empty label folder is recorded as a
// warning rather than an error so the server can still start.
func NewFolder(root string) (*Folder, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("image folder %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("image folder %s: not a directory", root)
	}

	f := &Folder{root: root}
	if err := f.Rescan(); err != nil {
		return nil, err
	}
	return f, nil
}

// Rescan re-reads both label folders. IDs of files that are still present
// are kept so in-flight rounds stay valid.
func (f *Folder) Rescan() error {
	previous := make(map[string]string)
	f.mu.RLock()
	for id, e := range f.entries {
		previous[e.path] = id
	}
	f.mu.RUnlock()

	entries := make(map[string]folderEntry)
	var refs []domain.ImageRef
	var warnings []string

	for _, label := range domain.Labels {
		dir := filepath.Join(f.root, labelDir(label))
		paths, err := listImages(dir)
		if err != nil {
			slog.Warn("Image folder not readable", "label", label.String(), "dir", dir, "error", err)
			warnings = append(warnings, fmt.Sprintf("%s folder not found: %s", label, dir))
			continue
		}
		if len(paths) == 0 {
			slog.Warn("Image folder is empty", "label", label.String(), "dir", dir)
			warnings = append(warnings, fmt.Sprintf("no %s images in %s", label, dir))
			continue
		}

		for _, p := range paths {
			id, ok := previous[p]
			if !ok {
				id = uuid.NewString()
			}
			ref := domain.ImageRef{ID: id, Label: label}
			entries[id] = folderEntry{ref: ref, path: p}
			refs = append(refs, ref)
		}
		slog.Info("Image folder loaded", "label", label.String(), "dir", dir, "count", len(paths))
	}

	f.mu.Lock()
	f.entries = entries
	f.refs = refs
	f.warnings = warnings
	f.mu.Unlock()
	return nil
}

// NewDeck returns a deck over every image currently in the folder.
func (f *Folder) NewDeck(policy game.DrawPolicy, rng *rand.Rand) game.Source {
	f.mu.RLock()
	refs := make([]domain.ImageRef, len(f.refs))
	copy(refs, f.refs)
	f.mu.RUnlock()
	return game.NewDeck(refs, policy, rng)
}

// Open reads the image file for id.
func (f *Folder) Open(_ context.Context, id string) (*Blob, error) {
	f.mu.RLock()
	e, ok := f.entries[id]
	f.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownImage
	}

	data, err := os.ReadFile(e.path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w: %w", id, domain.ErrImageNotAvailable, err)
	}
	return &Blob{Data: data, ContentType: allowedExt[strings.ToLower(filepath.Ext(e.path))]}, nil
}

// Counts reports the pool size per label.
func (f *Folder) Counts() map[domain.Label]int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	counts := make(map[domain.Label]int, len(domain.Labels))
	for _, ref := range f.refs {
		counts[ref.Label]++
	}
	return counts
}

// Warnings lists folders that were missing or empty at the last scan.
func (f *Folder) Warnings() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.warnings...)
}

func labelDir(l domain.Label) string {
	if l == domain.LabelAI {
		return AIDir
	}
	return RealDir
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := allowedExt[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
