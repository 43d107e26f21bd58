package filewalker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Kind classifies a discovered file.
type Kind int

const (
	Environment Kind = iota
	Code
	Map
	Icon
)

var kindNames = [...]string{"environment", "code", "map", "icon"}

func (k Kind) String() string { return kindNames[k] }

// SupportedExtensions maps the file types the tool handles to their kind.
var SupportedExtensions = map[string]Kind{
	".dme": Environment,
	".dm":  Code,
	".dmm": Map,
	".dmi": Icon,
}

// FileEntry is a discovered file ready for processing.
type FileEntry struct {
	Path string
	Rel  string
	Kind Kind
}

// Walker finds DM project files under a root directory.
type Walker struct {
	kinds map[Kind]bool
}

// NewWalker returns a walker for the given kinds, or every kind when none
// are named.
func NewWalker(kinds ...Kind) *Walker {
	w := &Walker{kinds: make(map[Kind]bool)}
	for _, k := range kinds {
		w.kinds[k] = true
	}
	return w
}

func (w *Walker) wants(k Kind) bool {
	return len(w.kinds) == 0 || w.kinds[k]
}

// Walk discovers supported files under root in lexical order. Hidden
// directories such as .git are skipped.
func (w *Walker) Walk(root string) ([]FileEntry, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", root)
	}

	var entries []FileEntry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Error walking path")
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		kind, ok := SupportedExtensions[strings.ToLower(filepath.Ext(path))]
		if !ok || !w.wants(kind) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, FileEntry{Path: path, Rel: filepath.ToSlash(rel), Kind: kind})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Rel < entries[j].Rel })
	log.Info().Int("count", len(entries)).Str("root", root).Msg("Discovered files")
	return entries, nil
}

// Resolve expands args into entries of the wanted kinds: directories are
// walked and files are taken as given.
func (w *Walker) Resolve(args []string) ([]FileEntry, error) {
	var out []FileEntry
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if info.IsDir() {
			found, err := w.Walk(arg)
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
			continue
		}
		kind, ok := SupportedExtensions[strings.ToLower(filepath.Ext(arg))]
		if !ok || !w.wants(kind) {
			return nil, fmt.Errorf("unsupported file %s", arg)
		}
		abs, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", arg, err)
		}
		out = append(out, FileEntry{Path: abs, Rel: filepath.Base(arg), Kind: kind})
	}
	return out, nil
}
