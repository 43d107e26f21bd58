// Package revision reads maps out of git history and reports which tiles
// changed between two revisions.
package revision

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"avulto/internal/dmm"

	"github.com/rs/zerolog/log"
)

// Status is the kind of change git reports for a file.
type Status byte

const (
	Added    Status = 'A'
	Modified Status = 'M'
	Deleted  Status = 'D'
	Renamed  Status = 'R'
)

func (s Status) String() string {
	switch s {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	}
	return "unknown"
}

// Change is one changed map file. OldPath differs from Path only for
// renames.
type Change struct {
	Status  Status
	OldPath string
	Path    string
}

// MapDiff is the tile-level outcome of a change.
type MapDiff struct {
	Change
	// Coords lists changed tiles; empty unless both sides parsed with
	// equal dimensions.
	Coords []dmm.Coord
	// SizeChanged is set when the two sides have different dimensions.
	SizeChanged bool
	OldSize     dmm.Coord
	NewSize     dmm.Coord
}

// Repo runs git in a working tree.
type Repo struct {
	root string
}

// NewRepo creates a reader over the repository at root.
func NewRepo(root string) *Repo {
	return &Repo{root: root}
}

// ChangedMaps lists .dmm files under folder that differ between base and
// target. An empty target compares against the working tree.
func (r *Repo) ChangedMaps(ctx context.Context, base, target, folder string) ([]Change, error) {
	args := []string{"diff", "--name-status", "-M", base}
	if target != "" {
		args = append(args, target)
	}
	if folder == "" {
		folder = "."
	}
	args = append(args, "--", folder)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --name-status: %w", gitError(err))
	}

	changes, err := parseNameStatus(string(output))
	if err != nil {
		return nil, err
	}
	log.Info().Int("maps", len(changes)).Msg("Found changed maps in Git diff")
	return changes, nil
}

// ReadMap parses file as it was at rev. An empty rev reads the working
// tree.
func (r *Repo) ReadMap(ctx context.Context, rev, file string) (*dmm.Map, error) {
	if rev == "" {
		return dmm.Load(filepath.Join(r.root, file))
	}
	cmd := exec.CommandContext(ctx, "git", "show", rev+":"+filepath.ToSlash(file))
	cmd.Dir = r.root
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git show %s:%s: %w", rev, file, gitError(err))
	}
	m, err := dmm.Parse(rev+":"+file, string(output))
	if err != nil {
		return nil, fmt.Errorf("parse %s at %s: %w", file, rev, err)
	}
	return m, nil
}

// DiffMaps compares every changed map between base and target.
func (r *Repo) DiffMaps(ctx context.Context, base, target, folder string) ([]MapDiff, error) {
	changes, err := r.ChangedMaps(ctx, base, target, folder)
	if err != nil {
		return nil, err
	}

	diffs := make([]MapDiff, 0, len(changes))
	for _, c := range changes {
		d := MapDiff{Change: c}
		if c.Status == Modified || c.Status == Renamed {
			if err := r.compare(ctx, base, target, &d); err != nil {
				log.Warn().Err(err).Str("file", c.Path).Msg("Failed to compare map")
				return nil, err
			}
		}
		diffs = append(diffs, d)
		log.Debug().Str("file", c.Path).Str("status", c.Status.String()).Int("tiles", len(d.Coords)).Msg("Compared map")
	}
	return diffs, nil
}

func (r *Repo) compare(ctx context.Context, base, target string, d *MapDiff) error {
	before, err := r.ReadMap(ctx, base, d.OldPath)
	if err != nil {
		return err
	}
	after, err := r.ReadMap(ctx, target, d.Path)
	if err != nil {
		return err
	}
	d.OldSize, d.NewSize = before.Size(), after.Size()
	if d.OldSize != d.NewSize {
		d.SizeChanged = true
		return nil
	}
	d.Coords, err = dmm.Diff(before, after)
	return err
}

// parseNameStatus reads `git diff --name-status` output, keeping .dmm
// files only.
func parseNameStatus(output string) ([]Change, error) {
	var changes []Change
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 || fields[0] == "" {
			return nil, fmt.Errorf("malformed name-status line %q", line)
		}

		c := Change{Status: Status(fields[0][0])}
		switch c.Status {
		case Renamed:
			if len(fields) != 3 {
				return nil, fmt.Errorf("malformed rename line %q", line)
			}
			c.OldPath, c.Path = fields[1], fields[2]
		case Added, Modified, Deleted:
			c.OldPath, c.Path = fields[1], fields[1]
		default:
			continue
		}
		if !isMap(c.Path) && !isMap(c.OldPath) {
			continue
		}
		changes = append(changes, c)
	}
	return changes, scanner.Err()
}

func isMap(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".dmm")
}

// gitError folds git's stderr into the error.
func gitError(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("git is not installed: %w", err)
	}
	return err
}

// IsRepo reports whether root is inside a git work tree.
func IsRepo(root string) bool {
	_, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil
}
