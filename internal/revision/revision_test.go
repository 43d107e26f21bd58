package revision

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"avulto/internal/dmm"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNameStatus(t *testing.T) {
	testCases := []struct {
		name    string
		output  string
		want    []Change
		wantErr bool
	}{
		{
			name:   "filters non maps",
			output: "M\tmaps/station.dmm\nM\tcode/game.dm\nA\ticons/obj.dmi\n",
			want:   []Change{{Status: Modified, OldPath: "maps/station.dmm", Path: "maps/station.dmm"}},
		},
		{
			name:   "rename with score",
			output: "R087\tmaps/old.dmm\tmaps/new.dmm\n",
			want:   []Change{{Status: Renamed, OldPath: "maps/old.dmm", Path: "maps/new.dmm"}},
		},
		{
			name:   "added and deleted",
			output: "A\tmaps/a.DMM\nD\tmaps/b.dmm\n\n",
			want: []Change{
				{Status: Added, OldPath: "maps/a.DMM", Path: "maps/a.DMM"},
				{Status: Deleted, OldPath: "maps/b.dmm", Path: "maps/b.dmm"},
			},
		},
		{
			name:   "type change ignored",
			output: "T\tmaps/link.dmm\n",
		},
		{
			name:    "malformed",
			output:  "M maps/station.dmm\n",
			wantErr: true,
		},
		{
			name:    "rename missing target",
			output:  "R100\tmaps/old.dmm\n",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseNameStatus(tc.output)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("parseNameStatus mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "renamed", Renamed.String())
	assert.Equal(t, "unknown", Status('X').String())
}

const beforeMap = `"a" = (/turf/floor,/area/a)
"b" = (/turf/wall,/area/a)

(1,1,1) = {"
aa
aa
"}
`

const afterMap = `"a" = (/turf/floor,/area/a)
"b" = (/turf/wall,/area/a)

(1,1,1) = {"
ba
aa
"}
`

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-c", "user.name=test", "-c", "user.email=test@example.com"}, args...)...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func TestDiffMaps(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "maps"), 0o755))
	mapPath := filepath.Join(dir, "maps", "test.dmm")

	git(t, dir, "init", "-q")
	require.NoError(t, os.WriteFile(mapPath, []byte(beforeMap), 0o644))
	git(t, dir, "add", ".")
	git(t, dir, "commit", "-q", "-m", "base")
	require.NoError(t, os.WriteFile(mapPath, []byte(afterMap), 0o644))
	git(t, dir, "commit", "-q", "-am", "edit")

	repo := NewRepo(dir)
	assert.True(t, IsRepo(dir))

	diffs, err := repo.DiffMaps(context.Background(), "HEAD~1", "HEAD", "maps")
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, Modified, diffs[0].Status)
	assert.Equal(t, []dmm.Coord{{X: 1, Y: 2, Z: 1}}, diffs[0].Coords)
	assert.False(t, diffs[0].SizeChanged)

	old, err := repo.ReadMap(context.Background(), "HEAD~1", "maps/test.dmm")
	require.NoError(t, err)
	tile, err := old.TileDef(1, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", tile.Key())

	worktree, err := repo.DiffMaps(context.Background(), "HEAD", "", "maps")
	require.NoError(t, err)
	assert.Empty(t, worktree)
}

func TestReadMapMissingRevision(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	git(t, dir, "init", "-q")

	_, err := NewRepo(dir).ReadMap(context.Background(), "nope", "maps/test.dmm")
	assert.Error(t, err)
}
