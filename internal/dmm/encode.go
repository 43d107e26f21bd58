package dmm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"avulto/internal/dmerr"
)

type saveConfig struct {
	format Format
}

// SaveOption adjusts how a map is written.
type SaveOption func(*saveConfig)

// WithFormat overrides the layout; the default is the one the map was
// read in.
func WithFormat(f Format) SaveOption {
	return func(c *saveConfig) { c.format = f }
}

// Save writes the map to path.
func (m *Map) Save(path string, opts ...SaveOption) error {
	f, err := os.Create(path)
	if err != nil {
		return dmerr.IO("create", path, err)
	}
	if err := m.Encode(f, opts...); err != nil {
		f.Close()
		return fmt.Errorf("save map %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return dmerr.IO("close", path, err)
	}
	log.Debug().Str("file", path).Int("keys", len(m.records)).Msg("Saved map")
	return nil
}

// Encode regroups coordinates by content and writes the map text.
func (m *Map) Encode(w io.Writer, opts ...SaveOption) error {
	cfg := saveConfig{format: m.format}
	for _, opt := range opts {
		opt(&cfg)
	}
	m.assignKeys()

	bw := bufio.NewWriter(w)
	if cfg.format == FormatTGM {
		bw.WriteString(tgmHeader + "\n")
	}
	for _, r := range m.liveRecords() {
		writeEntry(bw, r, cfg.format)
	}
	bw.WriteString("\n")

	if cfg.format == FormatTGM {
		m.writeColumns(bw)
	} else {
		m.writeRows(bw)
	}
	return bw.Flush()
}

func writeEntry(w *bufio.Writer, r *record, f Format) {
	if f != FormatTGM {
		fmt.Fprintf(w, "%q = (%s)\n", r.key, stackText(r.stack))
		return
	}
	fmt.Fprintf(w, "%q = (\n", r.key)
	for i, pf := range r.stack {
		w.WriteString(pf.Path.Rel())
		if pf.Vars.Len() > 0 {
			w.WriteString("{\n")
			keys := pf.Vars.Keys()
			for j, k := range keys {
				v, _ := pf.Vars.Get(k)
				w.WriteString("\t" + k + " = " + v.String())
				if j < len(keys)-1 {
					w.WriteString(";")
				}
				w.WriteString("\n")
			}
			w.WriteString("\t}")
		}
		if i < len(r.stack)-1 {
			w.WriteString(",\n")
		}
	}
	w.WriteString(")\n")
}

func (m *Map) writeRows(w *bufio.Writer) {
	for z := 1; z <= m.size.Z; z++ {
		if z > 1 {
			w.WriteString("\n")
		}
		fmt.Fprintf(w, "(1,1,%d) = {\"\n", z)
		for y := m.size.Y; y >= 1; y-- {
			var row strings.Builder
			for x := 1; x <= m.size.X; x++ {
				i, _ := m.index(Coord{X: x, Y: y, Z: z})
				row.WriteString(m.grid[i].key)
			}
			w.WriteString(row.String() + "\n")
		}
		w.WriteString("\"}\n")
	}
}

func (m *Map) writeColumns(w *bufio.Writer) {
	for z := 1; z <= m.size.Z; z++ {
		for x := 1; x <= m.size.X; x++ {
			if x > 1 || z > 1 {
				w.WriteString("\n")
			}
			fmt.Fprintf(w, "(%d,1,%d) = {\"\n", x, z)
			for y := m.size.Y; y >= 1; y-- {
				i, _ := m.index(Coord{X: x, Y: y, Z: z})
				w.WriteString(m.grid[i].key + "\n")
			}
			w.WriteString("\"}\n")
		}
	}
}
