// Package dmi reads and writes BYOND icon files: PNG sheets of equally
// sized frames with a metadata text chunk naming the states.
package dmi

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog/log"

	"avulto/internal/dmerr"
	"avulto/internal/source"
)

// Icon is a set of states sharing one frame size.
type Icon struct {
	name    string
	version string
	width   int
	height  int
	states  []*State
	sheet   *image.NRGBA
	columns int
}

// New returns an empty icon with the given frame size.
func New(width, height int) *Icon {
	ic := &Icon{version: defaultVersion, width: width, height: height}
	ic.repack()
	return ic
}

// Load reads the icon at path.
func Load(path string) (*Icon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dmerr.IO("read", path, err)
	}
	ic, err := decode(path, data)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("file", path).
		Int("states", len(ic.states)).
		Int("width", ic.width).
		Int("height", ic.height).
		Msg("Parsed icon")
	return ic, nil
}

// Decode reads an icon from r; name is used in error locations.
func Decode(name string, r io.Reader) (*Icon, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, dmerr.IO("read", name, err)
	}
	return decode(name, data)
}

func decode(name string, data []byte) (*Icon, error) {
	at := source.At(name, 0, 0)
	text, ok, err := readDescription(data)
	if err != nil {
		return nil, dmerr.Parse(at, "icon container: %v", err)
	}
	if !ok {
		return nil, dmerr.Parse(at, "no DMI metadata")
	}
	h, err := parseMetadata(name, text)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, dmerr.Parse(at, "decode image: %v", err)
	}
	sheet := toNRGBA(img)

	b := sheet.Bounds()
	if b.Dx()%h.width != 0 || b.Dy()%h.height != 0 {
		return nil, dmerr.Parse(at, "sheet %dx%d is not a grid of %dx%d frames", b.Dx(), b.Dy(), h.width, h.height)
	}
	ic := &Icon{
		name:    name,
		version: h.version,
		width:   h.width,
		height:  h.height,
		states:  h.states,
		sheet:   sheet,
		columns: max(b.Dx()/h.width, 1),
	}
	capacity := ic.columns * (b.Dy() / h.height)
	offset := 0
	for _, s := range ic.states {
		n := s.dirs * s.frames
		if offset+n > capacity {
			return nil, dmerr.Parse(at, "state %q needs frames past the end of the sheet", s.Name)
		}
		s.icon, s.offset = ic, offset
		s.images = make([]*image.NRGBA, n)
		for i := 0; i < n; i++ {
			s.images[i] = ic.crop(ic.cellRect(offset + i))
		}
		offset += n
	}
	return ic, nil
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Name is the file the icon was loaded from, if any.
func (ic *Icon) Name() string { return ic.name }

// Width is the frame width in pixels.
func (ic *Icon) Width() int { return ic.width }

// Height is the frame height in pixels.
func (ic *Icon) Height() int { return ic.height }

// Sheet is the packed image all frames live in.
func (ic *Icon) Sheet() image.Image { return ic.sheet }

// Len is the number of states.
func (ic *Icon) Len() int { return len(ic.states) }

// States lists states in file order.
func (ic *Icon) States() []*State {
	out := make([]*State, len(ic.states))
	copy(out, ic.states)
	return out
}

// StateNames lists state names in file order; names may repeat when a
// state has a movement variant.
func (ic *Icon) StateNames() []string {
	out := make([]string, len(ic.states))
	for i, s := range ic.states {
		out[i] = s.Name
	}
	return out
}

// State returns the named state, preferring the non-movement variant.
func (ic *Icon) State(name string) (*State, error) {
	if s, err := ic.StateFor(name, false); err == nil {
		return s, nil
	}
	return ic.StateFor(name, true)
}

// StateFor returns the named state with the given movement flag.
func (ic *Icon) StateFor(name string, movement bool) (*State, error) {
	for _, s := range ic.states {
		if s.Name == name && s.Movement == movement {
			return s, nil
		}
	}
	return nil, dmerr.NotFound("icon state", name)
}

// Rect locates a frame of the named state.
func (ic *Icon) Rect(name string, dir Dir, frame int) (Rect, error) {
	s, err := ic.State(name)
	if err != nil {
		return Rect{}, err
	}
	return s.Rect(dir, frame)
}

// Append adds a state and repacks the sheet.
func (ic *Icon) Append(s *State) error {
	for _, img := range s.images {
		if b := img.Bounds(); b.Dx() != ic.width || b.Dy() != ic.height {
			return fmt.Errorf("append state %q: frame %dx%d does not match icon %dx%d", s.Name, b.Dx(), b.Dy(), ic.width, ic.height)
		}
	}
	if s.icon != nil && s.icon != ic {
		s = s.clone()
	}
	ic.states = append(ic.states, s)
	ic.repack()
	return nil
}

func (s *State) clone() *State {
	c := *s
	c.icon = nil
	return &c
}

// DataRGBA8 returns the packed RGBA bytes of any rectangle of the sheet.
func (ic *Icon) DataRGBA8(r Rect) ([]byte, error) {
	b := ic.sheet.Bounds()
	if r.Width < 0 || r.Height < 0 || r.Left < 0 || r.Top < 0 || r.Left+r.Width > b.Dx() || r.Top+r.Height > b.Dy() {
		return nil, dmerr.OutOfRange("rect", "%s outside sheet of %dx%d", r, b.Dx(), b.Dy())
	}
	return pixels(ic.crop(r)), nil
}

func (ic *Icon) cellRect(i int) Rect {
	return Rect{
		Left:   (i % ic.columns) * ic.width,
		Top:    (i / ic.columns) * ic.height,
		Width:  ic.width,
		Height: ic.height,
	}
}

func (ic *Icon) crop(r Rect) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(out, out.Bounds(), ic.sheet, image.Pt(r.Left, r.Top), draw.Src)
	return out
}

// repack lays every frame out on a square-ish grid, the way BYOND does.
func (ic *Icon) repack() {
	total := 0
	for _, s := range ic.states {
		total += len(s.images)
	}
	ic.columns = max(int(math.Ceil(math.Sqrt(float64(total)))), 1)
	rows := max((total+ic.columns-1)/ic.columns, 1)
	ic.sheet = image.NewNRGBA(image.Rect(0, 0, ic.columns*ic.width, rows*ic.height))

	offset := 0
	for _, s := range ic.states {
		s.icon, s.offset = ic, offset
		for i, img := range s.images {
			r := ic.cellRect(offset + i)
			draw.Draw(ic.sheet, image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height), img, image.Point{}, draw.Src)
		}
		offset += len(s.images)
	}
}

// Encode writes the icon as a PNG with its metadata chunk.
func (ic *Icon) Encode(w io.Writer) error {
	ic.repack()
	var buf bytes.Buffer
	if err := png.Encode(&buf, ic.sheet); err != nil {
		return fmt.Errorf("encode sheet: %w", err)
	}
	out, err := withDescription(buf.Bytes(), formatMetadata(ic.version, ic.width, ic.height, ic.states))
	if err != nil {
		return fmt.Errorf("embed metadata: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// Save writes the icon to path.
func (ic *Icon) Save(path string) error {
	var buf bytes.Buffer
	if err := ic.Encode(&buf); err != nil {
		return fmt.Errorf("save icon %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return dmerr.IO("write", path, err)
	}
	log.Debug().Str("file", path).Int("states", len(ic.states)).Msg("Saved icon")
	return nil
}
