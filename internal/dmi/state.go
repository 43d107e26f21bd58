package dmi

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"slices"

	"avulto/internal/dmerr"
)

// Rect is a pixel rectangle in an icon sheet.
type Rect struct {
	Left, Top, Width, Height int
}

func (r Rect) String() string {
	return fmt.Sprintf("<Rect %d, %d, %d, %d>", r.Left, r.Top, r.Width, r.Height)
}

// Hotspot is a cursor hotspot for one frame.
type Hotspot struct {
	X, Y, Frame int
}

// State is one named animation in an icon. Frames are stored frame by
// frame, each frame holding every direction in storage order.
type State struct {
	Name     string
	Movement bool
	Delays   []float64
	Loop     int
	Rewind   bool
	Hotspot  *Hotspot
	Extra    []Setting

	dirs   int
	frames int
	images []*image.NRGBA

	icon   *Icon
	offset int
}

// DirCount is 1, 4 or 8.
func (s *State) DirCount() int { return s.dirs }

// Frames is the number of animation frames per direction.
func (s *State) Frames() int { return s.frames }

// Dirs lists the directions the state supports in storage order.
func (s *State) Dirs() []Dir {
	return slices.Clone(dmiOrder[:s.dirs])
}

func (s *State) String() string {
	return fmt.Sprintf("<IconState %q dirs=%d frames=%d>", s.Name, s.dirs, s.frames)
}

func (s *State) cell(dir Dir, frame int) (int, error) {
	di, ok := dirIndex(dir, s.dirs)
	if !ok {
		return 0, dmerr.OutOfRange("direction", "state %q has no %s", s.Name, dir)
	}
	if frame < 0 || frame >= s.frames {
		return 0, dmerr.OutOfRange("frame", "%d not in state %q of %d frames", frame, s.Name, s.frames)
	}
	return frame*s.dirs + di, nil
}

// Rect locates a frame in the owning icon's sheet.
func (s *State) Rect(dir Dir, frame int) (Rect, error) {
	i, err := s.cell(dir, frame)
	if err != nil {
		return Rect{}, err
	}
	if s.icon == nil {
		return Rect{}, fmt.Errorf("state %q is not part of an icon", s.Name)
	}
	return s.icon.cellRect(s.offset + i), nil
}

// Image returns one frame.
func (s *State) Image(dir Dir, frame int) (*image.NRGBA, error) {
	i, err := s.cell(dir, frame)
	if err != nil {
		return nil, err
	}
	return s.images[i], nil
}

// DataRGBA8 returns one frame's pixels as packed RGBA bytes.
func (s *State) DataRGBA8(dir Dir, frame int) ([]byte, error) {
	img, err := s.Image(dir, frame)
	if err != nil {
		return nil, err
	}
	return pixels(img), nil
}

// Equal compares metadata and pixels.
func (s *State) Equal(o *State) bool {
	if s.Name != o.Name || s.Movement != o.Movement || s.Loop != o.Loop || s.Rewind != o.Rewind ||
		s.dirs != o.dirs || s.frames != o.frames || !slices.Equal(s.Delays, o.Delays) ||
		!slices.Equal(s.Extra, o.Extra) || len(s.images) != len(o.images) {
		return false
	}
	if (s.Hotspot == nil) != (o.Hotspot == nil) || (s.Hotspot != nil && *s.Hotspot != *o.Hotspot) {
		return false
	}
	for i := range s.images {
		if !bytes.Equal(pixels(s.images[i]), pixels(o.images[i])) {
			return false
		}
	}
	return true
}

// FrameData holds one state's raw frames keyed by direction, each a
// packed RGBA buffer of Width*Height*4 bytes.
type FrameData map[Dir][][]byte

// StateOptions describes a state built with FromData.
type StateOptions struct {
	Name     string
	Width    int
	Height   int
	Delays   []float64
	Loop     int
	Rewind   bool
	Movement bool
}

var (
	errDirSet     = errors.New("directions must be south only, the four cardinals or all eight")
	errFrameCount = errors.New("inconsistent number of frames across directions")
	errDelayCount = errors.New("number of frames and delays do not match")
)

// FromData builds a state from raw frames. Directions must be South
// alone, the four cardinals, or all eight; every direction must carry the
// same number of frames; a state with more than one frame needs one delay
// per frame.
func FromData(data FrameData, opts StateOptions) (*State, error) {
	if opts.Width == 0 {
		opts.Width = 32
	}
	if opts.Height == 0 {
		opts.Height = 32
	}
	dirs := len(data)
	if !validDirCount(dirs) {
		return nil, errDirSet
	}
	for _, d := range dmiOrder[:dirs] {
		if _, ok := data[d]; !ok {
			return nil, errDirSet
		}
	}
	frames := len(data[South])
	for _, d := range dmiOrder[:dirs] {
		if len(data[d]) != frames {
			return nil, errFrameCount
		}
	}
	if frames == 0 {
		return nil, errors.New("state has no frames")
	}
	if (len(opts.Delays) == 0 && frames != 1) || (len(opts.Delays) > 0 && len(opts.Delays) != frames) {
		return nil, errDelayCount
	}

	s := &State{
		Name:     opts.Name,
		Movement: opts.Movement,
		Delays:   slices.Clone(opts.Delays),
		Loop:     opts.Loop,
		Rewind:   opts.Rewind,
		dirs:     dirs,
		frames:   frames,
		images:   make([]*image.NRGBA, 0, dirs*frames),
	}
	want := opts.Width * opts.Height * 4
	for f := 0; f < frames; f++ {
		for _, d := range dmiOrder[:dirs] {
			buf := data[d][f]
			if len(buf) != want {
				return nil, fmt.Errorf("frame %d %s: %d bytes, need %d to fill %dx%d", f, d, len(buf), want, opts.Width, opts.Height)
			}
			img := image.NewNRGBA(image.Rect(0, 0, opts.Width, opts.Height))
			copy(img.Pix, buf)
			s.images = append(s.images, img)
		}
	}
	return s, nil
}

// pixels returns img's rows packed without stride padding.
func pixels(img *image.NRGBA) []byte {
	b := img.Bounds()
	rowLen := b.Dx() * 4
	out := make([]byte, 0, rowLen*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[start:start+rowLen]...)
	}
	return out
}
