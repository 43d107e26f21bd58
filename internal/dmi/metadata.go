package dmi

import (
	"fmt"
	"strconv"
	"strings"

	"avulto/internal/dmerr"
	"avulto/internal/source"
)

const (
	metaBegin      = "# BEGIN DMI"
	metaEnd        = "# END DMI"
	defaultVersion = "4.0"
)

// Setting is a metadata key this package does not interpret. It is kept
// so that saving does not drop it.
type Setting struct {
	Key   string
	Value string
}

type header struct {
	version       string
	width, height int
	states        []*State
}

func parseMetadata(file, text string) (*header, error) {
	h := &header{version: defaultVersion, width: 32, height: 32}
	var cur *State
	begun := false
	for n, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		loc := source.At(file, n+1, 0)
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			continue
		case trimmed == metaBegin:
			begun = true
			continue
		case trimmed == metaEnd:
			return h, finishState(cur, loc)
		case !begun:
			return nil, dmerr.Parse(loc, "metadata does not start with %q", metaBegin)
		}

		key, value, ok := strings.Cut(trimmed, "=")
		if !ok {
			return nil, dmerr.Parse(loc, "malformed metadata line %q", trimmed)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if key == "state" {
			if err := finishState(cur, loc); err != nil {
				return nil, err
			}
			cur = &State{Name: unquote(value), dirs: 1, frames: 1}
			h.states = append(h.states, cur)
			continue
		}
		if cur == nil {
			if err := h.set(key, value, loc); err != nil {
				return nil, err
			}
			continue
		}
		if err := cur.set(key, value, loc); err != nil {
			return nil, err
		}
	}
	if !begun {
		return nil, dmerr.Parse(source.At(file, 1, 0), "missing %q", metaBegin)
	}
	return nil, dmerr.Parse(source.At(file, 0, 0), "missing %q", metaEnd)
}

func (h *header) set(key, value string, loc source.Location) error {
	var err error
	switch key {
	case "version":
		h.version = value
	case "width":
		h.width, err = positiveInt(value)
	case "height":
		h.height, err = positiveInt(value)
	}
	if err != nil {
		return dmerr.Parse(loc, "icon %s: %v", key, err)
	}
	return nil
}

func (s *State) set(key, value string, loc source.Location) error {
	var err error
	switch key {
	case "dirs":
		s.dirs, err = strconv.Atoi(value)
		if err == nil && !validDirCount(s.dirs) {
			err = fmt.Errorf("unsupported direction count %d", s.dirs)
		}
	case "frames":
		s.frames, err = positiveInt(value)
	case "delay":
		s.Delays, err = parseDelays(value)
	case "loop":
		s.Loop, err = strconv.Atoi(value)
	case "rewind":
		s.Rewind, err = flag(value)
	case "movement":
		s.Movement, err = flag(value)
	case "hotspot":
		s.Hotspot, err = parseHotspot(value)
	default:
		s.Extra = append(s.Extra, Setting{Key: key, Value: value})
	}
	if err != nil {
		return dmerr.Parse(loc, "state %q %s: %v", s.Name, key, err)
	}
	return nil
}

func finishState(s *State, loc source.Location) error {
	if s == nil {
		return nil
	}
	if len(s.Delays) > 0 && len(s.Delays) != s.frames {
		return dmerr.Parse(loc, "state %q has %d delays for %d frames", s.Name, len(s.Delays), s.frames)
	}
	return nil
}

func positiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("%d is not positive", n)
	}
	return n, nil
}

func flag(s string) (bool, error) {
	n, err := strconv.Atoi(s)
	return n != 0, err
}

func parseDelays(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func parseHotspot(s string) (*Hotspot, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("want x,y,frame, got %q", s)
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		vals[i] = n
	}
	return &Hotspot{X: vals[0], Y: vals[1], Frame: vals[2]}, nil
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	return strings.Trim(s, `"`)
}

func formatMetadata(version string, width, height int, states []*State) string {
	var b strings.Builder
	b.WriteString(metaBegin + "\n")
	fmt.Fprintf(&b, "version = %s\n", version)
	fmt.Fprintf(&b, "\twidth = %d\n", width)
	fmt.Fprintf(&b, "\theight = %d\n", height)
	for _, s := range states {
		fmt.Fprintf(&b, "state = %s\n", strconv.Quote(s.Name))
		fmt.Fprintf(&b, "\tdirs = %d\n", s.dirs)
		fmt.Fprintf(&b, "\tframes = %d\n", s.frames)
		if len(s.Delays) > 0 {
			parts := make([]string, len(s.Delays))
			for i, d := range s.Delays {
				parts[i] = strconv.FormatFloat(d, 'f', -1, 64)
			}
			fmt.Fprintf(&b, "\tdelay = %s\n", strings.Join(parts, ","))
		}
		if s.Loop != 0 {
			fmt.Fprintf(&b, "\tloop = %d\n", s.Loop)
		}
		if s.Rewind {
			b.WriteString("\trewind = 1\n")
		}
		if s.Movement {
			b.WriteString("\tmovement = 1\n")
		}
		if s.Hotspot != nil {
			fmt.Fprintf(&b, "\thotspot = %d,%d,%d\n", s.Hotspot.X, s.Hotspot.Y, s.Hotspot.Frame)
		}
		for _, e := range s.Extra {
			fmt.Fprintf(&b, "\t%s = %s\n", e.Key, e.Value)
		}
	}
	b.WriteString(metaEnd + "\n")
	return b.String()
}
