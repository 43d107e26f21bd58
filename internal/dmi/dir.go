package dmi

import (
	"fmt"
	"strings"
)

// Dir is a BYOND direction flag.
type Dir int

const (
	North     Dir = 1
	South     Dir = 2
	East      Dir = 4
	West      Dir = 8
	Northeast Dir = North | East
	Northwest Dir = North | West
	Southeast Dir = South | East
	Southwest Dir = South | West
)

// dmiOrder is the order directions are stored within each frame.
var dmiOrder = [...]Dir{South, North, East, West, Southeast, Southwest, Northeast, Northwest}

var dirNames = map[Dir]string{
	North: "NORTH", South: "SOUTH", East: "EAST", West: "WEST",
	Northeast: "NORTHEAST", Northwest: "NORTHWEST", Southeast: "SOUTHEAST", Southwest: "SOUTHWEST",
}

func (d Dir) String() string {
	if name, ok := dirNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Dir(%d)", int(d))
}

// ParseDir accepts a direction name such as "south" or "NE".
func ParseDir(s string) (Dir, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "N":
		return North, nil
	case "S":
		return South, nil
	case "E":
		return East, nil
	case "W":
		return West, nil
	case "NE":
		return Northeast, nil
	case "NW":
		return Northwest, nil
	case "SE":
		return Southeast, nil
	case "SW":
		return Southwest, nil
	}
	for d, n := range dirNames {
		if n == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// dirIndex is d's position within a frame of a state with count dirs.
func dirIndex(d Dir, count int) (int, bool) {
	for i, o := range dmiOrder[:count] {
		if o == d {
			return i, true
		}
	}
	return 0, false
}

func validDirCount(n int) bool {
	return n == 1 || n == 4 || n == 8
}
