package dme

import (
	"avulto/internal/constant"
	"avulto/internal/dmpath"
	"avulto/internal/source"
)

type builtinVar struct {
	name  string
	typ   string
	value constant.Value
}

type builtinType struct {
	path  string
	vars  []builtinVar
	procs []string
}

func plain(name string) builtinVar { return builtinVar{name: name} }

func typed(name, typ string) builtinVar { return builtinVar{name: name, typ: typ} }

func num(name string, n int) builtinVar {
	return builtinVar{name: name, value: constant.Int(n)}
}

// builtins are the types every environment starts with.
var builtins = []builtinType{
	{
		path:  "/datum",
		vars:  []builtinVar{plain("type"), plain("parent_type"), plain("tag"), typed("vars", "/list")},
		procs: []string{"New", "Del", "Topic", "Read", "Write"},
	},
	{
		path: "/atom",
		vars: []builtinVar{
			plain("name"), plain("desc"), typed("icon", "/icon"), {name: "icon_state", value: constant.String("")},
			num("dir", 2), num("layer", 1), num("density", 0), num("opacity", 0),
			typed("loc", "/atom"), num("x", 0), num("y", 0), num("z", 0),
			typed("contents", "/list"), typed("overlays", "/list"), typed("underlays", "/list"),
			num("invisibility", 0), num("luminosity", 0), num("mouse_opacity", 1),
			num("pixel_x", 0), num("pixel_y", 0), plain("color"), num("alpha", 255), num("plane", 0),
			plain("text"), plain("suffix"), typed("verbs", "/list"),
		},
		procs: []string{"Click", "DblClick", "Enter", "Entered", "Exit", "Exited", "Stat"},
	},
	{
		path:  "/atom/movable",
		vars:  []builtinVar{num("step_size", 32), num("animate_movement", 1), num("glide_size", 0)},
		procs: []string{"Move", "Bump"},
	},
	{path: "/obj", vars: []builtinVar{num("layer", 3)}},
	{
		path:  "/mob",
		vars:  []builtinVar{num("layer", 4), plain("key"), plain("ckey"), typed("client", "/client")},
		procs: []string{"Login", "Logout"},
	},
	{path: "/turf", vars: []builtinVar{num("layer", 2)}},
	{path: "/area", vars: []builtinVar{num("layer", 1)}},
	{
		path:  "/client",
		vars:  []builtinVar{plain("key"), plain("ckey"), typed("mob", "/mob"), num("view", 7), typed("eye", "/atom"), plain("statobj")},
		procs: []string{"New", "Del", "Topic", "Stat", "Click", "Move"},
	},
	{
		path: "/world",
		vars: []builtinVar{
			plain("name"), num("maxx", 0), num("maxy", 0), num("maxz", 0), num("view", 5),
			num("fps", 10), plain("tick_lag"), plain("mob"), plain("turf"), plain("area"),
		},
		procs: []string{"New", "Del", "Topic", "Reboot"},
	},
	{
		path:  "/list",
		vars:  []builtinVar{num("len", 0)},
		procs: []string{"Add", "Remove", "Find", "Copy", "Cut", "Insert", "Join", "Swap"},
	},
	{path: "/savefile", vars: []builtinVar{plain("name"), plain("cd")}},
	{path: "/image", vars: []builtinVar{typed("icon", "/icon"), plain("icon_state"), num("layer", 0), typed("loc", "/atom"), num("dir", 2)}},
	{path: "/icon", procs: []string{"Blend", "Crop", "Flip", "Turn", "Scale", "SwapColor", "GetPixel", "DrawBox"}},
	{path: "/sound", vars: []builtinVar{plain("file"), num("repeat", 0), num("channel", 0), num("volume", 100)}},
	{path: "/matrix", vars: []builtinVar{num("a", 1), num("b", 0), num("c", 0), num("d", 0), num("e", 1), num("f", 0)}},
	{path: "/regex", vars: []builtinVar{plain("text"), plain("flags"), plain("match"), plain("index"), plain("next"), typed("group", "/list")}, procs: []string{"Find", "Replace"}},
	{path: "/database"},
	{path: "/exception", vars: []builtinVar{plain("name"), plain("desc"), plain("file"), plain("line")}},
	{path: "/generator"},
	{path: "/particles"},
	{path: "/mutable_appearance"},
	{path: "/dm_filter"},
}

func (e *Environment) seedBuiltins() {
	for _, b := range builtins {
		p := dmpath.MustNew(b.path)
		td := e.ensure(p, source.Builtins)
		for _, bv := range b.vars {
			typ := dmpath.Root()
			if bv.typ != "" {
				typ = dmpath.MustNew(bv.typ)
			}
			decl := &VarDecl{
				Name:     bv.name,
				Type:     typ,
				Value:    bv.value,
				Const:    true,
				Tag:      Declared,
				Location: source.Builtins,
				Owner:    p,
				ascribed: true,
			}
			if parent := td.Parent(); parent != nil {
				if inherited, err := parent.VarDecl(bv.name); err == nil {
					decl.Type, decl.Tag, decl.ascribed = inherited.Type, Modified, false
				}
			}
			td.setVar(decl)
		}
		for _, name := range b.procs {
			td.addProc(&ProcDecl{
				Name:     name,
				Owner:    p,
				Location: source.Builtins,
				Declared: true,
				parsed:   true,
			})
		}
	}
}
