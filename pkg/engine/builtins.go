package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/sleeve/pkg/model"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms model script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: base-level -> base_level
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a model.Vec3.
type sexpVec3 struct {
	vec model.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpElement wraps one element built by an element builtin until a
// document collects it.
type sexpElement struct {
	class model.Class
	id    model.ElementID
	value any
}

func (e *sexpElement) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(%s %s)", e.class, e.id)
}
func (e *sexpElement) Type() *zygo.RegisteredType { return nil }

// sexpDocument is returned by `document`.
type sexpDocument struct {
	doc *model.Document
}

func (d *sexpDocument) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(document %q)", d.doc.Title)
}
func (d *sexpDocument) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value: treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toBool extracts a boolean. A bare trailing keyword (nil value) counts
// as true.
func toBool(s zygo.Sexp) (bool, error) {
	switch v := s.(type) {
	case *zygo.SexpBool:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return true, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
}

// toElementID extracts an integral element id.
func toElementID(s zygo.Sexp) (model.ElementID, error) {
	f, err := toFloat64(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < 0 {
		return 0, fmt.Errorf("element id must be a non-negative integer, got %g", f)
	}
	return model.ElementID(f), nil
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (model.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return model.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// optFloat reads an optional numeric keyword.
func (pa kwArgs) optFloat(name string, def float64) (float64, error) {
	v, ok := pa.kw[name]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// reqFloat reads a required numeric keyword.
func (pa kwArgs) reqFloat(name string) (float64, error) {
	if _, ok := pa.kw[name]; !ok {
		return 0, fmt.Errorf("missing :%s", name)
	}
	return pa.optFloat(name, 0)
}

// optString reads an optional string keyword.
func (pa kwArgs) optString(name, def string) (string, error) {
	v, ok := pa.kw[name]
	if !ok {
		return def, nil
	}
	s, err := toString(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

// reqString reads a required, non-empty string keyword.
func (pa kwArgs) reqString(name string) (string, error) {
	s, err := pa.optString(name, "")
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("missing :%s", name)
	}
	return s, nil
}

// reqVec3 reads a required vec3 keyword.
func (pa kwArgs) reqVec3(name string) (model.Vec3, error) {
	v, ok := pa.kw[name]
	if !ok {
		return model.Vec3{}, fmt.Errorf("missing :%s", name)
	}
	vec, err := toVec3(v)
	if err != nil {
		return model.Vec3{}, fmt.Errorf("%s: %w", name, err)
	}
	return vec, nil
}

// reqID reads a required element id keyword, such as a level reference.
func (pa kwArgs) reqID(name string) (model.ElementID, error) {
	v, ok := pa.kw[name]
	if !ok {
		return 0, fmt.Errorf("missing :%s", name)
	}
	id, err := toElementID(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return id, nil
}

// ---------------------------------------------------------------------------
// Element ID generation
// ---------------------------------------------------------------------------

// autoIDBase is the first id handed to elements without an explicit :id,
// well above the ids scripts usually pick by hand.
const autoIDBase model.ElementID = 1 << 20

// builder accumulates the documents of one evaluation.
type builder struct {
	project *model.Project
	nextID  model.ElementID
}

func newBuilder() *builder {
	return &builder{project: model.NewProject(), nextID: autoIDBase}
}

// elementID returns the element's :id, or the next automatic id.
func (b *builder) elementID(pa kwArgs) (model.ElementID, error) {
	v, ok := pa.kw["id"]
	if !ok {
		id := b.nextID
		b.nextID++
		return id, nil
	}
	id, err := toElementID(v)
	if err != nil {
		return 0, fmt.Errorf("id: %w", err)
	}
	return id, nil
}

// collect adds one element to d.
func collect(d *model.Document, e *sexpElement) {
	switch v := e.value.(type) {
	case *model.Level:
		d.Levels = append(d.Levels, v)
	case *model.View3D:
		d.Views = append(d.Views, v)
	case *model.FamilySymbol:
		d.Families = append(d.Families, v)
	case *model.Wall:
		d.Walls = append(d.Walls, v)
	case *model.Floor:
		d.Floors = append(d.Floors, v)
	case *model.LinearElement:
		if v.Kind == model.KindPipe {
			d.Pipes = append(d.Pipes, v)
		} else {
			d.Ducts = append(d.Ducts, v)
		}
	case *model.LinkInstance:
		d.Links = append(d.Links, v)
	}
}

// collectAll adds elements, or lists of elements, to d.
func collectAll(d *model.Document, items []zygo.Sexp) error {
	for i, item := range items {
		switch v := item.(type) {
		case *sexpElement:
			collect(d, v)
		case *zygo.SexpPair, *zygo.SexpArray:
			nested, err := sexpListToSlice(v)
			if err != nil {
				return err
			}
			if err := collectAll(d, nested); err != nil {
				return err
			}
		case *zygo.SexpSentinel:
			if v != zygo.SexpNull {
				return fmt.Errorf("item %d: expected element, got %s", i, v.SexpString(nil))
			}
		default:
			return fmt.Errorf("item %d: expected element, got %T (%s)", i, item, item.SexpString(nil))
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// linearBuiltin returns the builtin for ducts or pipes:
// (duct :id 100 :from (vec3 ...) :to (vec3 ...) :diameter 0.4 [:mid (vec3 ...)])
// A :mid point makes the run an arc through it.
func linearBuiltin(b *builder, kind model.LinearKind) func(*zygo.Zlisp, string, []zygo.Sexp) (zygo.Sexp, error) {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := b.elementID(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}
		from, err := pa.reqVec3("from")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}
		to, err := pa.reqVec3("to")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}
		dia, err := pa.reqFloat("diameter")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", kind, err)
		}

		var curve model.Curve = model.Line{Start: from, End: to}
		if v, ok := pa.kw["mid"]; ok {
			mid, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: mid: %w", kind, err)
			}
			curve = model.Arc{Start: from, Mid: mid, End: to}
		}

		class := model.ClassDuct
		if kind == model.KindPipe {
			class = model.ClassPipe
		}
		e := &model.LinearElement{ID: id, Kind: kind, Curve: curve, Diameter: dia}
		return &sexpElement{class: class, id: id, value: e}, nil
	}
}

// registerBuiltins installs the model DSL builtins into a zygomys
// environment. Documents are appended to b.project in evaluation order;
// the first document evaluated is the host model.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: model.Vec3{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (level :id 1 :name "L1" :elevation 0)
	// -----------------------------------------------------------------------
	env.AddFunction("level", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := b.elementID(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("level: %w", err)
		}
		lname, err := pa.reqString("name")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("level: %w", err)
		}
		elev, err := pa.optFloat("elevation", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("level: %w", err)
		}

		l := &model.Level{ID: id, Name: lname, Elevation: elev}
		return &sexpElement{class: model.ClassLevel, id: id, value: l}, nil
	})

	// -----------------------------------------------------------------------
	// (view3d :id 2 :name "{3D}" :template false :hidden (list 14 15))
	// -----------------------------------------------------------------------
	env.AddFunction("view3d", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := b.elementID(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("view3d: %w", err)
		}
		vname, err := pa.optString("name", "{3D}")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("view3d: %w", err)
		}

		v := &model.View3D{ID: id, Name: vname}
		if s, ok := pa.kw["template"]; ok {
			tmpl, err := toBool(s)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("view3d: template: %w", err)
			}
			v.IsTemplate = tmpl
		}
		if s, ok := pa.kw["hidden"]; ok {
			items, err := sexpListToSlice(s)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("view3d: hidden: %w", err)
			}
			for _, item := range items {
				hid, err := toElementID(item)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("view3d: hidden entry: %w", err)
				}
				v.Hidden = append(v.Hidden, hid)
			}
		}
		return &sexpElement{class: model.ClassView3D, id: id, value: v}, nil
	})

	// -----------------------------------------------------------------------
	// (family :id 3 :family "Отверстия" :name "Square" :category "generic-model")
	// -----------------------------------------------------------------------
	env.AddFunction("family", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := b.elementID(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("family: %w", err)
		}
		fam, err := pa.reqString("family")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("family: %w", err)
		}
		sym, err := pa.optString("name", fam)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("family: %w", err)
		}
		cat, err := pa.optString("category", model.CategoryGenericModel)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("family: %w", err)
		}

		f := &model.FamilySymbol{ID: id, FamilyName: fam, Name: sym, Category: cat}
		return &sexpElement{class: model.ClassFamilySymbol, id: id, value: f}, nil
	})

	// -----------------------------------------------------------------------
	// (wall :id 10 :level 1 :from (vec3 0 0 0) :to (vec3 10 0 0)
	//       :thickness 0.3 :height 3 :base-offset 0)
	// -----------------------------------------------------------------------
	env.AddFunction("wall", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := b.elementID(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("wall: %w", err)
		}
		w := &model.Wall{ID: id}
		if w.LevelID, err = pa.reqID("level"); err != nil {
			return zygo.SexpNull, fmt.Errorf("wall: %w", err)
		}
		if w.Start, err = pa.reqVec3("from"); err != nil {
			return zygo.SexpNull, fmt.Errorf("wall: %w", err)
		}
		if w.End, err = pa.reqVec3("to"); err != nil {
			return zygo.SexpNull, fmt.Errorf("wall: %w", err)
		}
		if w.Thickness, err = pa.reqFloat("thickness"); err != nil {
			return zygo.SexpNull, fmt.Errorf("wall: %w", err)
		}
		if w.Height, err = pa.reqFloat("height"); err != nil {
			return zygo.SexpNull, fmt.Errorf("wall: %w", err)
		}
		if w.BaseOffset, err = pa.optFloat("base-offset", 0); err != nil {
			return zygo.SexpNull, fmt.Errorf("wall: %w", err)
		}
		return &sexpElement{class: model.ClassWall, id: id, value: w}, nil
	})

	// -----------------------------------------------------------------------
	// (floor :id 30 :level 1 :min (vec3 0 0 0) :max (vec3 10 8 0) :thickness 0.2)
	// -----------------------------------------------------------------------
	env.AddFunction("floor", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := b.elementID(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("floor: %w", err)
		}
		f := &model.Floor{ID: id}
		if f.LevelID, err = pa.reqID("level"); err != nil {
			return zygo.SexpNull, fmt.Errorf("floor: %w", err)
		}
		if f.Min, err = pa.reqVec3("min"); err != nil {
			return zygo.SexpNull, fmt.Errorf("floor: %w", err)
		}
		if f.Max, err = pa.reqVec3("max"); err != nil {
			return zygo.SexpNull, fmt.Errorf("floor: %w", err)
		}
		if f.Thickness, err = pa.reqFloat("thickness"); err != nil {
			return zygo.SexpNull, fmt.Errorf("floor: %w", err)
		}
		return &sexpElement{class: model.ClassFloor, id: id, value: f}, nil
	})

	env.AddFunction("duct", linearBuiltin(b, model.KindDuct))
	env.AddFunction("pipe", linearBuiltin(b, model.KindPipe))

	// -----------------------------------------------------------------------
	// (link :id 900 :document "Office-ОВ" :at (vec3 0 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("link", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		id, err := b.elementID(pa)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("link: %w", err)
		}
		title, err := pa.reqString("document")
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("link: %w", err)
		}
		l := &model.LinkInstance{ID: id, Document: title}
		if v, ok := pa.kw["at"]; ok {
			if l.Offset, err = toVec3(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("link: at: %w", err)
			}
		}
		return &sexpElement{class: model.ClassLinkInstance, id: id, value: l}, nil
	})

	// -----------------------------------------------------------------------
	// (document "AR" (level ...) (wall ...) (list (duct ...) ...) ...)
	// -----------------------------------------------------------------------
	env.AddFunction("document", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("document requires a title argument")
		}

		title, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("document: title: %w", err)
		}
		if b.project.Document(title) != nil {
			return zygo.SexpNull, fmt.Errorf("document: %q is already defined", title)
		}

		d := model.NewDocument(title)
		if err := collectAll(d, args[1:]); err != nil {
			return zygo.SexpNull, fmt.Errorf("document %q: %w", title, err)
		}
		b.project.AddDocument(d)

		return &sexpDocument{doc: d}, nil
	})
}
