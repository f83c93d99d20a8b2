package model

import (
	"fmt"
	"strings"
)

// Document is one building model: a titled collection of elements. It is
// built once by the engine and never mutated afterwards; placements go to
// the store, not back into the document.
type Document struct {
	Title    string          `json:"title"`
	Levels   []*Level        `json:"levels"`
	Walls    []*Wall         `json:"walls"`
	Floors   []*Floor        `json:"floors"`
	Ducts    []*LinearElement `json:"ducts"`
	Pipes    []*LinearElement `json:"pipes"`
	Families []*FamilySymbol `json:"families"`
	Views    []*View3D       `json:"views"`
	Links    []*LinkInstance `json:"links"`
}

// NewDocument creates an empty document with the given title.
func NewDocument(title string) *Document {
	return &Document{Title: title}
}

// Level returns the level with the given id, or nil.
func (d *Document) Level(id ElementID) *Level {
	for _, l := range d.Levels {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// LevelByName returns the level with the given name, or nil.
func (d *Document) LevelByName(name string) *Level {
	for _, l := range d.Levels {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// Wall returns the wall with the given id, or nil.
func (d *Document) Wall(id ElementID) *Wall {
	for _, w := range d.Walls {
		if w.ID == id {
			return w
		}
	}
	return nil
}

// Link returns the link instance with the given id, or nil.
func (d *Document) Link(id ElementID) *LinkInstance {
	for _, l := range d.Links {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// FindFamily returns the first symbol of the named family in the given
// category, or nil.
func (d *Document) FindFamily(familyName, category string) *FamilySymbol {
	for _, f := range d.Families {
		if f.FamilyName == familyName && f.Category == category {
			return f
		}
	}
	return nil
}

// First3DView returns the first 3D view that is not a template, or nil.
func (d *Document) First3DView() *View3D {
	for _, v := range d.Views {
		if !v.IsTemplate {
			return v
		}
	}
	return nil
}

// LinearElements returns ducts followed by pipes.
func (d *Document) LinearElements() []*LinearElement {
	out := make([]*LinearElement, 0, len(d.Ducts)+len(d.Pipes))
	out = append(out, d.Ducts...)
	out = append(out, d.Pipes...)
	return out
}

// ElementCount returns the number of elements in the document.
func (d *Document) ElementCount() int {
	return len(d.Levels) + len(d.Walls) + len(d.Floors) + len(d.Ducts) +
		len(d.Pipes) + len(d.Families) + len(d.Views) + len(d.Links)
}

// ---------------------------------------------------------------------------
// Project
// ---------------------------------------------------------------------------

// Project is the set of open documents. The first document is the active
// (host) model; the rest are available to links and title lookups.
type Project struct {
	Documents []*Document `json:"documents"`
}

// NewProject creates an empty project.
func NewProject() *Project {
	return &Project{}
}

// AddDocument appends d to the project.
func (p *Project) AddDocument(d *Document) {
	p.Documents = append(p.Documents, d)
}

// Active returns the host document, or nil if the project is empty.
func (p *Project) Active() *Document {
	if len(p.Documents) == 0 {
		return nil
	}
	return p.Documents[0]
}

// Document returns the document with exactly the given title, or nil.
func (p *Project) Document(title string) *Document {
	for _, d := range p.Documents {
		if d.Title == title {
			return d
		}
	}
	return nil
}

// MustDocument returns the document with the given title, or panics.
func (p *Project) MustDocument(title string) *Document {
	d := p.Document(title)
	if d == nil {
		panic(fmt.Sprintf("model: no document titled %q", title))
	}
	return d
}

// FindByTitleContains returns the first document whose title contains
// substr, or nil. The active document is a candidate too, so ducts and
// walls may come from the same model.
func (p *Project) FindByTitleContains(substr string) *Document {
	for _, d := range p.Documents {
		if strings.Contains(d.Title, substr) {
			return d
		}
	}
	return nil
}
