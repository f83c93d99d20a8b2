// Package scene walks a project and produces the surfaces a ray index is
// built over, one solid per wall or floor, using a geometry kernel.
package scene

import (
	"fmt"

	"github.com/chazu/sleeve/pkg/kernel"
	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/raycast"
	"github.com/samber/lo"
)

// placement accumulates the offset of the document being walked and the
// container its elements belong to.
type placement struct {
	container model.ContainerID
	offset    model.Vec3
}

// Build walks the host document and every document it links, and returns
// one surface per wall and floor. Host elements are local surfaces; linked
// elements are tagged with their link instance and shifted by the link
// offset. Build is read-only and never mutates the project.
func Build(p *model.Project, k kernel.Kernel) ([]raycast.Surface, error) {
	host := p.Active()
	if host == nil {
		return nil, nil
	}

	surfaces, err := walkDocument(k, host, placement{container: model.LocalContainer})
	if err != nil {
		return nil, err
	}

	for _, link := range host.Links {
		doc := p.Document(link.Document)
		if doc == nil {
			return nil, fmt.Errorf("scene: link %s: document %q is not open", link.ID, link.Document)
		}
		if doc == host {
			return nil, fmt.Errorf("scene: link %s: document links to itself", link.ID)
		}
		collected, err := walkDocument(k, doc, placement{
			container: model.ContainerID(link.ID),
			offset:    link.Offset,
		})
		if err != nil {
			return nil, fmt.Errorf("scene: link %s: %w", link.ID, err)
		}
		surfaces = append(surfaces, collected...)
	}
	return surfaces, nil
}

// walkDocument collects the surfaces of one document.
func walkDocument(k kernel.Kernel, d *model.Document, pl placement) ([]raycast.Surface, error) {
	levels := lo.KeyBy(d.Levels, func(l *model.Level) model.ElementID { return l.ID })

	surfaces := make([]raycast.Surface, 0, len(d.Walls)+len(d.Floors))
	for _, w := range d.Walls {
		level, ok := levels[w.LevelID]
		if !ok {
			return nil, fmt.Errorf("scene: %s: wall %s: level %s not found", d.Title, w.ID, w.LevelID)
		}
		surfaces = append(surfaces, raycast.Surface{
			Ref:   ref(pl, w.ID),
			Class: model.ClassWall,
			Solid: WallSolid(k, w, level, pl.offset),
		})
	}
	for _, f := range d.Floors {
		level, ok := levels[f.LevelID]
		if !ok {
			return nil, fmt.Errorf("scene: %s: floor %s: level %s not found", d.Title, f.ID, f.LevelID)
		}
		surfaces = append(surfaces, raycast.Surface{
			Ref:   ref(pl, f.ID),
			Class: model.ClassFloor,
			Solid: FloorSolid(k, f, level, pl.offset),
		})
	}
	return surfaces, nil
}

func ref(pl placement, id model.ElementID) model.SurfaceRef {
	if pl.container.IsLocal() {
		return model.LocalSurface(id)
	}
	return model.LinkedSurface(model.ElementID(pl.container), id)
}

// WallSolid builds the body of a wall: a box Length x Thickness x Height
// centred on the baseline, turned to the baseline heading and lifted to
// the level elevation plus the wall's base offset.
func WallSolid(k kernel.Kernel, w *model.Wall, level *model.Level, offset model.Vec3) kernel.Solid {
	solid := k.Box(w.Length(), w.Thickness, w.Height)

	// Centre the thickness on the baseline.
	solid = k.Translate(solid, 0, -w.Thickness/2, 0)

	// Apply rotation first, then translation.
	if h := w.Heading(); h != 0 {
		solid = k.Rotate(solid, 0, 0, h)
	}

	at := w.Start.Add(offset)
	return k.Translate(solid, at.X, at.Y, level.Elevation+w.BaseOffset+offset.Z)
}

// FloorSolid builds the body of a floor slab whose top face sits at the
// level elevation.
func FloorSolid(k kernel.Kernel, f *model.Floor, level *model.Level, offset model.Vec3) kernel.Solid {
	solid := k.Box(f.Max.X-f.Min.X, f.Max.Y-f.Min.Y, f.Thickness)
	return k.Translate(solid,
		f.Min.X+offset.X,
		f.Min.Y+offset.Y,
		level.Elevation-f.Thickness+offset.Z)
}
