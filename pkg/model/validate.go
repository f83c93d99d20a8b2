package model

import "fmt"

// ValidationSeverity indicates whether a finding blocks a run or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks placement
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Document string             // document title
	Element  ElementID          // InvalidElementID for document-level findings
	Message  string             // human-readable description
	Severity ValidationSeverity // error or warning
}

func (e ValidationError) Error() string {
	if !e.Element.IsValid() {
		return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Document, e.Message)
	}
	return fmt.Sprintf("[%s] %s element %s: %s", e.Severity, e.Document, e.Element, e.Message)
}

// ValidationResult bundles blocking errors and advisory warnings.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// OK reports whether no blocking errors were found.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate checks every document of the project. Structural problems
// (duplicate ids, dangling references, impossible dimensions) are errors;
// elements that will be skipped at run time are warnings. Validate never
// mutates the project.
func Validate(p *Project) ValidationResult {
	var findings []ValidationError
	for _, d := range p.Documents {
		findings = append(findings, validateUniqueIDs(d)...)
		findings = append(findings, validateLevelRefs(d)...)
		findings = append(findings, validateLinks(p, d)...)
		findings = append(findings, validateDimensions(d)...)
		findings = append(findings, validateCurves(d)...)
	}

	var result ValidationResult
	for _, f := range findings {
		if f.Severity == SeverityWarning {
			result.Warnings = append(result.Warnings, f)
		} else {
			result.Errors = append(result.Errors, f)
		}
	}
	return result
}

// validateUniqueIDs checks that no two elements of a document share an id.
func validateUniqueIDs(d *Document) []ValidationError {
	var errs []ValidationError
	seen := make(map[ElementID]Class)

	check := func(id ElementID, c Class) {
		if prev, ok := seen[id]; ok {
			errs = append(errs, ValidationError{
				Document: d.Title,
				Element:  id,
				Message:  fmt.Sprintf("%s id already used by a %s", c, prev),
				Severity: SeverityError,
			})
			return
		}
		seen[id] = c
	}

	for _, l := range d.Levels {
		check(l.ID, ClassLevel)
	}
	for _, w := range d.Walls {
		check(w.ID, ClassWall)
	}
	for _, f := range d.Floors {
		check(f.ID, ClassFloor)
	}
	for _, e := range d.Ducts {
		check(e.ID, ClassDuct)
	}
	for _, e := range d.Pipes {
		check(e.ID, ClassPipe)
	}
	for _, f := range d.Families {
		check(f.ID, ClassFamilySymbol)
	}
	for _, v := range d.Views {
		check(v.ID, ClassView3D)
	}
	for _, l := range d.Links {
		check(l.ID, ClassLinkInstance)
	}
	return errs
}

// validateLevelRefs checks that every wall and floor sits on a known level.
func validateLevelRefs(d *Document) []ValidationError {
	var errs []ValidationError
	for _, w := range d.Walls {
		if d.Level(w.LevelID) == nil {
			errs = append(errs, ValidationError{
				Document: d.Title,
				Element:  w.ID,
				Message:  fmt.Sprintf("wall level %s does not exist", w.LevelID),
				Severity: SeverityError,
			})
		}
	}
	for _, f := range d.Floors {
		if d.Level(f.LevelID) == nil {
			errs = append(errs, ValidationError{
				Document: d.Title,
				Element:  f.ID,
				Message:  fmt.Sprintf("floor level %s does not exist", f.LevelID),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateLinks checks that every link instance names an open document
// other than its own.
func validateLinks(p *Project, d *Document) []ValidationError {
	var errs []ValidationError
	for _, l := range d.Links {
		target := p.Document(l.Document)
		switch {
		case target == nil:
			errs = append(errs, ValidationError{
				Document: d.Title,
				Element:  l.ID,
				Message:  fmt.Sprintf("linked document %q is not open", l.Document),
				Severity: SeverityError,
			})
		case target == d:
			errs = append(errs, ValidationError{
				Document: d.Title,
				Element:  l.ID,
				Message:  "document links to itself",
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateDimensions checks wall and element sizes are positive.
func validateDimensions(d *Document) []ValidationError {
	var errs []ValidationError
	bad := func(id ElementID, what string, v float64) {
		errs = append(errs, ValidationError{
			Document: d.Title,
			Element:  id,
			Message:  fmt.Sprintf("%s is %.4f, must be positive", what, v),
			Severity: SeverityError,
		})
	}

	for _, w := range d.Walls {
		if w.Length() <= 0 {
			bad(w.ID, "wall length", w.Length())
		}
		if w.Thickness <= 0 {
			bad(w.ID, "wall thickness", w.Thickness)
		}
		if w.Height <= 0 {
			bad(w.ID, "wall height", w.Height)
		}
	}
	for _, f := range d.Floors {
		if f.Thickness <= 0 {
			bad(f.ID, "floor thickness", f.Thickness)
		}
		if f.Max.X <= f.Min.X || f.Max.Y <= f.Min.Y {
			bad(f.ID, "floor plan area", (f.Max.X-f.Min.X)*(f.Max.Y-f.Min.Y))
		}
	}
	for _, e := range d.LinearElements() {
		if e.Diameter <= 0 {
			bad(e.ID, e.Kind.String()+" diameter", e.Diameter)
		}
	}
	return errs
}

// validateCurves warns about linear elements that will be skipped because
// their location curve is not a usable straight segment.
func validateCurves(d *Document) []ValidationError {
	var warnings []ValidationError
	for _, e := range d.LinearElements() {
		if _, err := e.Segment(); err != nil {
			warnings = append(warnings, ValidationError{
				Document: d.Title,
				Element:  e.ID,
				Message:  fmt.Sprintf("%s will be skipped: %v", e.Kind, err),
				Severity: SeverityWarning,
			})
		}
	}
	return warnings
}
