package facility

import "fmt"

// Path is an ordered travel route through the facility. A facility may have
// several disjoint paths; a CHE works exactly one path at a time.
type Path struct {
	ID       string
	Segments []*PathSegment
}

// PathSegment covers a contiguous run of aisles. StartPos is the distance of
// the segment head from the path origin; aisles associated to the segment get
// their locations' PosAlongPath assigned from it.
type PathSegment struct {
	Index    int
	StartPos float64
	Length   float64
}

// AddPath registers a path with the facility.
func (f *Facility) AddPath(p *Path) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths[p.ID] = p
}

// Path looks up a path by id.
func (f *Facility) Path(id string) (*Path, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.paths[id]
	if !ok {
		return nil, fmt.Errorf("path %s: %w", id, ErrUnknownPath)
	}
	return p, nil
}

// PathIDs returns the ids of all registered paths.
func (f *Facility) PathIDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.paths))
	for id := range f.paths {
		ids = append(ids, id)
	}
	return ids
}

// AssociateAisle puts an aisle (and every location under it) onto a path.
// Each location's PosAlongPath is the segment start plus its declared offset;
// locations keep whatever PosAlongPath was set at import when it is already
// beyond the segment start.
func (f *Facility) AssociateAisle(aisle *Location, pathID string, seg *PathSegment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.paths[pathID]; !ok {
		return fmt.Errorf("path %s: %w", pathID, ErrUnknownPath)
	}
	assignPath(aisle, pathID, seg.StartPos)
	return nil
}

func assignPath(loc *Location, pathID string, startPos float64) {
	loc.PathID = pathID
	if loc.PosAlongPath < startPos {
		loc.PosAlongPath += startPos
	}
	for _, child := range loc.Children {
		assignPath(child, pathID, startPos)
	}
}
