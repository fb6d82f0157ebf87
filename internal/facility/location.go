package facility

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Errors
var (
	ErrLocationResolution = errors.New("location could not be resolved")
	ErrUnknownPath        = errors.New("unknown path")
	ErrDuplicateAlias     = errors.New("alias already mapped")
)

// Level identifies a node's place in the location hierarchy.
type Level string

const (
	LevelFacility Level = "facility"
	LevelAisle    Level = "aisle"
	LevelBay      Level = "bay"
	LevelTier     Level = "tier"
	LevelSlot     Level = "slot"
)

// Location is one node of the Facility->Aisle->Bay->Tier->Slot hierarchy.
// PosAlongPath is monotonic within one path and drives pick sequencing;
// a location with no path association is "unmodeled" and yields no work.
type Location struct {
	Name         string
	Level        Level
	Alias        string
	Parent       *Location
	Children     []*Location
	PathID       string
	PosAlongPath float64
	PosconIndex  *int
	LedChannel   int
	LedOffset    int
	TapeID       int
}

// FullName returns the dotted hierarchy name, e.g. "A1.B2.T1.S3".
func (l *Location) FullName() string {
	if l.Parent == nil || l.Parent.Level == LevelFacility {
		return l.Name
	}
	return l.Parent.FullName() + "." + l.Name
}

// BestName prefers the human alias over the hierarchy name.
func (l *Location) BestName() string {
	if l.Alias != "" {
		return l.Alias
	}
	return l.FullName()
}

// AncestorAtLevel walks up to the requested level. Returns nil if the
// location sits below no such ancestor (or is itself above that level).
func (l *Location) AncestorAtLevel(level Level) *Location {
	for loc := l; loc != nil; loc = loc.Parent {
		if loc.Level == level {
			return loc
		}
	}
	return nil
}

// Bay is shorthand for AncestorAtLevel(LevelBay).
func (l *Location) Bay() *Location {
	return l.AncestorAtLevel(LevelBay)
}

// IsModeled reports whether the location participates in a pick path.
func (l *Location) IsModeled() bool {
	return l.PathID != ""
}

// HasPoscon reports whether a position controller is assigned here.
func (l *Location) HasPoscon() bool {
	return l.PosconIndex != nil
}

// Facility is the root of the location model. It owns alias, tape-id and
// path indexes so that scans resolve in O(1). Safe for concurrent readers;
// topology changes take the write lock.
type Facility struct {
	mu      sync.RWMutex
	name    string
	root    *Location
	byAlias map[string]*Location
	byName  map[string]*Location
	byTape  map[int]*Location
	paths   map[string]*Path
}

// NewFacility creates an empty facility.
func NewFacility(name string) *Facility {
	root := &Location{Name: name, Level: LevelFacility}
	return &Facility{
		name:    name,
		root:    root,
		byAlias: make(map[string]*Location),
		byName:  make(map[string]*Location),
		byTape:  make(map[int]*Location),
		paths:   make(map[string]*Path),
	}
}

// Name returns the facility name.
func (f *Facility) Name() string {
	return f.name
}

// AddLocation attaches a child location under parent (nil means the facility
// root) and indexes it. The dotted full name must be unique.
func (f *Facility) AddLocation(parent *Location, loc *Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if parent == nil {
		parent = f.root
	}
	loc.Parent = parent
	parent.Children = append(parent.Children, loc)

	full := loc.FullName()
	if _, exists := f.byName[full]; exists {
		return fmt.Errorf("location %s: %w", full, ErrDuplicateAlias)
	}
	f.byName[full] = loc

	if loc.Alias != "" {
		key := strings.ToUpper(loc.Alias)
		if _, exists := f.byAlias[key]; exists {
			return fmt.Errorf("alias %s: %w", loc.Alias, ErrDuplicateAlias)
		}
		f.byAlias[key] = loc
	}
	if loc.TapeID > 0 {
		f.byTape[loc.TapeID] = loc
	}
	return nil
}

// SetAlias maps (or remaps) a human alias onto a known location.
func (f *Facility) SetAlias(fullName, alias string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, ok := f.byName[fullName]
	if !ok {
		return fmt.Errorf("location %s: %w", fullName, ErrLocationResolution)
	}
	if loc.Alias != "" {
		delete(f.byAlias, strings.ToUpper(loc.Alias))
	}
	loc.Alias = alias
	f.byAlias[strings.ToUpper(alias)] = loc
	return nil
}

// ResolveName resolves a scanned alias or dotted full name to a location.
func (f *Facility) ResolveName(scan string) (*Location, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if loc, ok := f.byAlias[strings.ToUpper(scan)]; ok {
		return loc, nil
	}
	if loc, ok := f.byName[scan]; ok {
		return loc, nil
	}
	return nil, fmt.Errorf("%q: %w", scan, ErrLocationResolution)
}

// ResolveTape resolves a scanned tape code to the owning location and the
// scanned centimeter offset from its left edge.
func (f *Facility) ResolveTape(scan string) (*Location, int, error) {
	guid, offsetCm, err := DecodeTape(scan)
	if err != nil {
		return nil, 0, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	loc, ok := f.byTape[guid]
	if !ok {
		return nil, 0, fmt.Errorf("tape %d: %w", guid, ErrLocationResolution)
	}
	return loc, offsetCm, nil
}

// LocationsOnPath returns all indexed locations belonging to the path,
// ordered ascending by PosAlongPath with full name as a stable tie-break.
func (f *Facility) LocationsOnPath(pathID string) []*Location {
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []*Location
	for _, loc := range f.byName {
		if loc.PathID == pathID {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PosAlongPath != out[j].PosAlongPath {
			return out[i].PosAlongPath < out[j].PosAlongPath
		}
		return out[i].FullName() < out[j].FullName()
	})
	return out
}
