package device

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/poscon"
)

// DisplaySink is the transport boundary to the physical device: a 4-line
// text display and the poscon bus. Implementations must not block; the
// machine holds its lock while rendering.
type DisplaySink interface {
	SendDisplay(cheName string, lines [4]string)
	SendPoscons(cheName string, instructions []poscon.Instruction)
}

// NopSink discards output.
type NopSink struct{}

func (NopSink) SendDisplay(string, [4]string)            {}
func (NopSink) SendPoscons(string, []poscon.Instruction) {}

// RecordingSink retains the last render per device for tests and for
// mirroring a cart's display to a linked mobile.
type RecordingSink struct {
	mu      sync.Mutex
	Lines   map[string][4]string
	Poscons map[string]map[byte]poscon.Instruction
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{
		Lines:   make(map[string][4]string),
		Poscons: make(map[string]map[byte]poscon.Instruction),
	}
}

func (s *RecordingSink) SendDisplay(cheName string, lines [4]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lines[cheName] = lines
}

func (s *RecordingSink) SendPoscons(cheName string, instructions []poscon.Instruction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPos, ok := s.Poscons[cheName]
	if !ok {
		byPos = make(map[byte]poscon.Instruction)
		s.Poscons[cheName] = byPos
	}
	for _, in := range instructions {
		byPos[in.Position] = in
	}
}

// LastDisplay returns the last display render for a device.
func (s *RecordingSink) LastDisplay(cheName string) [4]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Lines[cheName]
}

// LastPoscon returns the last instruction sent to one poscon.
func (s *RecordingSink) LastPoscon(cheName string, position byte) (poscon.Instruction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.Poscons[cheName][position]
	return in, ok
}

// Session is the mutable per-device state: who is logged in, which
// containers sit where, the active run and the cursor into it, plus the
// scratch values the confirmation dialogs need. One session per physical
// device; the owning Machine serializes access.
type Session struct {
	CheName  string
	WorkerID string
	State    State

	// Uses maps cart position index to the attached container.
	Uses map[int]*domain.ContainerUse

	run    []*domain.WorkInstruction
	cursor int

	pendingContainer  string
	pendingShortID    string
	pendingShortQty   int
	pendingSubstitute string
	pendingItem       string // inventory mode: scanned SKU awaiting a location

	lastLocation  string
	lastPathID    string
	pendingPathID string // path awaiting confirmation in LOCATION_SELECT_REVIEW
	reversed      bool

	resumeState State // where ABANDON_CHECK returns to on NO

	linkedCart string // mobile side of a remote link

	putWallID  string
	putOrderID string

	// posconLast caches the last instruction sent per poscon so identical
	// re-renders produce no wire traffic.
	posconLast map[byte]poscon.Instruction
}

func newSession(cheName string) *Session {
	return &Session{
		CheName:    cheName,
		State:      StateIdle,
		Uses:       make(map[int]*domain.ContainerUse),
		posconLast: make(map[byte]poscon.Instruction),
	}
}

// reset clears everything a logout should clear. The poscon cache is also
// dropped so the next login repaints from scratch.
func (s *Session) reset() {
	s.WorkerID = ""
	s.State = StateIdle
	s.Uses = make(map[int]*domain.ContainerUse)
	s.clearRun()
	s.pendingContainer = ""
	s.pendingItem = ""
	s.lastLocation = ""
	s.lastPathID = ""
	s.pendingPathID = ""
	s.resumeState = StateIdle
	s.reversed = false
	s.linkedCart = ""
	s.putWallID = ""
	s.putOrderID = ""
	s.posconLast = make(map[byte]poscon.Instruction)
}

func (s *Session) clearRun() {
	s.run = nil
	s.cursor = 0
	s.pendingShortID = ""
	s.pendingShortQty = 0
	s.pendingSubstitute = ""
}

// current returns the instruction under the cursor, nil when the run is done.
func (s *Session) current() *domain.WorkInstruction {
	for s.cursor < len(s.run) {
		if !s.run[s.cursor].IsTerminal() {
			return s.run[s.cursor]
		}
		s.cursor++
	}
	return nil
}

// currentGroup returns the current instruction plus every later member of
// its simultaneous group, in run order. Housekeeping never groups.
func (s *Session) currentGroup() []*domain.WorkInstruction {
	wi := s.current()
	if wi == nil {
		return nil
	}
	if wi.IsHousekeeping() {
		return []*domain.WorkInstruction{wi}
	}
	group := []*domain.WorkInstruction{wi}
	for _, other := range s.run[s.cursor+1:] {
		if !other.IsTerminal() && other.GroupKey() == wi.GroupKey() {
			group = append(group, other)
		}
	}
	return group
}

// attach binds a container to a cart position. Occupied positions and
// already-attached containers are rejected with the domain error so the
// machine can park in the matching error state.
func (s *Session) attach(c domain.Container, pos int) error {
	if _, taken := s.Uses[pos]; taken {
		return fmt.Errorf("position %d: %w", pos, domain.ErrPositionOccupied)
	}
	if at, ok := s.usedContainer(c.ContainerID); ok {
		return fmt.Errorf("container %s at position %d: %w", c.ContainerID, at, domain.ErrContainerAttached)
	}
	s.Uses[pos] = domain.NewContainerUse(c, s.CheName, pos)
	return nil
}

// usedContainer finds the position a container is already attached to.
func (s *Session) usedContainer(containerID string) (int, bool) {
	for pos, use := range s.Uses {
		if use.ContainerID == containerID {
			return pos, true
		}
	}
	return 0, false
}

// usesSorted returns the container uses in position order.
func (s *Session) usesSorted() []*domain.ContainerUse {
	out := make([]*domain.ContainerUse, 0, len(s.Uses))
	for _, use := range s.Uses {
		out = append(out, use)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionIndex < out[j].PositionIndex })
	return out
}
