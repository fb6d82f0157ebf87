package engine

import (
	"fmt"
	"sort"

	"github.com/wms-platform/che-controller/internal/domain"
	"github.com/wms-platform/che-controller/internal/facility"
)

// SequencePolicy selects how computed instructions are ordered along the
// run. Policies are mutually exclusive and configuration-selected via the
// WORKSEQR property.
type SequencePolicy string

const (
	PolicyPathDistance SequencePolicy = "BayDistance"
	PolicyWorkSequence SequencePolicy = "WorkSequence"
	PolicyReverse      SequencePolicy = "ReverseDistance"
)

// ParsePolicy maps a WORKSEQR property value to a policy, defaulting to
// path distance for anything unrecognized.
func ParsePolicy(name string) SequencePolicy {
	switch SequencePolicy(name) {
	case PolicyWorkSequence, PolicyReverse, PolicyPathDistance:
		return SequencePolicy(name)
	default:
		return PolicyPathDistance
	}
}

// Sequence orders instructions under the given policy. All policies are
// stable: equal primary keys fall back to the declared work sequence and
// then to order of arrival, so resequencing unchanged data is a fixed point.
func Sequence(policy SequencePolicy, wis []*domain.WorkInstruction) []*domain.WorkInstruction {
	out := make([]*domain.WorkInstruction, len(wis))
	copy(out, wis)
	switch policy {
	case PolicyWorkSequence:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].WorkSequence < out[j].WorkSequence
		})
	case PolicyReverse:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].PathPosition != out[j].PathPosition {
				return out[i].PathPosition > out[j].PathPosition
			}
			return out[i].WorkSequence < out[j].WorkSequence
		})
	default: // PolicyPathDistance
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].PathPosition != out[j].PathPosition {
				return out[i].PathPosition < out[j].PathPosition
			}
			return out[i].WorkSequence < out[j].WorkSequence
		})
	}
	return out
}

// WrapAtPosition rotates a fully ordered list so it starts at the first
// instruction at or past startPos and continues around to the path start.
// It is a rotation, never a re-sort: intra-partition order is preserved.
func WrapAtPosition(wis []*domain.WorkInstruction, startPos float64) []*domain.WorkInstruction {
	cut := len(wis)
	for i, wi := range wis {
		if wi.PathPosition >= startPos {
			cut = i
			break
		}
	}
	if cut == 0 || cut == len(wis) {
		return wis
	}
	out := make([]*domain.WorkInstruction, 0, len(wis))
	out = append(out, wis[cut:]...)
	out = append(out, wis[:cut]...)
	return out
}

// InjectHousekeeping walks a sequenced list and inserts filler instructions
// between neighbors that need them: a bay-change when consecutive picks move
// to a different bay, and a repeat-position when consecutive picks land on
// the same cart position (the worker would otherwise see one poscon count
// change twice with no boundary). Only the path-distance policy injects
// housekeeping; WorkSequence and Reverse runs are externally ordered.
func InjectHousekeeping(fac *facility.Facility, wis []*domain.WorkInstruction) []*domain.WorkInstruction {
	if len(wis) == 0 {
		return wis
	}
	out := make([]*domain.WorkInstruction, 0, len(wis))
	var prev *domain.WorkInstruction
	for _, wi := range wis {
		if prev != nil {
			if prev.PositionIndex == wi.PositionIndex && prev.ContainerID == wi.ContainerID {
				out = append(out, domain.NewHousekeepingInstruction(domain.TypeRepeatPosition, wi))
			}
			if bayChanged(fac, prev, wi) {
				out = append(out, domain.NewHousekeepingInstruction(domain.TypeBayComplete, wi))
			}
		}
		out = append(out, wi)
		prev = wi
	}
	return out
}

func bayChanged(fac *facility.Facility, prev, next *domain.WorkInstruction) bool {
	prevLoc, err1 := fac.ResolveName(prev.LocationName)
	nextLoc, err2 := fac.ResolveName(next.LocationName)
	if err1 != nil || err2 != nil {
		return false
	}
	prevBay, nextBay := prevLoc.Bay(), nextLoc.Bay()
	if prevBay == nil || nextBay == nil {
		return false
	}
	return prevBay != nextBay
}

// AssignSortCodes stamps the final 4-digit sequence code onto each
// instruction. The code doubles as the export record's sequenceId.
func AssignSortCodes(wis []*domain.WorkInstruction) {
	for i, wi := range wis {
		wi.SortCode = fmt.Sprintf("%04d", i+1)
	}
}
