package coordinator

import (
	"github.com/wms-platform/che-controller/internal/device"
	"github.com/wms-platform/che-controller/internal/poscon"
)

// mirrorSink forwards device output to the transport and duplicates a cart's
// output to its linked mobile, which is how the mobile sees what it is
// controlling.
type mirrorSink struct {
	transport device.DisplaySink
	coord     *Coordinator
}

func (s *mirrorSink) SendDisplay(cheName string, lines [4]string) {
	s.transport.SendDisplay(cheName, lines)
	if mobile, ok := s.coord.mirrorFor(cheName); ok {
		s.transport.SendDisplay(mobile, lines)
	}
}

func (s *mirrorSink) SendPoscons(cheName string, instructions []poscon.Instruction) {
	s.transport.SendPoscons(cheName, instructions)
	if mobile, ok := s.coord.mirrorFor(cheName); ok {
		s.transport.SendPoscons(mobile, instructions)
	}
}
