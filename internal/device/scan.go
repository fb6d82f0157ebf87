package device

import (
	"strconv"
	"strings"

	"github.com/wms-platform/che-controller/internal/facility"
)

// ScanKind classifies a barcode by its prefix.
type ScanKind string

const (
	ScanCommand   ScanKind = "COMMAND"
	ScanUser      ScanKind = "USER"
	ScanContainer ScanKind = "CONTAINER"
	ScanLocation  ScanKind = "LOCATION"
	ScanItem      ScanKind = "ITEM"
	ScanPosition  ScanKind = "POSITION"
	ScanCheName   ScanKind = "CHE_NAME"
	ScanTape      ScanKind = "TAPE"
	// ScanRaw is a bare alphanumeric scan: an item, SKU, GTIN, or order id
	// depending on the state that receives it.
	ScanRaw ScanKind = "RAW"
)

// Control commands carried behind the X% prefix.
const (
	CmdStart     = "START"
	CmdSetup     = "SETUP"
	CmdShort     = "SHORT"
	CmdYes       = "YES"
	CmdNo        = "NO"
	CmdClear     = "CLEAR"
	CmdCancel    = "CANCEL"
	CmdLogout    = "LOGOUT"
	CmdRemote    = "REMOTE"
	CmdInventory = "INVENTORY"
	CmdPutWall   = "PUT_WALL"
	CmdOrderWall = "ORDER_WALL"
	CmdReverse   = "REVERSE"
)

const (
	commandPrefix   = "X%"
	userPrefix      = "U%"
	containerPrefix = "C%"
	locationPrefix  = "L%"
	itemPrefix      = "I%"
	positionPrefix  = "P%"
	cheNamePrefix   = "H%"
)

// Scan is one parsed barcode event.
type Scan struct {
	Kind  ScanKind
	Value string
	Raw   string
}

// IsCommand reports whether the scan is the given control command.
func (s Scan) IsCommand(cmd string) bool {
	return s.Kind == ScanCommand && s.Value == cmd
}

// ParseScan classifies a raw barcode by prefix. A bare "%" scan is only a
// tape code when the payload is all digits of tape length; anything else
// falls through as a raw scan so mis-struck labels do not vanish silently.
func ParseScan(raw string) Scan {
	trimmed := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(trimmed, commandPrefix):
		return Scan{Kind: ScanCommand, Value: strings.ToUpper(trimmed[len(commandPrefix):]), Raw: raw}
	case strings.HasPrefix(trimmed, userPrefix):
		return Scan{Kind: ScanUser, Value: trimmed[len(userPrefix):], Raw: raw}
	case strings.HasPrefix(trimmed, containerPrefix):
		return Scan{Kind: ScanContainer, Value: trimmed[len(containerPrefix):], Raw: raw}
	case strings.HasPrefix(trimmed, locationPrefix):
		return Scan{Kind: ScanLocation, Value: trimmed[len(locationPrefix):], Raw: raw}
	case strings.HasPrefix(trimmed, itemPrefix):
		return Scan{Kind: ScanItem, Value: trimmed[len(itemPrefix):], Raw: raw}
	case strings.HasPrefix(trimmed, positionPrefix):
		return Scan{Kind: ScanPosition, Value: trimmed[len(positionPrefix):], Raw: raw}
	case strings.HasPrefix(trimmed, cheNamePrefix):
		return Scan{Kind: ScanCheName, Value: trimmed[len(cheNamePrefix):], Raw: raw}
	case strings.HasPrefix(trimmed, facility.TapePrefix):
		payload := trimmed[len(facility.TapePrefix):]
		if isTapePayload(payload) {
			return Scan{Kind: ScanTape, Value: payload, Raw: raw}
		}
		return Scan{Kind: ScanRaw, Value: trimmed, Raw: raw}
	default:
		return Scan{Kind: ScanRaw, Value: trimmed, Raw: raw}
	}
}

func isTapePayload(s string) bool {
	if len(s) != facility.TapeDigits {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// PositionIndex parses a P% scan's value. Poscon indices are 1-based.
func (s Scan) PositionIndex() (int, bool) {
	if s.Kind != ScanPosition {
		return 0, false
	}
	n, err := strconv.Atoi(s.Value)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}
