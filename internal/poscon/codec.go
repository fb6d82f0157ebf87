// Package poscon encodes the bit-level display protocol spoken by position
// controllers: a fixed instruction record of value byte, min/max overlay
// glyphs, refresh frequency and brightness duty cycle. Poscons show 0-99
// directly; values above 99 are reserved control codes.
package poscon

import "fmt"

// Position 0 addresses every poscon on a controller bus.
const PositionAll byte = 0

// Reserved value codes (the display cannot show numbers above 99).
const (
	ValueBayComplete     byte = 254
	ValueRepeatContainer byte = 252
	ValueBitEncoded      byte = 240
)

// Bit-encoded seven-segment glyphs, MSB->LSB: DP G F E D C B A.
const (
	GlyphBlank      byte = 0x00
	GlyphDash       byte = 0x40
	GlyphO          byte = 0x5C
	GlyphC          byte = 0x58
	GlyphE          byte = 0x79
	GlyphB          byte = 0x7C
	GlyphA          byte = 0x5E
	GlyphR          byte = 0x50
	GlyphTripleDash byte = 0x49
	GlyphTopBottom  byte = 0x09
)

// glyphDigits maps 0-9 to their seven-segment encodings.
var glyphDigits = [10]byte{0x3F, 0x06, 0x5B, 0x4F, 0x66, 0x6D, 0x7D, 0x07, 0x7F, 0x6F}

// Frequency selects the display refresh mode.
type Frequency byte

const (
	FreqSolid Frequency = 0x00
	FreqBlink Frequency = 0x15
)

// DutyCycle selects display brightness.
type DutyCycle byte

const (
	DutyDim    DutyCycle = 0xFD
	DutyMidDim DutyCycle = 0xF6
	DutyMed    DutyCycle = 0xF0
	DutyBright DutyCycle = 0x40
)

// Instruction is one poscon wire record.
type Instruction struct {
	Position  byte      `json:"position"`
	ReqQty    byte      `json:"reqQty"`
	MinQty    byte      `json:"minQty"`
	MaxQty    byte      `json:"maxQty"`
	Freq      Frequency `json:"freq"`
	DutyCycle DutyCycle `json:"dutyCycle"`
}

func (i Instruction) String() string {
	return fmt.Sprintf("poscon[%d] v=%d min=%#x max=%#x freq=%#x duty=%#x",
		i.Position, i.ReqQty, i.MinQty, i.MaxQty, byte(i.Freq), byte(i.DutyCycle))
}

// GlyphDigit returns the seven-segment encoding for a single digit 0-9,
// or the error glyph for anything else.
func GlyphDigit(d int) byte {
	if d < 0 || d > 9 {
		return GlyphE
	}
	return glyphDigits[d]
}

// Quantity renders a numeric count. With exactly one active job the display
// is solid and bright; when several simultaneous jobs share the poscon it
// blinks so the worker knows more button presses follow. Quantities above 99
// clamp to 99; negative quantities fall back to the error display.
func Quantity(position byte, qty int, activeJobs int) Instruction {
	if qty < 0 {
		return InputError(position)
	}
	if qty > 99 {
		qty = 99
	}
	freq := FreqSolid
	if activeJobs > 1 {
		freq = FreqBlink
	}
	return Instruction{
		Position:  position,
		ReqQty:    byte(qty),
		MinQty:    byte(qty),
		MaxQty:    byte(qty),
		Freq:      freq,
		DutyCycle: DutyBright,
	}
}

// glyphPair renders an arbitrary two-glyph overlay instead of a number.
func glyphPair(position, minGlyph, maxGlyph byte, freq Frequency, duty DutyCycle) Instruction {
	return Instruction{
		Position:  position,
		ReqQty:    ValueBitEncoded,
		MinQty:    minGlyph,
		MaxQty:    maxGlyph,
		Freq:      freq,
		DutyCycle: duty,
	}
}

// Complete renders "oc" (order complete), dim and solid.
func Complete(position byte) Instruction {
	return glyphPair(position, GlyphC, GlyphO, FreqSolid, DutyDim)
}

// Shorted renders "==", dim and solid.
func Shorted(position byte) Instruction {
	return glyphPair(position, GlyphTopBottom, GlyphTopBottom, FreqSolid, DutyDim)
}

// Unknown renders "--" for an order that cannot be counted yet (unresolved,
// blocked, or assigned to a slot that is not live), dim and solid.
func Unknown(position byte) Instruction {
	return glyphPair(position, GlyphDash, GlyphDash, FreqSolid, DutyDim)
}

// InputError renders "E " bright and blinking after an illegal scan.
func InputError(position byte) Instruction {
	return glyphPair(position, GlyphE, GlyphBlank, FreqBlink, DutyBright)
}

// TripleDash renders the three-bar hold pattern.
func TripleDash(position byte) Instruction {
	return glyphPair(position, GlyphTripleDash, GlyphTripleDash, FreqSolid, DutyDim)
}

// DigitPair renders two explicit digits as glyph overlays, e.g. a position
// assignment echo.
func DigitPair(position byte, tens, ones int) Instruction {
	return glyphPair(position, GlyphDigit(ones), GlyphDigit(tens), FreqSolid, DutyBright)
}

// BayComplete renders the bay-change housekeeping code.
func BayComplete(position byte) Instruction {
	return Instruction{
		Position:  position,
		ReqQty:    ValueBayComplete,
		MinQty:    ValueBayComplete,
		MaxQty:    ValueBayComplete,
		Freq:      FreqSolid,
		DutyCycle: DutyBright,
	}
}

// RepeatContainer renders the repeat-position housekeeping code.
func RepeatContainer(position byte) Instruction {
	return Instruction{
		Position:  position,
		ReqQty:    ValueRepeatContainer,
		MinQty:    ValueRepeatContainer,
		MaxQty:    ValueRepeatContainer,
		Freq:      FreqSolid,
		DutyCycle: DutyBright,
	}
}

// Clear blanks the poscon.
func Clear(position byte) Instruction {
	return glyphPair(position, GlyphBlank, GlyphBlank, FreqSolid, DutyDim)
}

// Kind classifies a decoded instruction for mirroring and tests.
type Kind string

const (
	KindQuantity        Kind = "quantity"
	KindComplete        Kind = "complete"
	KindShorted         Kind = "shorted"
	KindUnknown         Kind = "unknown"
	KindInputError      Kind = "input_error"
	KindTripleDash      Kind = "triple_dash"
	KindBayComplete     Kind = "bay_complete"
	KindRepeatContainer Kind = "repeat_container"
	KindBlank           Kind = "blank"
	KindGlyphs          Kind = "glyphs"
)

// Decode classifies an instruction record back into its display meaning.
// It never fails: unrecognized glyph pairs decode as KindGlyphs.
func Decode(in Instruction) (Kind, int) {
	switch in.ReqQty {
	case ValueBayComplete:
		return KindBayComplete, 0
	case ValueRepeatContainer:
		return KindRepeatContainer, 0
	case ValueBitEncoded:
		switch {
		case in.MinQty == GlyphC && in.MaxQty == GlyphO:
			return KindComplete, 0
		case in.MinQty == GlyphTopBottom && in.MaxQty == GlyphTopBottom:
			return KindShorted, 0
		case in.MinQty == GlyphDash && in.MaxQty == GlyphDash:
			return KindUnknown, 0
		case in.MinQty == GlyphE && in.MaxQty == GlyphBlank:
			return KindInputError, 0
		case in.MinQty == GlyphTripleDash && in.MaxQty == GlyphTripleDash:
			return KindTripleDash, 0
		case in.MinQty == GlyphBlank && in.MaxQty == GlyphBlank:
			return KindBlank, 0
		default:
			return KindGlyphs, 0
		}
	default:
		if in.ReqQty <= 99 {
			return KindQuantity, int(in.ReqQty)
		}
		return KindGlyphs, 0
	}
}
