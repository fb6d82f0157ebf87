package facility

import (
	"fmt"
	"strconv"
	"strings"
)

// Tape codes are printed as "%GGGGGGGGOOOO": a fixed 12 digit payload where
// the first 8 digits are the decimal tape guid identifying one tier and the
// last 4 digits are the centimeter offset from the tier's left edge. The same
// guid is printed on the tape spool in a restricted base-32 form so humans
// can read it back without confusing 0/O or 1/I.

const (
	TapePrefix = "%"

	TapeDigits   = 12
	tapeGuidLen  = 8
	maxTapeGuid  = 99999999
	maxTapeCm    = 9999
	base32Digits = "0123456789ABCDEFGHJKLMNPQRTUVWXY"
)

// EncodeTape renders a tape guid and cm offset as the scannable barcode body
// (including the leading "%").
func EncodeTape(guid, offsetCm int) (string, error) {
	if guid <= 0 || guid > maxTapeGuid {
		return "", fmt.Errorf("tape guid %d out of range: %w", guid, ErrLocationResolution)
	}
	if offsetCm < 0 || offsetCm > maxTapeCm {
		return "", fmt.Errorf("tape offset %d out of range: %w", offsetCm, ErrLocationResolution)
	}
	return fmt.Sprintf("%s%08d%04d", TapePrefix, guid, offsetCm), nil
}

// DecodeTape splits a scanned tape code into guid and cm offset. The leading
// "%" is optional since some scanners strip the prefix before delivery.
func DecodeTape(scan string) (guid int, offsetCm int, err error) {
	body := strings.TrimPrefix(scan, TapePrefix)
	if len(body) != TapeDigits {
		return 0, 0, fmt.Errorf("tape scan %q: want %d digits: %w", scan, TapeDigits, ErrLocationResolution)
	}
	for _, r := range body {
		if r < '0' || r > '9' {
			return 0, 0, fmt.Errorf("tape scan %q: non-numeric: %w", scan, ErrLocationResolution)
		}
	}
	guid, err = strconv.Atoi(body[:tapeGuidLen])
	if err != nil || guid <= 0 {
		return 0, 0, fmt.Errorf("tape scan %q: bad guid: %w", scan, ErrLocationResolution)
	}
	offsetCm, err = strconv.Atoi(body[tapeGuidLen:])
	if err != nil {
		return 0, 0, fmt.Errorf("tape scan %q: bad offset: %w", scan, ErrLocationResolution)
	}
	return guid, offsetCm, nil
}

// TapeGuidToBase32 renders a tape guid in the human-readable spool form.
func TapeGuidToBase32(guid int) string {
	if guid <= 0 {
		return ""
	}
	var sb []byte
	for guid > 0 {
		sb = append([]byte{base32Digits[guid%32]}, sb...)
		guid /= 32
	}
	return string(sb)
}

// Base32ToTapeGuid parses the spool form back to the numeric guid.
func Base32ToTapeGuid(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty tape id: %w", ErrLocationResolution)
	}
	guid := 0
	for _, r := range strings.ToUpper(s) {
		idx := strings.IndexRune(base32Digits, r)
		if idx < 0 {
			return 0, fmt.Errorf("tape id %q: bad character %q: %w", s, r, ErrLocationResolution)
		}
		guid = guid*32 + idx
	}
	return guid, nil
}
