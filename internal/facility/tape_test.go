package facility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTape(t *testing.T) {
	tests := []struct {
		name     string
		guid     int
		offsetCm int
		want     string
	}{
		{"small guid and offset", 42, 7, "%000000420007"},
		{"max guid", 99999999, 0, "%999999990000"},
		{"max offset", 1, 9999, "%000000019999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := EncodeTape(tt.guid, tt.offsetCm)
			require.NoError(t, err)
			assert.Equal(t, tt.want, encoded)

			guid, offset, err := DecodeTape(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.guid, guid)
			assert.Equal(t, tt.offsetCm, offset)
		})
	}
}

func TestEncodeTape_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		guid     int
		offsetCm int
	}{
		{"zero guid", 0, 0},
		{"negative guid", -1, 0},
		{"guid too large", 100000000, 0},
		{"negative offset", 1, -1},
		{"offset too large", 1, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeTape(tt.guid, tt.offsetCm)
			assert.ErrorIs(t, err, ErrLocationResolution)
		})
	}
}

func TestDecodeTape_Invalid(t *testing.T) {
	tests := []struct {
		name string
		scan string
	}{
		{"too short", "%00004200"},
		{"too long", "%0000004200071"},
		{"non numeric", "%00000042000A"},
		{"zero guid", "%000000000042"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeTape(tt.scan)
			assert.ErrorIs(t, err, ErrLocationResolution)
		})
	}
}

func TestDecodeTape_PrefixOptional(t *testing.T) {
	// Some scanners strip the leading % before delivery.
	guid, offset, err := DecodeTape("000000420007")
	require.NoError(t, err)
	assert.Equal(t, 42, guid)
	assert.Equal(t, 7, offset)
}

func TestTapeGuidBase32RoundTrip(t *testing.T) {
	for _, guid := range []int{1, 31, 32, 1000, 99999999} {
		s := TapeGuidToBase32(guid)
		require.NotEmpty(t, s)
		back, err := Base32ToTapeGuid(s)
		require.NoError(t, err)
		assert.Equal(t, guid, back, "base32 form %q", s)
	}
}

func TestBase32ToTapeGuid_Invalid(t *testing.T) {
	// The restricted alphabet omits the confusable letters.
	for _, s := range []string{"", "O1", "I9", "SZ"} {
		_, err := Base32ToTapeGuid(s)
		assert.ErrorIs(t, err, ErrLocationResolution, "input %q", s)
	}
}

func TestBase32_CaseInsensitive(t *testing.T) {
	upper, err := Base32ToTapeGuid("AB3")
	require.NoError(t, err)
	lower, err := Base32ToTapeGuid("ab3")
	require.NoError(t, err)
	assert.Equal(t, upper, lower)
}
