package astm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum_KnownValue(t *testing.T) {
	// '1' + "TEST" + ETX = 0x174
	cs := Checksum([]byte{'1', 'T', 'E', 'S', 'T', ETX})
	assert.Equal(t, byte(0x74), cs)
	assert.Equal(t, "74", FormatChecksum(cs))
}

func TestFormatChecksum_Uppercase(t *testing.T) {
	assert.Equal(t, "0A", FormatChecksum(0x0A))
	assert.Equal(t, "FF", FormatChecksum(0xFF))
	assert.Equal(t, "00", FormatChecksum(0x00))
}

func TestParseFrame_Valid(t *testing.T) {
	raw := []byte("\x021TEST\x0374\r\n")

	f, err := ParseFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), f.Number)
	assert.Equal(t, []byte("TEST"), f.Payload)
	assert.Equal(t, ETX, f.Terminator)
	assert.True(t, f.IsFinal())
	assert.Equal(t, "74", f.Checksum)
	require.NoError(t, f.Verify())
}

func TestParseFrame_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"too short", "\x021\r\n", ErrMalformedFrame},
		{"missing STX", "X1TEST\x0374\r\n", ErrMalformedFrame},
		{"missing CRLF", "\x021TEST\x0374\r", ErrMalformedFrame},
		{"frame number 8", "\x028TEST\x0374\r\n", ErrInvalidFrameNumber},
		{"frame number letter", "\x02ATEST\x0374\r\n", ErrInvalidFrameNumber},
		{"no terminator", "\x021TEST74\r\n", ErrTerminator},
		{"two terminators", "\x021TE\x17ST\x0374\r\n", ErrTerminator},
		{"short checksum", "\x021TEST\x037\r\n", ErrMalformedFrame},
		{"long checksum", "\x021TEST\x03744\r\n", ErrMalformedFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrame([]byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFrame_VerifyCaseInsensitive(t *testing.T) {
	f := &Frame{Number: 2, Payload: []byte("R|1|^^^GLU|5.4"), Terminator: ETX}
	f.Checksum = FormatChecksum(f.ComputeChecksum())
	require.NoError(t, f.Verify())

	lower := []byte(f.Checksum)
	for i, c := range lower {
		if c >= 'A' && c <= 'F' {
			lower[i] = c + ('a' - 'A')
		}
	}
	f.Checksum = string(lower)
	require.NoError(t, f.Verify())
}

func TestFrame_ChecksumSensitivity(t *testing.T) {
	raw := frame(3, "O|1|SAMPLE42||^^^HBA1C", true)

	f, err := ParseFrame(raw)
	require.NoError(t, err)
	require.NoError(t, f.Verify())

	// Alter one payload byte: the checksum must no longer match.
	for i := range f.Payload {
		orig := f.Payload[i]
		f.Payload[i] = orig + 1
		assert.ErrorIs(t, f.Verify(), ErrChecksumMismatch, "byte %d", i)
		f.Payload[i] = orig
	}

	f.Checksum = "ZZ"
	assert.ErrorIs(t, f.Verify(), ErrChecksumMismatch)
}

func TestFrame_PackRoundTrip(t *testing.T) {
	for n := uint8(0); n < 8; n++ {
		raw := frame(n, "P|1||PID123", n%2 == 0)

		f, err := ParseFrame(raw)
		require.NoError(t, err)
		assert.Equal(t, n, f.Number)
		require.NoError(t, f.Verify())
		assert.Equal(t, raw, f.Pack())
	}
}

func TestBuildFrames(t *testing.T) {
	text := make([]byte, MaxFramePayload*2+10)
	for i := range text {
		text[i] = 'A' + byte(i%26)
	}

	frames := BuildFrames(7, text)
	require.Len(t, frames, 3)

	var joined []byte
	for i, raw := range frames {
		f, err := ParseFrame(raw)
		require.NoError(t, err)
		require.NoError(t, f.Verify())
		assert.Equal(t, uint8((7+i)%8), f.Number)
		assert.Equal(t, i == len(frames)-1, f.IsFinal())
		joined = append(joined, f.Payload...)
	}
	assert.Equal(t, text, joined)

	single := BuildFrames(1, []byte("L|1|N\r"))
	require.Len(t, single, 1)
	f, err := ParseFrame(single[0])
	require.NoError(t, err)
	assert.True(t, f.IsFinal())
}

func TestSplitRecords(t *testing.T) {
	text := "H|\\^&|||Analyzer\rP|1\r\nO|1|S1\rR|1|^^^GLU|5.4|mmol/L\r\rL|1|N\r"

	recs := SplitRecords(text)
	require.Len(t, recs, 5)
	assert.Equal(t, byte('H'), RecordType(recs[0]))
	assert.Equal(t, byte('P'), RecordType(recs[1]))
	assert.Equal(t, byte('R'), RecordType(recs[3]))
	assert.Equal(t, byte('L'), RecordType(recs[4]))
	assert.Equal(t, byte(0), RecordType(""))

	assert.Equal(t, "5.4", Field(recs[3], 3))
	assert.Equal(t, "", Field(recs[3], 42))
}
