package fat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helenos-go/vfsglue"
)

func utf16le(s string) []byte {
	out := make([]byte, 0, len(s)*2)
	for _, r := range s {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

func TestLFNStrNlength(t *testing.T) {
	// "ab" followed by a 0x0000 terminator code unit and padding.
	buf := append(utf16le("ab"), 0x00, 0x00, 0xff, 0xff)
	assert.Equal(t, 4, lfnStrNlength(buf, len(buf)))
}

func TestLFNStrNlengthNoTerminator(t *testing.T) {
	buf := utf16le("abcde")
	assert.Equal(t, len(buf), lfnStrNlength(buf, len(buf)))
}

func TestLFNSizeAndCopyEntryRoundTrip(t *testing.T) {
	// A name short enough to fit in a single LFN entry (<=13 chars).
	name := "README.TXT"
	chksum := Chksum([]byte("README TXT "))

	entries, rc := EncodeLongName(name, chksum)
	require.Equal(t, vfsglue.EOK, rc)
	require.Len(t, entries, 1)

	d := entries[0]
	assert.Equal(t, uint8(1)|LastLFN, d.Ord())
	assert.Equal(t, chksum, d.LFNChksum())

	size := LFNSize(d)
	dst := make([]byte, size)
	offset := size
	LFNCopyEntry(d, dst, &offset)
	assert.Equal(t, 0, offset)

	got, rc := LFNConvertName(dst, len(dst)+1)
	require.Equal(t, vfsglue.EOK, rc)
	assert.Equal(t, name, string(got))
}

func TestLFNConvertNameASCII(t *testing.T) {
	src := utf16le("abc")
	got, rc := LFNConvertName(src, 16)
	require.Equal(t, vfsglue.EOK, rc)
	assert.Equal(t, "abc", string(got))
}

func TestLFNConvertNameOverflow(t *testing.T) {
	src := utf16le("abcdef")
	_, rc := LFNConvertName(src, 3)
	assert.Equal(t, vfsglue.EOverflow, rc)
}

func TestEncodeLongNameMultiEntry(t *testing.T) {
	// 14 characters spill one past a single 13-character LFN entry,
	// forcing a second entry that holds just the last character plus
	// the terminator.
	name := "abcdefghijklmn"
	entries, rc := EncodeLongName(name, 0x42)
	require.Equal(t, vfsglue.EOK, rc)
	require.Len(t, entries, 2)

	// entries[0] is on-disk first: the LastLFN entry carrying the tail
	// of the name. entries[1] sits closest to the short entry (ord 1).
	assert.Equal(t, uint8(2)|LastLFN, entries[0].Ord())
	assert.Equal(t, uint8(1), entries[1].Ord())

	size := LFNSize(entries[0]) + LFNSize(entries[1])
	dst := make([]byte, size)
	offset := size
	LFNCopyEntry(entries[0], dst, &offset)
	LFNCopyEntry(entries[1], dst, &offset)
	assert.Equal(t, 0, offset)

	got, rc := LFNConvertName(dst, len(dst)+1)
	require.Equal(t, vfsglue.EOK, rc)
	assert.Equal(t, name, string(got))
}
