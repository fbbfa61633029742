package fat

import (
	"golang.org/x/text/encoding/unicode"

	"github.com/helenos-go/vfsglue"
)

// EncodeLongName is the write-side counterpart the reference decoder
// never needed: given a long name and the short-entry checksum it backs,
// it builds the chain of LFN entries (highest Ord first, as they are
// laid out on disk) that a fresh directory write must emit ahead of the
// 8.3 entry. Unlike LFNConvertName, this is genuinely new code (the
// reference implementation only ever reads LFN chains), so it encodes
// UTF-16LE correctly via golang.org/x/text rather than reproducing the
// decoder's byte-order quirk.
func EncodeLongName(name string, chksum uint8) ([]*Dentry, vfsglue.Errno) {
	units, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, vfsglue.EInvalidArg
	}
	// Terminate, then pad to a multiple of 13 code units with 0xffff.
	units = append(units, 0x00, 0x00)
	for len(units)%(13*2) != 0 {
		units = append(units, 0xff, 0xff)
	}

	entryCount := len(units) / (13 * 2)
	entries := make([]*Dentry, entryCount)
	for i := 0; i < entryCount; i++ {
		d := &Dentry{}
		chunk := units[i*13*2 : (i+1)*13*2]
		copy(d.lfnPart1(), chunk[0:part1Size])
		copy(d.lfnPart2(), chunk[part1Size:part1Size+part2Size])
		copy(d.lfnPart3(), chunk[part1Size+part2Size:part1Size+part2Size+part3Size])

		// Chunk i covers the i-th 13-character fragment of name, in
		// reading order; ordinals count up from 1 at the fragment
		// nearest the short entry, and the highest ordinal (the
		// fragment farthest from the short entry, i.e. the tail of
		// the name) carries LastLFN.
		ord := uint8(i + 1)
		if i == entryCount-1 {
			ord |= LastLFN
		}
		d.SetOrd(ord)
		d.SetAttr(AttrLFN)
		d.SetLFNChksum(chksum)
		entries[entryCount-1-i] = d
	}
	return entries, vfsglue.EOK
}
