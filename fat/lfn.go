// Copyright (c) 2008 Jakub Jermar
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// - Redistributions of source code must retain the above copyright
//   notice, this list of conditions and the following disclaimer.
// - Redistributions in binary form must reproduce the above copyright
//   notice, this list of conditions and the following disclaimer in the
//   documentation and/or other materials provided with the distribution.
// - The name of the author may not be used to endorse or promote products
//   derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE AUTHOR ``AS IS'' AND ANY EXPRESS OR
// IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES
// OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED.
// IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY DIRECT, INDIRECT,
// INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT
// NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE,
// DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY
// THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT
// (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF
// THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package fat

import "github.com/helenos-go/vfsglue"

// LFN entries overlay the same 32-byte record as a short dentry, storing
// up to 13 UTF-16LE code units of one path-component fragment split
// across three byte ranges that straddle the shared attr/checksum
// fields (fat_dentry.h's FAT_LFN_PART{1,2,3} macros).
const (
	part1Off, part1Size = 1, 10
	part2Off, part2Size = 14, 12
	part3Off, part3Size = 28, 4

	offOrd     = 0
	offLFNType = 12
	offChksum  = 13

	// LastLFN marks the entry holding the last (highest-ordinal,
	// first-on-disk, rightmost-in-name) fragment of a long name.
	LastLFN = 0x40
)

func (d *Dentry) lfnPart1() []byte { return d.raw[part1Off : part1Off+part1Size] }
func (d *Dentry) lfnPart2() []byte { return d.raw[part2Off : part2Off+part2Size] }
func (d *Dentry) lfnPart3() []byte { return d.raw[part3Off : part3Off+part3Size] }

// Ord is the LFN entry's sequence number within its chain, with LastLFN
// set on the entry carrying the final (first-written) fragment.
func (d *Dentry) Ord() uint8     { return d.raw[offOrd] }
func (d *Dentry) SetOrd(v uint8) { d.raw[offOrd] = v }

// LFNChksum is the short-name checksum this LFN entry was tied to at
// creation time (compared against Chksum of the trailing 8.3 entry to
// detect a broken chain).
func (d *Dentry) LFNChksum() uint8     { return d.raw[offChksum] }
func (d *Dentry) SetLFNChksum(v uint8) { d.raw[offChksum] = v }

// lfnStrNlength returns the byte length of str up to the first
// terminator code unit (0x0000 or 0xffff), or size if none is found
// (fat_lfn_str_nlength).
func lfnStrNlength(str []byte, size int) int {
	offset := 0
	for offset < size {
		if (str[offset] == 0x00 && str[offset+1] == 0x00) ||
			(str[offset] == 0xff && str[offset+1] == 0xff) {
			break
		}
		offset += 2
	}
	return offset
}

// LFNSize returns the number of bytes of actual character data this LFN
// entry contributes (fat_lfn_size).
func LFNSize(d *Dentry) int {
	size := lfnStrNlength(d.lfnPart1(), part1Size)
	size += lfnStrNlength(d.lfnPart2(), part2Size)
	size += lfnStrNlength(d.lfnPart3(), part3Size)
	return size
}

// lfnCopyPart copies src's code units, from the last toward the first,
// into dst ending at *offset, skipping any 0x0000/0xffff terminator code
// units encountered along the way, and advancing *offset backward by the
// number of bytes actually copied (fat_lfn_copy_part).
func lfnCopyPart(src []byte, dst []byte, offset *int) {
	for i := len(src) - 1; i > 0 && *offset > 1; i -= 2 {
		if (src[i] == 0x00 && src[i-1] == 0x00) ||
			(src[i] == 0xff && src[i-1] == 0xff) {
			continue
		}
		dst[*offset-1] = src[i]
		dst[*offset-2] = src[i-1]
		*offset -= 2
	}
}

// LFNCopyEntry appends one LFN entry's three fragments, in part3/part2/
// part1 order, into dst ending at *offset (fat_lfn_copy_entry). Chained
// entries are copied in descending Ord order so the fragments land in
// the correct left-to-right order in dst.
func LFNCopyEntry(d *Dentry, dst []byte, offset *int) {
	lfnCopyPart(d.lfnPart3(), dst, offset)
	lfnCopyPart(d.lfnPart2(), dst, offset)
	lfnCopyPart(d.lfnPart1(), dst, offset)
}

// LFNConvertName decodes a UTF-16-ish byte buffer assembled by
// LFNCopyEntry into a NUL-terminated UTF-8 byte buffer, preserving the
// upstream source's byte-order quirk for non-ASCII code units exactly:
// the ASCII fast path reads src[i] as the low byte (true UTF-16LE), but
// the general path reconstructs the 16-bit code unit as
// (src[i]<<8)|src[i+1] -- the opposite order -- which is what
// fat_lfn_convert_name has always done. Any on-disk LFN fragment
// carrying a non-ASCII character is therefore decoded byte-swapped by
// this codec, matching the reference implementation rather than
// "fixing" it.
func LFNConvertName(src []byte, dstSize int) ([]byte, vfsglue.Errno) {
	dst := make([]byte, dstSize)
	offset := 0
	for i := 0; i+1 < len(src); i += 2 {
		if src[i+1] == 0x00 {
			if offset+1 < dstSize {
				dst[offset] = src[i]
				offset++
			} else {
				return nil, vfsglue.EOverflow
			}
			continue
		}
		c := rune(src[i])<<8 | rune(src[i+1])
		rc := encodeRune(dst, &offset, dstSize, c)
		if rc != vfsglue.EOK {
			return nil, rc
		}
	}
	dst[offset] = 0
	return dst[:offset], vfsglue.EOK
}

// encodeRune appends the UTF-8 encoding of c to dst at *offset, leaving
// room for the trailing NUL byte LFNConvertName writes afterward
// (chr_encode's contract).
func encodeRune(dst []byte, offset *int, dstSize int, c rune) vfsglue.Errno {
	buf := make([]byte, 4)
	n := encodeUTF8(buf, c)
	if *offset+n >= dstSize {
		return vfsglue.EOverflow
	}
	copy(dst[*offset:], buf[:n])
	*offset += n
	return vfsglue.EOK
}

// encodeUTF8 is a minimal UTF-8 encoder for a single code point,
// avoiding any assumption that c is a valid Unicode scalar value (the
// byte-swapped reconstruction above can produce surrogate halves, which
// unicode/utf8.EncodeRune would silently replace with U+FFFD).
func encodeUTF8(buf []byte, c rune) int {
	switch {
	case c < 0x80:
		buf[0] = byte(c)
		return 1
	case c < 0x800:
		buf[0] = 0xc0 | byte(c>>6)
		buf[1] = 0x80 | byte(c&0x3f)
		return 2
	default:
		buf[0] = 0xe0 | byte(c>>12)
		buf[1] = 0x80 | byte((c>>6)&0x3f)
		buf[2] = 0x80 | byte(c&0x3f)
		return 3
	}
}
