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

// Package fat decodes and encodes the 32-byte FAT directory entry used by
// the VFAT 8.3/LFN on-disk format (component C).
package fat

import (
	"strings"
)

// Byte offsets and field widths within a 32-byte directory entry, shared
// by the short (8.3) and long-name (LFN) interpretations of the record.
const (
	NameLen = 8
	ExtLen  = 3

	offName    = 0
	offExt     = 8
	offAttr    = 11
	offLCase   = 12
	offClusHi  = 20
	offClusLo  = 26
	offSize    = 28
	EntrySize  = 32
)

// Name/ext padding and escape bytes.
const (
	Pad        = 0x20 // ' '
	E5Escape   = 0x05 // stand-in for a real leading 0xe5 byte
	Erased     = 0xe5
	Unused     = 0x00
	DotPrefix  = 0x2e // '.'
)

// Attribute bits (offset 11), standard across short and LFN entries.
const (
	AttrReadOnly = 0x01
	AttrHidden   = 0x02
	AttrSystem   = 0x04
	AttrVolLabel = 0x08
	AttrSubdir   = 0x10
	AttrArchive  = 0x20
	AttrLFN      = AttrReadOnly | AttrHidden | AttrSystem | AttrVolLabel
)

// Case-info bits (offset 12, the "NT reserved" byte): set when the
// corresponding field was written in lowercase and should be rendered
// that way, letting an 8.3 name round-trip without wasting an LFN entry
// on pure-case differences.
const (
	LCaseLowerName = 0x08
	LCaseLowerExt  = 0x10
)

// Classification is the result of classifying one directory entry slot
// (fat_classify_dentry).
type Classification int

const (
	Free Classification = iota
	LFN
	Skip
	Last
	Valid
)

// Dentry is one 32-byte FAT directory entry, addressed by field offset
// rather than a Go struct layout so that it matches the on-disk record
// exactly regardless of host alignment.
type Dentry struct {
	raw [EntrySize]byte
}

// NewDentry wraps buf, which must be exactly EntrySize bytes, as a Dentry.
// The returned Dentry holds its own copy of buf; later changes to either
// are not seen by the other.
func NewDentry(buf []byte) *Dentry {
	d := &Dentry{}
	copy(d.raw[:], buf)
	return d
}

// Bytes returns the entry's on-disk bytes.
func (d *Dentry) Bytes() []byte { return d.raw[:] }

func (d *Dentry) Name() []byte { return d.raw[offName : offName+NameLen] }
func (d *Dentry) Ext() []byte  { return d.raw[offExt : offExt+ExtLen] }

func (d *Dentry) Attr() uint8     { return d.raw[offAttr] }
func (d *Dentry) SetAttr(a uint8) { d.raw[offAttr] = a }

func (d *Dentry) LCase() uint8     { return d.raw[offLCase] }
func (d *Dentry) SetLCase(v uint8) { d.raw[offLCase] = v }

// Cluster is the entry's first data cluster, split across offsets 20-21
// (high word, FAT32 only) and 26-27 (low word).
func (d *Dentry) Cluster() uint32 {
	hi := uint32(d.raw[offClusHi]) | uint32(d.raw[offClusHi+1])<<8
	lo := uint32(d.raw[offClusLo]) | uint32(d.raw[offClusLo+1])<<8
	return hi<<16 | lo
}

func (d *Dentry) SetCluster(c uint32) {
	d.raw[offClusHi], d.raw[offClusHi+1] = byte(c>>16), byte(c>>24)
	d.raw[offClusLo], d.raw[offClusLo+1] = byte(c), byte(c>>8)
}

func (d *Dentry) Size() uint32 {
	return uint32(d.raw[offSize]) | uint32(d.raw[offSize+1])<<8 |
		uint32(d.raw[offSize+2])<<16 | uint32(d.raw[offSize+3])<<24
}

func (d *Dentry) SetSize(s uint32) {
	d.raw[offSize] = byte(s)
	d.raw[offSize+1] = byte(s >> 8)
	d.raw[offSize+2] = byte(s >> 16)
	d.raw[offSize+3] = byte(s >> 24)
}

func isDChar(ch byte) bool {
	return ch == '_' ||
		(ch >= '0' && ch <= '9') ||
		(ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z')
}

// NameVerify reports whether name is a legal 8.3 component: only
// "d-chars" outside a single optional dot, at most NameLen characters
// before the dot and ExtLen after it.
func NameVerify(name string) bool {
	dot := -1
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			if dot >= 0 {
				return false
			}
			dot = i
			continue
		}
		if !isDChar(name[i]) {
			return false
		}
	}
	if dot >= 0 {
		if dot > NameLen {
			return false
		}
		if len(name)-dot > ExtLen+1 {
			return false
		}
	} else if len(name) > NameLen {
		return false
	}
	return true
}

// NameGet decodes the entry's 8.3 name field into a "NAME.EXT"-style
// string, honoring the lowercase hint bits and the 0x05 escape for a
// literal leading 0xe5 byte.
func (d *Dentry) NameGet() string {
	var b strings.Builder

	name := d.Name()
	lcase := d.LCase()
	for i := 0; i < NameLen; i++ {
		if name[i] == Pad {
			break
		}
		if name[i] == E5Escape {
			b.WriteByte(0xe5)
			continue
		}
		if lcase&LCaseLowerName != 0 {
			b.WriteByte(toLower(name[i]))
		} else {
			b.WriteByte(name[i])
		}
	}

	ext := d.Ext()
	if ext[0] != Pad {
		b.WriteByte('.')
	}
	for i := 0; i < ExtLen; i++ {
		if ext[i] == Pad {
			break
		}
		if ext[i] == E5Escape {
			b.WriteByte(0xe5)
			continue
		}
		if lcase&LCaseLowerExt != 0 {
			b.WriteByte(toLower(ext[i]))
		} else {
			b.WriteByte(ext[i])
		}
	}
	return b.String()
}

// NameSet encodes name into the entry's 8.3 name and ext fields, padding
// with spaces and recording whether each half was entirely lowercase in
// the lcase byte, mirroring fat_dentry_name_set.
func (d *Dentry) NameSet(name string) {
	lowerName, lowerExt := true, true

	pos := 0
	nameField := d.Name()
	for i := 0; i < NameLen; i++ {
		c := byteAt(name, pos)
		switch c {
		case 0xe5:
			nameField[i] = E5Escape
			pos++
		case 0, '.':
			nameField[i] = Pad
		default:
			if isAlpha(c) && !isLower(c) {
				lowerName = false
			}
			nameField[i] = toUpper(c)
			pos++
		}
	}

	rest := name[min(pos, len(name)):]
	var extSrc string
	if len(rest) > 0 && rest[0] == '.' {
		extSrc = rest[1:]
	} else {
		extSrc = ""
	}

	extField := d.Ext()
	epos := 0
	for i := 0; i < ExtLen; i++ {
		c := byteAt(extSrc, epos)
		switch c {
		case 0xe5:
			extField[i] = E5Escape
			epos++
		case 0:
			extField[i] = Pad
		default:
			if isAlpha(c) && !isLower(c) {
				lowerExt = false
			}
			extField[i] = toUpper(c)
			epos++
		}
	}

	lcase := d.LCase()
	if lowerName {
		lcase |= LCaseLowerName
	} else {
		lcase &^= LCaseLowerName
	}
	if lowerExt {
		lcase |= LCaseLowerExt
	} else {
		lcase &^= LCaseLowerExt
	}
	d.SetLCase(lcase)
}

// Namecmp compares a decoded dentry name against a path component,
// case-insensitively, tolerating a bare trailing dot on component when
// name has no extension (fat_dentry_namecmp).
func Namecmp(name, component string) bool {
	if strings.EqualFold(name, component) {
		return true
	}
	if !strings.Contains(name, ".") {
		return strings.EqualFold(name+".", component)
	}
	return false
}

// Chksum computes the short-name checksum used to tie LFN entries to
// their trailing 8.3 entry. raw must be the 11-byte packed name+ext.
func Chksum(raw []byte) uint8 {
	var sum uint8
	for i := 0; i < NameLen+ExtLen; i++ {
		var carry uint8
		if sum&1 != 0 {
			carry = 0x80
		}
		sum = carry + (sum >> 1) + raw[i]
	}
	return sum
}

// Classify implements fat_classify_dentry. The LFN-erased case is
// decided from the entry's leading byte (the LFN ord field, aliased at
// the same offset as the short entry's name[0]): the upstream C
// source's literal `d->attr & FAT_LFN_ERASED` test is checked against a
// value already forced equal to FAT_ATTR_LFN and can never observe a
// bit outside it, so it is unreachable as written. The leading-byte
// check mirrors how every other "erased" test in this function (and in
// the on-disk VFAT convention generally) is performed.
func Classify(d *Dentry) Classification {
	attr := d.Attr()
	if attr == AttrLFN {
		if d.raw[offName] == Erased {
			return Free
		}
		return LFN
	}
	if attr&AttrVolLabel != 0 {
		return Skip
	}
	switch d.raw[offName] {
	case Erased:
		return Free
	case Unused:
		return Last
	case DotPrefix:
		return Skip
	}
	return Valid
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isLower(c byte) bool {
	return c >= 'a' && c <= 'z'
}

func byteAt(s string, i int) byte {
	if i >= len(s) {
		return 0
	}
	return s[i]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
