package fat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameVerify(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"README", true},
		{"readme.txt", true},
		{"a.b.c", false},          // two dots
		{"toolongname", false},    // > 8 before any dot
		{"x.toolong", false},      // > 3 after the dot
		{"my_file", true},         // '_' is a d-char
		{"has space", false},      // space is not a d-char
		{"", true},                // empty name has no illegal char and no dot
		{"name.", true},           // bare trailing dot, no extension
	}
	for _, c := range cases {
		assert.Equalf(t, c.ok, NameVerify(c.name), "NameVerify(%q)", c.name)
	}
}

func TestNameGetSetRoundTrip(t *testing.T) {
	d := &Dentry{}
	d.NameSet("HELLO.TXT")
	require.Equal(t, "HELLO.TXT", d.NameGet())

	d2 := &Dentry{}
	d2.NameSet("hello.txt")
	assert.Equal(t, "hello.txt", d2.NameGet())
	assert.NotEqual(t, uint8(0), d2.LCase()&LCaseLowerName)
	assert.NotEqual(t, uint8(0), d2.LCase()&LCaseLowerExt)
}

func TestNameSetNoExtension(t *testing.T) {
	d := &Dentry{}
	d.NameSet("NOEXT")
	assert.Equal(t, "NOEXT", d.NameGet())
	assert.Equal(t, []byte{Pad, Pad, Pad}, d.Ext())
}

func TestNameSetMixedCaseNotCollapsed(t *testing.T) {
	d := &Dentry{}
	d.NameSet("MiXeD.TxT")
	// Mixed case in either half means neither lowercase hint is set, so
	// NameGet must return the field verbatim (uppercased on disk).
	assert.Equal(t, "MIXED.TXT", d.NameGet())
}

func TestNamecmp(t *testing.T) {
	assert.True(t, Namecmp("README.TXT", "readme.txt"))
	assert.True(t, Namecmp("README", "README."))
	assert.False(t, Namecmp("README.TXT", "README"))
	assert.False(t, Namecmp("A.B", "A.C"))
}

func TestChksumDeterministic(t *testing.T) {
	raw := []byte("README     ")
	require.Len(t, raw, NameLen+ExtLen)
	sum1 := Chksum(raw)
	sum2 := Chksum(raw)
	assert.Equal(t, sum1, sum2)

	other := []byte("readme     ")
	assert.NotEqual(t, sum1, Chksum(other), "case must affect the checksum")
}

func TestChksumAllBytesDeterministic(t *testing.T) {
	for b := 0; b < 256; b++ {
		raw := make([]byte, NameLen+ExtLen)
		for i := range raw {
			raw[i] = byte(b)
		}
		assert.Equal(t, Chksum(raw), Chksum(raw))
	}
}

func TestClassify(t *testing.T) {
	free := &Dentry{}
	free.raw[offName] = Erased
	assert.Equal(t, Free, Classify(free))

	last := &Dentry{}
	last.raw[offName] = Unused
	assert.Equal(t, Last, Classify(last))

	dot := &Dentry{}
	dot.raw[offName] = DotPrefix
	assert.Equal(t, Skip, Classify(dot))

	vol := &Dentry{}
	vol.raw[offName] = 'X'
	vol.SetAttr(AttrVolLabel)
	assert.Equal(t, Skip, Classify(vol))

	valid := &Dentry{}
	valid.NameSet("FILE.TXT")
	assert.Equal(t, Valid, Classify(valid))

	lfn := &Dentry{}
	lfn.SetAttr(AttrLFN)
	lfn.raw[offName] = 'A'
	assert.Equal(t, LFN, Classify(lfn))

	lfnFree := &Dentry{}
	lfnFree.SetAttr(AttrLFN)
	lfnFree.raw[offName] = Erased
	assert.Equal(t, Free, Classify(lfnFree))
}

// TestClassifyIsTotal checks that every possible (attr, name[0]) combination
// is assigned exactly one of the five classifications, mirroring the
// source's comment that fat_classify_dentry is meant to be a total
// function over directory entry slots.
func TestClassifyIsTotal(t *testing.T) {
	for attrv := 0; attrv < 256; attrv++ {
		for namev := 0; namev < 256; namev++ {
			d := &Dentry{}
			d.SetAttr(uint8(attrv))
			d.raw[offName] = byte(namev)
			c := Classify(d)
			assert.GreaterOrEqual(t, int(c), int(Free))
			assert.LessOrEqual(t, int(c), int(Valid))
		}
	}
}
