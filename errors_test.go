package vfsglue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombineRC(t *testing.T) {
	assert.Equal(t, ENoEntry, CombineRC(EOK, ENoEntry))
	assert.Equal(t, EBusy, CombineRC(EBusy, ENoEntry))
	assert.Equal(t, EOK, CombineRC(EOK, EOK))
}

func TestErrnoIsOK(t *testing.T) {
	assert.True(t, EOK.IsOK())
	assert.False(t, ENoEntry.IsOK())
}

func TestErrnoError(t *testing.T) {
	assert.Equal(t, "EOK", EOK.Error())
	assert.NotEmpty(t, ENoEntry.Error())
}
