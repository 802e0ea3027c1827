package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithMessage_PreservesSentinelIdentity(t *testing.T) {
	err := ErrCapacityExceeded.WithMessage("no room for another volume")
	assert.Equal(t, "capacity exceeded: no room for another volume", err.Error())
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}

func TestWrap_PreservesWrappedErrorIdentity(t *testing.T) {
	original := stderrors.New("disk read failed")
	err := ErrIOFailed.Wrap(original)
	assert.Equal(t, "input/output error: disk read failed", err.Error())
	assert.ErrorIs(t, err, original)
}

func TestWithMessage_ChainsOffAnotherDriverError(t *testing.T) {
	inner := ErrNotFound.WithMessage("volume 3")
	outer := inner.WithMessage("while reading block 7")
	assert.Equal(t, "no such volume or inode: volume 3: while reading block 7", outer.Error())
	assert.ErrorIs(t, outer, ErrNotFound)
}
