package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finode/voldisk/drive"
	"github.com/finode/voldisk/volmgr"
)

func newTestMapper(t *testing.T, nbBlocks uint32) *BitmapMapper {
	t.Helper()
	vm := volmgr.New(drive.NewMemoryDrive(4, 64))
	require.NoError(t, vm.DriveStart())
	require.NoError(t, vm.AddVolume(volmgr.VolumeDescriptor{
		First:    volmgr.CylSec{Cylinder: 0, Sector: 1},
		NbBlocks: nbBlocks,
		Type:     volmgr.VolumeBase,
	}))
	m := NewBitmapMapper(vm, 0)
	require.NoError(t, m.Init())
	return m
}

func TestBitmapMapper_Init_ReservesBlockZero(t *testing.T) {
	m := newTestMapper(t, 16)
	assert.False(t, m.validInode(0), "block 0 must never be a valid inode")
}

func TestBitmapMapper_CreateReadWriteDeleteInode(t *testing.T) {
	m := newTestMapper(t, 16)

	inumber, err := m.CreateInode(Regular)
	require.NoError(t, err)
	assert.NotZero(t, inumber)

	data, err := m.ReadInode(inumber)
	require.NoError(t, err)
	assert.Equal(t, Regular, data.Type)
	assert.Equal(t, uint32(0), data.Size)

	data.Size = 42
	require.NoError(t, m.WriteInode(inumber, data))

	reread, err := m.ReadInode(inumber)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), reread.Size)

	require.NoError(t, m.DeleteInode(inumber))
	_, err = m.ReadInode(inumber)
	assert.NoError(t, err, "a deleted inode's block can still be read back until reallocated")
}

func TestBitmapMapper_FileBlockToVolBlock_AllocatesAndPersists(t *testing.T) {
	m := newTestMapper(t, 16)
	inumber, err := m.CreateInode(Regular)
	require.NoError(t, err)

	block, err := m.FileBlockToVolBlock(inumber, 0, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), block, "no allocation requested, no block yet")

	block, err = m.FileBlockToVolBlock(inumber, 0, true)
	require.NoError(t, err)
	assert.NotZero(t, block)

	again, err := m.FileBlockToVolBlock(inumber, 0, false)
	require.NoError(t, err)
	assert.Equal(t, block, again, "previously allocated block must be returned without allocating")
}

func TestBitmapMapper_FileBlockToVolBlock_PastDirectCapacity(t *testing.T) {
	m := newTestMapper(t, 64)
	inumber, err := m.CreateInode(Regular)
	require.NoError(t, err)

	block, err := m.FileBlockToVolBlock(inumber, directBlockCount, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), block, "past per-inode capacity is reported the same as no free space")
}

func TestBitmapMapper_AllocationFailsWhenVolumeFull(t *testing.T) {
	m := newTestMapper(t, 4)
	inumber, err := m.CreateInode(Regular)
	require.NoError(t, err)

	// Volume has 4 blocks: 0 is the bitmap, 1 is this inode's own record.
	// Only blocks 2 and 3 remain for data.
	b1, err := m.FileBlockToVolBlock(inumber, 0, true)
	require.NoError(t, err)
	assert.NotZero(t, b1)

	b2, err := m.FileBlockToVolBlock(inumber, 1, true)
	require.NoError(t, err)
	assert.NotZero(t, b2)

	b3, err := m.FileBlockToVolBlock(inumber, 2, true)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), b3, "volume is out of free blocks")
}

func TestBitmapMapper_TruncateInodeFreesDataBlocks(t *testing.T) {
	m := newTestMapper(t, 16)
	inumber, err := m.CreateInode(Regular)
	require.NoError(t, err)

	block, err := m.FileBlockToVolBlock(inumber, 0, true)
	require.NoError(t, err)
	require.NotZero(t, block)

	require.NoError(t, m.TruncateInode(inumber))

	again, err := m.FileBlockToVolBlock(inumber, 0, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), again, "truncate must release the data block")
}

func TestBitmapMapper_InvalidInodeOperations(t *testing.T) {
	m := newTestMapper(t, 16)

	_, err := m.ReadInode(0)
	assert.Error(t, err)

	_, err = m.ReadInode(999)
	assert.Error(t, err)

	assert.Error(t, m.DeleteInode(0))
	assert.Error(t, m.TruncateInode(0))
}
