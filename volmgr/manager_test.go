package volmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finode/voldisk"
	"github.com/finode/voldisk/drive"
)

func newTestManager(t *testing.T, nbCylinder, nbSector uint16) *VolumeManager {
	t.Helper()
	vm := New(drive.NewMemoryDrive(nbCylinder, nbSector))
	require.NoError(t, vm.DriveStart())
	return vm
}

// S1 — format on a blank drive.
func TestDriveStart_FormatsBlankDrive(t *testing.T) {
	vm := newTestManager(t, 4, 16)
	assert.Equal(t, uint8(0), vm.NbVolumes())

	buf := make([]byte, voldisk.BlockSize)
	require.NoError(t, vm.drv.ReadSector(0, 0, buf))

	var mbr MBR
	require.NoError(t, mbr.UnmarshalSector(buf))
	assert.Equal(t, voldisk.MBRMagic, mbr.Magic)
	assert.Equal(t, uint8(0), mbr.Count)
}

func TestDriveStart_IdempotentOnAlreadyFormattedDrive(t *testing.T) {
	d := drive.NewMemoryDrive(4, 16)
	vm := New(d)
	require.NoError(t, vm.DriveStart())
	require.NoError(t, vm.AddVolume(VolumeDescriptor{First: CylSec{0, 1}, NbBlocks: 4, Type: VolumeBase}))

	vm2 := New(d)
	require.NoError(t, vm2.DriveStart())
	assert.Equal(t, uint8(1), vm2.NbVolumes(), "second DriveStart must not wipe the MBR")
}

// S2 — add / overlap / remove.
func TestAddVolume_OverlapAndRemove(t *testing.T) {
	vm := newTestManager(t, 4, 16)

	require.NoError(t, vm.AddVolume(VolumeDescriptor{First: CylSec{0, 1}, NbBlocks: 8, Type: VolumeBase}))

	err := vm.AddVolume(VolumeDescriptor{First: CylSec{0, 5}, NbBlocks: 8, Type: VolumeAnnx})
	assert.Error(t, err, "overlapping volume must be rejected")

	require.NoError(t, vm.AddVolume(VolumeDescriptor{First: CylSec{1, 0}, NbBlocks: 16, Type: VolumeAnnx}))
	assert.Equal(t, uint8(2), vm.NbVolumes())

	require.NoError(t, vm.RemoveVolume(0))
	assert.Equal(t, uint8(1), vm.NbVolumes())
	nbBlocks, err := vm.NbBlocks(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), nbBlocks, "volume 1 must have shifted into slot 0")
}

func TestAddVolume_RejectsMBROverwrite(t *testing.T) {
	vm := newTestManager(t, 4, 16)
	err := vm.AddVolume(VolumeDescriptor{First: CylSec{0, 0}, NbBlocks: 4, Type: VolumeBase})
	assert.Error(t, err)
}

func TestAddVolume_RejectsOutOfBoundsCylinderAndSector(t *testing.T) {
	vm := newTestManager(t, 4, 16)
	assert.Error(t, vm.AddVolume(VolumeDescriptor{First: CylSec{4, 0}, NbBlocks: 4, Type: VolumeBase}))
	assert.Error(t, vm.AddVolume(VolumeDescriptor{First: CylSec{0, 16}, NbBlocks: 4, Type: VolumeBase}))
}

func TestAddVolume_RejectsOffEndOfDrive(t *testing.T) {
	vm := newTestManager(t, 4, 16)
	err := vm.AddVolume(VolumeDescriptor{First: CylSec{3, 0}, NbBlocks: 17, Type: VolumeBase})
	assert.Error(t, err)
}

// S6 — max volumes.
func TestAddVolume_CapacityExceeded(t *testing.T) {
	vm := newTestManager(t, 1, 200)
	for i := 0; i < voldisk.MaxVolumes; i++ {
		desc := VolumeDescriptor{First: CylSec{0, uint16(1 + i*10)}, NbBlocks: 5, Type: VolumeBase}
		require.NoError(t, vm.AddVolume(desc))
	}
	err := vm.AddVolume(VolumeDescriptor{First: CylSec{0, 190}, NbBlocks: 5, Type: VolumeBase})
	assert.Error(t, err)
	assert.Equal(t, uint8(voldisk.MaxVolumes), vm.NbVolumes(), "MBR must be unchanged on rejection")
}

func TestRemoveVolume_InvalidIndex(t *testing.T) {
	vm := newTestManager(t, 4, 16)
	assert.Error(t, vm.RemoveVolume(0))
}

func TestReadWriteBlock_RoundTrip(t *testing.T) {
	vm := newTestManager(t, 4, 16)
	require.NoError(t, vm.AddVolume(VolumeDescriptor{First: CylSec{0, 1}, NbBlocks: 4, Type: VolumeBase}))

	in := make([]byte, voldisk.BlockSize)
	in[0] = 0x7F
	require.NoError(t, vm.WriteBlock(0, 2, in))

	out := make([]byte, voldisk.BlockSize)
	require.NoError(t, vm.ReadBlock(0, 2, out))
	assert.Equal(t, in, out)
}

func TestReadBlock_RejectsOutOfRangeBlock(t *testing.T) {
	vm := newTestManager(t, 4, 16)
	require.NoError(t, vm.AddVolume(VolumeDescriptor{First: CylSec{0, 1}, NbBlocks: 4, Type: VolumeBase}))

	buf := make([]byte, voldisk.BlockSize)
	assert.Error(t, vm.ReadBlock(0, 4, buf))
	assert.Error(t, vm.ReadBlock(1, 0, buf))
}

func TestFormatVolume_ZeroesEveryBlock(t *testing.T) {
	vm := newTestManager(t, 4, 16)
	require.NoError(t, vm.AddVolume(VolumeDescriptor{First: CylSec{0, 1}, NbBlocks: 4, Type: VolumeBase}))

	in := make([]byte, voldisk.BlockSize)
	in[0] = 0xFF
	require.NoError(t, vm.WriteBlock(0, 1, in))

	require.NoError(t, vm.FormatVolume(0))

	out := make([]byte, voldisk.BlockSize)
	require.NoError(t, vm.ReadBlock(0, 1, out))
	assert.Equal(t, make([]byte, voldisk.BlockSize), out)
}

func TestOccupancyMap_ReflectsVolumeOwnership(t *testing.T) {
	vm := newTestManager(t, 1, 16)
	require.NoError(t, vm.AddVolume(VolumeDescriptor{First: CylSec{0, 1}, NbBlocks: 4, Type: VolumeBase}))

	occ := vm.OccupancyMap()
	assert.Equal(t, -1, occ[0], "sector 0 always belongs to the MBR")
	for i := 1; i <= 4; i++ {
		assert.Equal(t, 0, occ[i])
	}
	assert.Equal(t, -1, occ[5])
}
