// Package testutil builds ready-to-use fixtures for tests across the
// module: a started drive, a volume manager with one volume already added,
// or a fully wired indexed file system — so individual package tests don't
// each reimplement the same setup boilerplate.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finode/voldisk/drive"
	"github.com/finode/voldisk/ifl"
	"github.com/finode/voldisk/inode"
	"github.com/finode/voldisk/volmgr"
)

// NewStartedDrive creates a blank MemoryDrive with the given geometry and
// starts it, formatting sector 0 in the process.
func NewStartedDrive(t *testing.T, nbCylinder, nbSector uint16) *drive.MemoryDrive {
	t.Helper()
	d := drive.NewMemoryDrive(nbCylinder, nbSector)
	require.NoError(t, volmgr.New(d).DriveStart(), "drive start failed")
	return d
}

// LoadDriveImage wraps a pre-built byte slice (e.g. captured from an earlier
// test run) as a MemoryDrive of the given geometry, wrapping the fixed byte
// slice as a seekable in-memory drive.
func LoadDriveImage(t *testing.T, image []byte, nbCylinder, nbSector uint16) *drive.MemoryDrive {
	t.Helper()
	d, err := drive.NewMemoryDriveFromImage(nbCylinder, nbSector, image)
	require.NoError(t, err, "failed to wrap image as a drive")
	return d
}

// NewVolumeManager starts a VolumeManager over a freshly created drive of
// the given geometry.
func NewVolumeManager(t *testing.T, nbCylinder, nbSector uint16) *volmgr.VolumeManager {
	t.Helper()
	vm := volmgr.New(NewStartedDrive(t, nbCylinder, nbSector))
	require.NoError(t, vm.DriveStart(), "drive start failed")
	return vm
}

// NewSingleVolumeIFL builds a drive, starts a volume manager over it, adds
// one BASE volume of volBlocks blocks starting right after the MBR, and
// wires up an IndexedFileSystem over a BitmapMapper on that volume.
func NewSingleVolumeIFL(t *testing.T, nbCylinder, nbSector uint16, volBlocks uint32) (*volmgr.VolumeManager, *ifl.IndexedFileSystem) {
	t.Helper()

	vm := NewVolumeManager(t, nbCylinder, nbSector)
	require.NoError(t, vm.AddVolume(volmgr.VolumeDescriptor{
		First:    volmgr.CylSec{Cylinder: 0, Sector: 1},
		NbBlocks: volBlocks,
		Type:     volmgr.VolumeBase,
	}), "failed to add test volume")

	mapper := inode.NewBitmapMapper(vm, 0)
	fs := ifl.New(vm, mapper)
	require.NoError(t, fs.Init(), "ifl init failed")
	return vm, fs
}
