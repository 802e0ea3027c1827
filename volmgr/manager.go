// Package volmgr owns the on-disk volume table (the MBR) and translates
// (volume, block) addresses into (cylinder, sector) addresses on a Drive. It
// is the only layer that ever issues raw sector I/O.
package volmgr

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/finode/voldisk"
	"github.com/finode/voldisk/drive"
	"github.com/finode/voldisk/errors"
)

// VolumeManager holds the in-memory MBR for one drive. It is constructed
// explicitly by the caller and passed down to whatever consumes it (the
// indexed file layer); there is no package-level singleton.
type VolumeManager struct {
	drv  drive.Drive
	info drive.Info
	mbr  MBR
}

// New creates a VolumeManager over drv. Call DriveStart before using it.
func New(drv drive.Drive) *VolumeManager {
	return &VolumeManager{drv: drv}
}

func absoluteSector(info drive.Info, cs CylSec) uint32 {
	return uint32(cs.Cylinder)*uint32(info.NbSector) + uint32(cs.Sector)
}

func cylSecFromAbsolute(info drive.Info, abs uint32) CylSec {
	return CylSec{
		Cylinder: uint16(abs / uint32(info.NbSector)),
		Sector:   uint16(abs % uint32(info.NbSector)),
	}
}

// DriveStart initializes the underlying drive, captures its geometry, and
// loads the MBR from sector 0. A sector 0 whose magic doesn't match
// MBRMagic is treated as unformatted and silently reinitialized to an empty
// volume table. Calling DriveStart again once the magic is correct is a
// no-op with respect to sector 0's contents.
func (vm *VolumeManager) DriveStart() error {
	if err := vm.drv.InitMaterial(); err != nil {
		return err
	}
	vm.info = vm.drv.Infos()

	buf := make([]byte, vm.info.SectorSize)
	if err := vm.drv.ReadSector(0, 0, buf); err != nil {
		return err
	}
	if err := vm.mbr.UnmarshalSector(buf); err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}

	if vm.mbr.Magic != voldisk.MBRMagic {
		vm.mbr = MBR{Count: 0, Magic: voldisk.MBRMagic}
		return vm.writeMBR()
	}
	return nil
}

func (vm *VolumeManager) writeMBR() error {
	return vm.drv.WriteSector(0, 0, vm.mbr.MarshalSector())
}

// Drive returns the underlying Drive this manager was started on, so a
// caller that built it (e.g. the CLI) can get back to the raw bytes without
// the volume manager needing to expose a read-back-the-whole-disk method of
// its own.
func (vm *VolumeManager) Drive() drive.Drive {
	return vm.drv
}

// NbVolumes returns the number of active volumes.
func (vm *VolumeManager) NbVolumes() uint8 {
	return vm.mbr.Count
}

// NbBlocks returns the number of blocks in volume v.
func (vm *VolumeManager) NbBlocks(v uint8) (uint32, error) {
	if v >= vm.mbr.Count {
		return 0, errors.ErrNotFound.WithMessage(fmt.Sprintf("no volume %d", v))
	}
	return vm.mbr.Volumes[v].NbBlocks, nil
}

// VolumeAtSector returns the index of the volume containing absolute sector
// abs, and false if no active volume contains it.
func (vm *VolumeManager) VolumeAtSector(abs uint32) (uint8, bool) {
	for i := uint8(0); i < vm.mbr.Count; i++ {
		first := absoluteSector(vm.info, vm.mbr.Volumes[i].First)
		last := first + vm.mbr.Volumes[i].NbBlocks - 1
		if abs >= first && abs <= last {
			return i, true
		}
	}
	return 0, false
}

// AddVolume validates and appends desc to the volume table, persisting the
// MBR on success. Validation precedes mutation; a rejected volume leaves the
// MBR untouched.
func (vm *VolumeManager) AddVolume(desc VolumeDescriptor) error {
	if vm.mbr.Count == voldisk.MaxVolumes {
		return errors.ErrCapacityExceeded.WithMessage("maximum number of volumes reached")
	}
	if desc.First.Cylinder >= vm.info.NbCylinder {
		return errors.ErrGeometryViolation.WithMessage("cylinder number too large")
	}
	if desc.First.Sector >= vm.info.NbSector {
		return errors.ErrGeometryViolation.WithMessage("sector number too large")
	}
	if desc.First.Cylinder == 0 && desc.First.Sector == 0 {
		return errors.ErrCollision.WithMessage("volume cannot overwrite the MBR")
	}

	firstAbs := absoluteSector(vm.info, desc.First)
	lastAbs := firstAbs + desc.NbBlocks - 1
	if lastAbs >= vm.info.TotalSectors() {
		return errors.ErrGeometryViolation.WithMessage("volume extends past the end of the drive")
	}

	for abs := firstAbs; abs <= lastAbs; abs++ {
		if _, occupied := vm.VolumeAtSector(abs); occupied {
			return errors.ErrCollision.WithMessage("volume overlaps an existing volume")
		}
	}

	vm.mbr.Volumes[vm.mbr.Count] = desc
	vm.mbr.Count++
	return vm.writeMBR()
}

// RemoveVolume deletes volume v, shifting every later volume's index down by
// one. It does not touch the removed volume's on-disk contents.
func (vm *VolumeManager) RemoveVolume(v uint8) error {
	if v >= vm.mbr.Count {
		return errors.ErrNotFound.WithMessage(fmt.Sprintf("no volume %d", v))
	}
	for i := v; i < vm.mbr.Count-1; i++ {
		vm.mbr.Volumes[i] = vm.mbr.Volumes[i+1]
	}
	vm.mbr.Count--
	return vm.writeMBR()
}

func (vm *VolumeManager) blockToCylSec(v uint8, n uint32) (CylSec, error) {
	if v >= vm.mbr.Count {
		return CylSec{}, errors.ErrNotFound.WithMessage(fmt.Sprintf("no volume %d", v))
	}
	if n >= vm.mbr.Volumes[v].NbBlocks {
		return CylSec{}, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("block %d not in [0, %d)", n, vm.mbr.Volumes[v].NbBlocks),
		)
	}
	firstAbs := absoluteSector(vm.info, vm.mbr.Volumes[v].First)
	return cylSecFromAbsolute(vm.info, firstAbs+n), nil
}

// ReadBlock reads volume-local block n of volume v into buf.
func (vm *VolumeManager) ReadBlock(v uint8, n uint32, buf []byte) error {
	cs, err := vm.blockToCylSec(v, n)
	if err != nil {
		return err
	}
	return vm.drv.ReadSector(cs.Cylinder, cs.Sector, buf)
}

// WriteBlock writes buf to volume-local block n of volume v.
func (vm *VolumeManager) WriteBlock(v uint8, n uint32, buf []byte) error {
	cs, err := vm.blockToCylSec(v, n)
	if err != nil {
		return err
	}
	return vm.drv.WriteSector(cs.Cylinder, cs.Sector, buf)
}

// FormatVolume zero-fills every block of volume v.
func (vm *VolumeManager) FormatVolume(v uint8) error {
	if v >= vm.mbr.Count {
		return errors.ErrNotFound.WithMessage(fmt.Sprintf("no volume %d", v))
	}
	for i := uint32(0); i < vm.mbr.Volumes[v].NbBlocks; i++ {
		cs, err := vm.blockToCylSec(v, i)
		if err != nil {
			return err
		}
		if err := vm.drv.FormatSector(cs.Cylinder, cs.Sector, 1, 0); err != nil {
			return err
		}
	}
	return nil
}

// FormatDrive formats every active volume, continuing past a failing volume
// so a single bad volume doesn't stop the rest from being wiped, and
// reporting every failure it hit.
func (vm *VolumeManager) FormatDrive() error {
	var result *multierror.Error
	for v := uint8(0); v < vm.mbr.Count; v++ {
		if err := vm.FormatVolume(v); err != nil {
			result = multierror.Append(result, fmt.Errorf("volume %d: %w", v, err))
		}
	}
	return result.ErrorOrNil()
}

// OccupancyMap reports, for every absolute sector on the drive, the index of
// the volume that owns it, or -1 if the sector is unassigned. It supplements
// the original implementation's dump/print routine without the core package
// doing any printing itself; sector 0 is always -1 here since it belongs to
// the MBR, not a volume.
func (vm *VolumeManager) OccupancyMap() []int {
	total := vm.info.TotalSectors()
	occ := make([]int, total)
	occ[0] = -1
	for abs := uint32(1); abs < total; abs++ {
		if v, ok := vm.VolumeAtSector(abs); ok {
			occ[abs] = int(v)
		} else {
			occ[abs] = -1
		}
	}
	return occ
}
