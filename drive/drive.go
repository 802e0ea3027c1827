// Package drive is the low-level sector device consumed by the volume
// manager. It knows nothing about volumes, the MBR, or files; it only reads,
// writes, and formats fixed-size sectors addressed by (cylinder, sector).
package drive

import (
	"fmt"

	"github.com/finode/voldisk/errors"
)

// Info describes the fixed geometry of a drive, captured once at start and
// immutable afterward.
type Info struct {
	NbCylinder uint16
	NbSector   uint16
	SectorSize uint16
}

// TotalSectors returns the number of addressable sectors on the drive.
func (i Info) TotalSectors() uint32 {
	return uint32(i.NbCylinder) * uint32(i.NbSector)
}

// Drive is the hardware abstraction the volume manager builds on: init,
// geometry query, and raw sector I/O. Implementations never know about
// volumes or the MBR.
type Drive interface {
	// InitMaterial performs idempotent hardware initialization.
	InitMaterial() error

	// Infos reports the drive's fixed geometry.
	Infos() Info

	// ReadSector fills buf (exactly SectorSize bytes) with the contents of
	// sector (cyl, sec).
	ReadSector(cyl, sec uint16, buf []byte) error

	// WriteSector persists buf (exactly SectorSize bytes) to sector (cyl, sec).
	WriteSector(cyl, sec uint16, buf []byte) error

	// FormatSector fills n consecutive sectors starting at (cyl, sec) with
	// fill.
	FormatSector(cyl, sec, n uint16, fill byte) error
}

func checkBufLen(buf []byte, want uint16) error {
	if len(buf) != int(want) {
		return errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("buffer must be exactly %d bytes, got %d", want, len(buf)),
		)
	}
	return nil
}
