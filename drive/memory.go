package drive

import (
	"fmt"
	"io"

	"github.com/xaionaro-go/bytesextra"

	"github.com/finode/voldisk"
	"github.com/finode/voldisk/errors"
)

// MemoryDrive is a Drive backed by a fixed-size in-memory buffer, addressed
// the same way a real sector device would be: by seeking to
// cyl*NbSector+sec sectors of SectorSize bytes each. It is the reference
// implementation used both by the CLI (as the whole "disk") and by tests.
type MemoryDrive struct {
	info   Info
	stream io.ReadWriteSeeker
}

// NewMemoryDrive allocates a blank drive with the given geometry. Every byte
// starts zeroed, which is what makes a never-formatted drive's sector 0 come
// back with a zero magic.
func NewMemoryDrive(nbCylinder, nbSector uint16) *MemoryDrive {
	info := Info{
		NbCylinder: nbCylinder,
		NbSector:   nbSector,
		SectorSize: voldisk.BlockSize,
	}
	backing := make([]byte, int(info.TotalSectors())*voldisk.BlockSize)
	return &MemoryDrive{
		info:   info,
		stream: bytesextra.NewReadWriteSeeker(backing),
	}
}

// NewMemoryDriveFromImage wraps an existing byte slice (e.g. one loaded from
// a file) as a drive with the given geometry. len(image) must equal
// nbCylinder*nbSector*BlockSize.
func NewMemoryDriveFromImage(nbCylinder, nbSector uint16, image []byte) (*MemoryDrive, error) {
	info := Info{
		NbCylinder: nbCylinder,
		NbSector:   nbSector,
		SectorSize: voldisk.BlockSize,
	}
	want := int(info.TotalSectors()) * voldisk.BlockSize
	if len(image) != want {
		return nil, errors.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("image is %d bytes, geometry requires %d", len(image), want),
		)
	}
	return &MemoryDrive{
		info:   info,
		stream: bytesextra.NewReadWriteSeeker(image),
	}, nil
}

func (d *MemoryDrive) InitMaterial() error {
	return nil
}

func (d *MemoryDrive) Infos() Info {
	return d.info
}

func (d *MemoryDrive) absoluteSector(cyl, sec uint16) (int64, error) {
	if cyl >= d.info.NbCylinder {
		return 0, errors.ErrGeometryViolation.WithMessage(
			fmt.Sprintf("cylinder %d not in [0, %d)", cyl, d.info.NbCylinder),
		)
	}
	if sec >= d.info.NbSector {
		return 0, errors.ErrGeometryViolation.WithMessage(
			fmt.Sprintf("sector %d not in [0, %d)", sec, d.info.NbSector),
		)
	}
	return int64(cyl)*int64(d.info.NbSector) + int64(sec), nil
}

func (d *MemoryDrive) ReadSector(cyl, sec uint16, buf []byte) error {
	if err := checkBufLen(buf, d.info.SectorSize); err != nil {
		return err
	}
	abs, err := d.absoluteSector(cyl, sec)
	if err != nil {
		return err
	}
	if _, err := d.stream.Seek(abs*int64(d.info.SectorSize), io.SeekStart); err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

func (d *MemoryDrive) WriteSector(cyl, sec uint16, buf []byte) error {
	if err := checkBufLen(buf, d.info.SectorSize); err != nil {
		return err
	}
	abs, err := d.absoluteSector(cyl, sec)
	if err != nil {
		return err
	}
	if _, err := d.stream.Seek(abs*int64(d.info.SectorSize), io.SeekStart); err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	if _, err := d.stream.Write(buf); err != nil {
		return errors.ErrIOFailed.Wrap(err)
	}
	return nil
}

func (d *MemoryDrive) FormatSector(cyl, sec, n uint16, fill byte) error {
	filler := make([]byte, d.info.SectorSize)
	for i := range filler {
		filler[i] = fill
	}
	start, err := d.absoluteSector(cyl, sec)
	if err != nil {
		return err
	}
	for i := int64(0); i < int64(n); i++ {
		abs := start + i
		c := uint16(abs / int64(d.info.NbSector))
		s := uint16(abs % int64(d.info.NbSector))
		if err := d.WriteSector(c, s, filler); err != nil {
			return err
		}
	}
	return nil
}
