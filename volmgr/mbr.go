package volmgr

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"

	"github.com/finode/voldisk"
)

// rawVolumeEntry and rawMBR mirror the on-disk layout bit-for-bit: a packed
// struct with no padding, exactly as vol.h's vol_s/mbr_s lay it out in C.
// Go's encoding/binary encodes struct fields in declaration order with no
// alignment padding, so this gives the same byte stream as the C compiler's
// __attribute__((packed)).
type rawVolumeEntry struct {
	Cylinder uint16
	Sector   uint16
	NbBlocks uint32
	Type     uint8
}

type rawMBR struct {
	Count   uint8
	Volumes [voldisk.MaxVolumes]rawVolumeEntry
	Magic   uint16
}

// MBR is the in-memory volume table: the number of active volumes and their
// descriptors. Only Volumes[:Count] is meaningful.
type MBR struct {
	Count   uint8
	Volumes [voldisk.MaxVolumes]VolumeDescriptor
	Magic   uint16
}

// MarshalSector encodes the MBR into a BlockSize-sized buffer suitable for
// writing to sector 0. Bytes beyond the packed struct are zeroed.
func (m *MBR) MarshalSector() []byte {
	raw := rawMBR{Count: m.Count, Magic: m.Magic}
	for i := 0; i < int(voldisk.MaxVolumes); i++ {
		v := m.Volumes[i]
		raw.Volumes[i] = rawVolumeEntry{
			Cylinder: v.First.Cylinder,
			Sector:   v.First.Sector,
			NbBlocks: v.NbBlocks,
			Type:     uint8(v.Type),
		}
	}

	buf := make([]byte, voldisk.BlockSize)
	writer := bytewriter.New(buf)
	// A fixed-size struct of fixed-size fields never fails to encode.
	_ = binary.Write(writer, binary.LittleEndian, &raw)
	return buf
}

// UnmarshalSector decodes an MBR from a sector 0 buffer previously produced
// by MarshalSector (or an equivalent packed encoder).
func (m *MBR) UnmarshalSector(buf []byte) error {
	var raw rawMBR
	reader := bytes.NewReader(buf)
	if err := binary.Read(reader, binary.LittleEndian, &raw); err != nil {
		return err
	}

	m.Count = raw.Count
	m.Magic = raw.Magic
	for i := 0; i < int(voldisk.MaxVolumes); i++ {
		r := raw.Volumes[i]
		m.Volumes[i] = VolumeDescriptor{
			First:    CylSec{Cylinder: r.Cylinder, Sector: r.Sector},
			NbBlocks: r.NbBlocks,
			Type:     VolumeType(r.Type),
		}
	}
	return nil
}
