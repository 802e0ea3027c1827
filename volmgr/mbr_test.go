package volmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finode/voldisk"
)

func TestMBR_MarshalUnmarshalRoundTrip(t *testing.T) {
	mbr := MBR{
		Count: 2,
		Magic: voldisk.MBRMagic,
	}
	mbr.Volumes[0] = VolumeDescriptor{First: CylSec{Cylinder: 0, Sector: 1}, NbBlocks: 8, Type: VolumeBase}
	mbr.Volumes[1] = VolumeDescriptor{First: CylSec{Cylinder: 1, Sector: 0}, NbBlocks: 16, Type: VolumeAnnx}

	buf := mbr.MarshalSector()
	require.Len(t, buf, voldisk.BlockSize)

	var out MBR
	require.NoError(t, out.UnmarshalSector(buf))
	assert.Equal(t, mbr.Count, out.Count)
	assert.Equal(t, mbr.Magic, out.Magic)
	assert.Equal(t, mbr.Volumes[0], out.Volumes[0])
	assert.Equal(t, mbr.Volumes[1], out.Volumes[1])
}

func TestMBR_EmptyTableRoundTripsWithZeroSlots(t *testing.T) {
	mbr := MBR{Count: 0, Magic: voldisk.MBRMagic}
	buf := mbr.MarshalSector()

	var out MBR
	require.NoError(t, out.UnmarshalSector(buf))
	for i := 0; i < voldisk.MaxVolumes; i++ {
		assert.Equal(t, VolumeDescriptor{}, out.Volumes[i])
	}
}
