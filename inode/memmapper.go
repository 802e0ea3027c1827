package inode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/noxer/bytewriter"

	"github.com/finode/voldisk"
	"github.com/finode/voldisk/errors"
	"github.com/finode/voldisk/volmgr"
)

// directBlockCount bounds how many data blocks a single inode can reference.
// A record has to fit in one block: 1 (type) + 1 (allocated) + 4 (size) +
// directBlockCount*4 (block pointers) <= BlockSize.
const directBlockCount = 28

// rawInodeRecord is the on-disk shape of one inode, stored at volume block
// number equal to the inode's own number (the inode doubles as a volume
// block number, per the mapper's own storage scheme).
type rawInodeRecord struct {
	Type      uint8
	Allocated uint8
	Size      uint32
	Blocks    [directBlockCount]uint32
}

// BitmapMapper is a reference Mapper that stores each inode inline at the
// volume block matching its own number, with a bitmap of free/allocated
// blocks persisted at block 0 of the volume. Block 0 is reserved for the
// bitmap and is never itself a valid inode number, which lines up with the
// indexed file layer's own rule that inode 0 is never valid.
type BitmapMapper struct {
	vm      *volmgr.VolumeManager
	volume  uint8
	nbBlock uint32
	free    bitmap.Bitmap
}

// NewBitmapMapper creates a mapper over the given volume of vm. Call Init
// before use.
func NewBitmapMapper(vm *volmgr.VolumeManager, volume uint8) *BitmapMapper {
	return &BitmapMapper{vm: vm, volume: volume}
}

func (m *BitmapMapper) Init() error {
	nbBlock, err := m.vm.NbBlocks(m.volume)
	if err != nil {
		return err
	}
	m.nbBlock = nbBlock

	buf := make([]byte, voldisk.BlockSize)
	if err := m.vm.ReadBlock(m.volume, 0, buf); err != nil {
		return err
	}

	free := bitmap.NewSlice(int(nbBlock))
	copy(free, buf[:len(free)])
	m.free = free

	// Block 0 always holds the bitmap, never an inode.
	if !m.free.Get(0) {
		m.free.Set(0, true)
		return m.persistBitmap()
	}
	return nil
}

func (m *BitmapMapper) persistBitmap() error {
	buf := make([]byte, voldisk.BlockSize)
	copy(buf, m.free.Data(false))
	return m.vm.WriteBlock(m.volume, 0, buf)
}

func (m *BitmapMapper) validInode(inode uint32) bool {
	return inode > 0 && inode < m.nbBlock
}

func (m *BitmapMapper) readRecord(inode uint32) (rawInodeRecord, error) {
	var rec rawInodeRecord
	buf := make([]byte, voldisk.BlockSize)
	if err := m.vm.ReadBlock(m.volume, inode, buf); err != nil {
		return rec, err
	}
	err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &rec)
	return rec, err
}

func (m *BitmapMapper) writeRecord(inode uint32, rec rawInodeRecord) error {
	buf := make([]byte, voldisk.BlockSize)
	writer := bytewriter.New(buf)
	if err := binary.Write(writer, binary.LittleEndian, &rec); err != nil {
		return err
	}
	return m.vm.WriteBlock(m.volume, inode, buf)
}

func (m *BitmapMapper) allocateBlock() (uint32, bool) {
	for i := uint32(1); i < m.nbBlock; i++ {
		if !m.free.Get(int(i)) {
			m.free.Set(int(i), true)
			return i, true
		}
	}
	return 0, false
}

func (m *BitmapMapper) VolumeInfos() (uint32, uint32) {
	return voldisk.BlockSize, m.nbBlock
}

func (m *BitmapMapper) CurrentVolume() uint8 {
	return m.volume
}

func (m *BitmapMapper) CreateInode(t FileType) (uint32, error) {
	idx, ok := m.allocateBlock()
	if !ok {
		return 0, errors.ErrNoFreeSpace.WithMessage("no free inode blocks")
	}
	if err := m.persistBitmap(); err != nil {
		return 0, err
	}
	rec := rawInodeRecord{Type: uint8(t), Allocated: 1}
	if err := m.writeRecord(idx, rec); err != nil {
		return 0, err
	}
	return idx, nil
}

func (m *BitmapMapper) freeDataBlocks(rec rawInodeRecord) {
	for _, b := range rec.Blocks {
		if b != 0 {
			m.free.Set(int(b), false)
		}
	}
}

func (m *BitmapMapper) DeleteInode(inode uint32) error {
	if !m.validInode(inode) {
		return errors.ErrNotFound.WithMessage(fmt.Sprintf("no inode %d", inode))
	}
	rec, err := m.readRecord(inode)
	if err != nil {
		return err
	}
	m.freeDataBlocks(rec)
	m.free.Set(int(inode), false)
	return m.persistBitmap()
}

func (m *BitmapMapper) TruncateInode(inode uint32) error {
	if !m.validInode(inode) {
		return errors.ErrNotFound.WithMessage(fmt.Sprintf("no inode %d", inode))
	}
	rec, err := m.readRecord(inode)
	if err != nil {
		return err
	}
	m.freeDataBlocks(rec)
	rec.Blocks = [directBlockCount]uint32{}
	rec.Size = 0
	if err := m.writeRecord(inode, rec); err != nil {
		return err
	}
	return m.persistBitmap()
}

func (m *BitmapMapper) ReadInode(inode uint32) (Inode, error) {
	if !m.validInode(inode) {
		return Inode{}, errors.ErrNotFound.WithMessage(fmt.Sprintf("no inode %d", inode))
	}
	rec, err := m.readRecord(inode)
	if err != nil {
		return Inode{}, err
	}
	return Inode{Type: FileType(rec.Type), Size: rec.Size}, nil
}

func (m *BitmapMapper) WriteInode(inode uint32, data Inode) error {
	if !m.validInode(inode) {
		return errors.ErrNotFound.WithMessage(fmt.Sprintf("no inode %d", inode))
	}
	rec, err := m.readRecord(inode)
	if err != nil {
		return err
	}
	rec.Type = uint8(data.Type)
	rec.Size = data.Size
	return m.writeRecord(inode, rec)
}

func (m *BitmapMapper) FileBlockToVolBlock(inode uint32, fileBlockIndex uint32, allocate bool) (uint32, error) {
	if !m.validInode(inode) {
		return 0, errors.ErrNotFound.WithMessage(fmt.Sprintf("no inode %d", inode))
	}
	if fileBlockIndex >= directBlockCount {
		// Past this inode's direct block capacity: treated the same as
		// "no free space" rather than a hard error, since it's the same
		// observable outcome for the indexed file layer.
		return 0, nil
	}

	rec, err := m.readRecord(inode)
	if err != nil {
		return 0, err
	}
	if rec.Blocks[fileBlockIndex] != 0 {
		return rec.Blocks[fileBlockIndex], nil
	}
	if !allocate {
		return 0, nil
	}

	found, ok := m.allocateBlock()
	if !ok {
		return 0, nil
	}
	rec.Blocks[fileBlockIndex] = found
	if err := m.writeRecord(inode, rec); err != nil {
		return 0, err
	}
	if err := m.persistBitmap(); err != nil {
		return 0, err
	}
	return found, nil
}
