// Package ifl implements the indexed file layer: a byte-stream abstraction
// over inode-addressed blocks, with a single-block write-back cache per open
// descriptor. It is the only layer above the volume manager that end users
// touch directly.
package ifl

import (
	stderrors "errors"
	"fmt"
	"io"

	verrors "github.com/finode/voldisk/errors"
	"github.com/finode/voldisk/inode"
	"github.com/finode/voldisk/volmgr"
)

// ErrDescriptorInvalid is returned by every operation performed on a
// descriptor that was never opened, or has already been closed.
var ErrDescriptorInvalid = verrors.ErrDescriptorInvalid

// ErrNoFreeSpace is returned by WriteByte/Write when the inode mapper can't
// allocate a block for new data.
var ErrNoFreeSpace = verrors.ErrNoFreeSpace

// IndexedFileSystem ties a volume manager and an inode mapper together and
// implements Open/Close/Read/Write/Seek against them. It holds no
// per-descriptor state itself beyond the block size and the ID counter;
// every FileDescriptor is independent.
type IndexedFileSystem struct {
	vm        *volmgr.VolumeManager
	mapper    inode.Mapper
	blockSize uint32
	nextID    uint32

	initialized bool
}

// New builds an IndexedFileSystem over vm and mapper. Call Init before using
// it.
func New(vm *volmgr.VolumeManager, mapper inode.Mapper) *IndexedFileSystem {
	return &IndexedFileSystem{vm: vm, mapper: mapper}
}

// Init performs idempotent setup: it initializes the inode mapper and caches
// the current volume's block size.
func (ifs *IndexedFileSystem) Init() error {
	if ifs.initialized {
		return nil
	}
	if err := ifs.mapper.Init(); err != nil {
		return err
	}
	blockSize, _ := ifs.mapper.VolumeInfos()
	ifs.blockSize = blockSize
	ifs.initialized = true
	return nil
}

func (ifs *IndexedFileSystem) inodeValid(inumber uint32) bool {
	_, nbBlock := ifs.mapper.VolumeInfos()
	return inumber > 0 && inumber < nbBlock
}

// Create allocates a new, empty inode of the given type. It makes no change
// to any open descriptor.
func (ifs *IndexedFileSystem) Create(t inode.FileType) (uint32, error) {
	return ifs.mapper.CreateInode(t)
}

// Delete releases inumber. Deleting an inode that some descriptor still has
// open is the caller's responsibility to avoid; behavior of that descriptor
// afterward is undefined.
func (ifs *IndexedFileSystem) Delete(inumber uint32) error {
	if !ifs.inodeValid(inumber) {
		return verrors.ErrNotFound.WithMessage(fmt.Sprintf("no inode %d", inumber))
	}
	return ifs.mapper.DeleteInode(inumber)
}

// Truncate resets inumber's size to zero.
func (ifs *IndexedFileSystem) Truncate(inumber uint32) error {
	if !ifs.inodeValid(inumber) {
		return verrors.ErrNotFound.WithMessage(fmt.Sprintf("no inode %d", inumber))
	}
	return ifs.mapper.TruncateInode(inumber)
}

// Open populates fd from inumber's current metadata: position and buffer
// fields all start zeroed. On failure fd is left untouched.
func (ifs *IndexedFileSystem) Open(fd *FileDescriptor, inumber uint32) error {
	if !ifs.inodeValid(inumber) {
		return verrors.ErrNotFound.WithMessage(fmt.Sprintf("no inode %d", inumber))
	}
	data, err := ifs.mapper.ReadInode(inumber)
	if err != nil {
		return err
	}

	*fd = FileDescriptor{
		id:         ifs.nextID,
		node:       inumber,
		typ:        data.Type,
		size:       data.Size,
		storedSize: data.Size,
	}
	ifs.nextID++
	return nil
}

// Close flushes fd, releases its buffer, and marks it permanently invalid.
// Calling Close on an already-invalid descriptor is a no-op.
func (ifs *IndexedFileSystem) Close(fd *FileDescriptor) error {
	if !fd.Valid() {
		return nil
	}
	if err := ifs.flush(fd); err != nil {
		return err
	}
	fd.buffer = nil
	fd.node = 0
	return nil
}

// flush is a no-op on an invalid descriptor, an empty buffer, or a clean
// buffer. Otherwise it writes the buffered block back and, if the file grew
// since the last flush, persists the new size to the inode.
func (ifs *IndexedFileSystem) flush(fd *FileDescriptor) error {
	if !fd.Valid() || fd.buffer == nil || !fd.bufferModified {
		return nil
	}
	if err := ifs.vm.WriteBlock(ifs.mapper.CurrentVolume(), fd.bufferBlock, fd.buffer); err != nil {
		return err
	}
	fd.bufferModified = false

	if fd.size != fd.storedSize {
		data, err := ifs.mapper.ReadInode(fd.node)
		if err != nil {
			return err
		}
		data.Size = fd.size
		if err := ifs.mapper.WriteInode(fd.node, data); err != nil {
			return err
		}
		fd.storedSize = fd.size
	}
	return nil
}

// Flush forces a pending write and size update out to storage without
// closing the descriptor.
func (ifs *IndexedFileSystem) Flush(fd *FileDescriptor) error {
	return ifs.flush(fd)
}

// changePosition is the sole mutator of a descriptor's position fields. It
// flushes and drops the current buffer whenever the move crosses into a
// different block.
func (ifs *IndexedFileSystem) changePosition(fd *FileDescriptor, newPos uint32) error {
	if newPos == fd.currentPos {
		return nil
	}

	newBufferIndex := newPos / ifs.blockSize
	newPosInBuffer := newPos % ifs.blockSize

	if newBufferIndex != fd.bufferIndex {
		if err := ifs.flush(fd); err != nil {
			return err
		}
		fd.buffer = nil
		fd.bufferBlock = 0
		fd.bufferModified = false
		fd.bufferPos = newBufferIndex * ifs.blockSize
		fd.bufferIndex = newBufferIndex
	}

	fd.currentPos = newPos
	fd.currentPosInBuffer = newPosInBuffer
	return nil
}

// SeekAbs moves fd to an absolute byte offset. Seeking past the end of the
// file is permitted; a subsequent read hits EOF and a subsequent write
// extends the file.
func (ifs *IndexedFileSystem) SeekAbs(fd *FileDescriptor, offset uint32) error {
	if !fd.Valid() {
		return ErrDescriptorInvalid
	}
	return ifs.changePosition(fd, offset)
}

// SeekRel moves fd by delta bytes relative to its current position. A
// negative delta that would go below offset 0 is clamped to 0.
func (ifs *IndexedFileSystem) SeekRel(fd *FileDescriptor, delta int64) error {
	if !fd.Valid() {
		return ErrDescriptorInvalid
	}
	if delta < -int64(fd.currentPos) {
		delta = -int64(fd.currentPos)
	}
	return ifs.changePosition(fd, uint32(int64(fd.currentPos)+delta))
}

// ReadByte returns the next byte and advances the position by one. It
// returns io.EOF once the position reaches the file's size, and
// ErrDescriptorInvalid if fd isn't open. Reading never allocates a block:
// an unmapped file block reads back as zeros.
func (ifs *IndexedFileSystem) ReadByte(fd *FileDescriptor) (byte, error) {
	if !fd.Valid() {
		return 0, ErrDescriptorInvalid
	}
	if fd.currentPos >= fd.size {
		return 0, io.EOF
	}

	if fd.buffer == nil {
		fd.buffer = make([]byte, ifs.blockSize)
		block, err := ifs.mapper.FileBlockToVolBlock(fd.node, fd.bufferIndex, false)
		if err != nil {
			return 0, err
		}
		fd.bufferBlock = block
		if block != 0 {
			if err := ifs.vm.ReadBlock(ifs.mapper.CurrentVolume(), block, fd.buffer); err != nil {
				return 0, err
			}
		}
	}

	v := fd.buffer[fd.currentPosInBuffer]
	if err := ifs.changePosition(fd, fd.currentPos+1); err != nil {
		return 0, err
	}
	return v, nil
}

// WriteByte stores c at the current position and advances by one, growing
// the file's size if the write extends past the old end. The new size is
// not persisted to the inode until a flush (block change, explicit Flush,
// or Close).
func (ifs *IndexedFileSystem) WriteByte(fd *FileDescriptor, c byte) error {
	if !fd.Valid() {
		return ErrDescriptorInvalid
	}

	if fd.buffer == nil || fd.bufferBlock == 0 {
		block, err := ifs.mapper.FileBlockToVolBlock(fd.node, fd.bufferIndex, true)
		if err != nil {
			return err
		}
		if block == 0 {
			return ErrNoFreeSpace
		}
		fd.bufferBlock = block
		if fd.buffer == nil {
			fd.buffer = make([]byte, ifs.blockSize)
			if err := ifs.vm.ReadBlock(ifs.mapper.CurrentVolume(), block, fd.buffer); err != nil {
				return err
			}
		}
	}

	fd.buffer[fd.currentPosInBuffer] = c
	fd.bufferModified = true
	if err := ifs.changePosition(fd, fd.currentPos+1); err != nil {
		return err
	}
	if fd.currentPos > fd.size {
		fd.size = fd.currentPos
	}
	return nil
}

// Read fills buf one byte at a time via ReadByte. It returns the number of
// bytes actually read; that count is less than len(buf) when EOF was hit,
// signaled by a returned err of io.EOF, or when any other error stopped the
// read, which is returned as is. An invalid descriptor is
// reported immediately, with n == 0, regardless of how much of buf might
// otherwise have been read.
func (ifs *IndexedFileSystem) Read(fd *FileDescriptor, buf []byte) (int, error) {
	for i := 0; i < len(buf); i++ {
		v, err := ifs.ReadByte(fd)
		switch {
		case stderrors.Is(err, ErrDescriptorInvalid):
			return 0, err
		case stderrors.Is(err, io.EOF):
			return i, io.EOF
		case err != nil:
			return i, err
		}
		buf[i] = v
	}
	return len(buf), nil
}

// Write stores buf one byte at a time via WriteByte. It returns the number
// of bytes actually written; that count is less than len(buf) when the
// mapper ran out of space, signaled by a returned err of ErrNoFreeSpace, or
// when any other error stopped the write, which is returned as is. An
// invalid descriptor is reported immediately, with
// n == 0.
func (ifs *IndexedFileSystem) Write(fd *FileDescriptor, buf []byte) (int, error) {
	for i := 0; i < len(buf); i++ {
		err := ifs.WriteByte(fd, buf[i])
		switch {
		case stderrors.Is(err, ErrDescriptorInvalid):
			return 0, err
		case stderrors.Is(err, ErrNoFreeSpace):
			return i, err
		case err != nil:
			return i, err
		}
	}
	return len(buf), nil
}

// BlockSize returns the block size this file system was initialized with.
func (ifs *IndexedFileSystem) BlockSize() uint32 {
	return ifs.blockSize
}
