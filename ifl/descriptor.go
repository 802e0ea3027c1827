package ifl

import "github.com/finode/voldisk/inode"

// FileDescriptor is the in-memory state of one open file: its position, its
// single-block cache, and the dirty flag for that cache. The zero value is a
// descriptor that has never been opened, and is therefore invalid, the same
// as one that Close has already torn down.
//
// A FileDescriptor is owned exclusively by whoever opened it. Nothing here
// is safe to share across goroutines, and nothing here is safe to share
// across two descriptors open on the same inode — each keeps its own size
// and buffer, and the two can disagree.
type FileDescriptor struct {
	id   uint32
	node uint32
	typ  inode.FileType

	size       uint32
	storedSize uint32

	currentPos         uint32
	currentPosInBuffer uint32
	bufferIndex        uint32
	bufferPos          uint32
	bufferBlock        uint32
	buffer             []byte
	bufferModified     bool
}

// ID is the unique, monotonically increasing handle assigned at Open.
func (fd *FileDescriptor) ID() uint32 { return fd.id }

// Inode is the inode number this descriptor was opened against. It reads
// back 0 once the descriptor has been closed.
func (fd *FileDescriptor) Inode() uint32 { return fd.node }

// Type is the inode's file type, captured at Open.
func (fd *FileDescriptor) Type() inode.FileType { return fd.typ }

// Size is the file's current size, including any bytes written since the
// last flush.
func (fd *FileDescriptor) Size() uint32 { return fd.size }

// Tell returns the current absolute byte offset.
func (fd *FileDescriptor) Tell() uint32 { return fd.currentPos }

// Valid reports whether the descriptor refers to a live, open file. A
// descriptor becomes invalid after Close, and starts invalid before the
// first successful Open. This only checks node != 0, not the full
// inode-range predicate Open already enforced, which is equivalent since
// nbBlocks is fixed for the lifetime of the descriptor.
func (fd *FileDescriptor) Valid() bool { return fd.node != 0 }
