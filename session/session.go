// Package session adds a thin multi-descriptor convenience layer on top of
// ifl.IndexedFileSystem: tracking every descriptor a caller has opened so
// they can all be flushed and closed together, e.g. before a process exits.
//
// This is purely additive. Nothing in ifl or volmgr knows sessions exist;
// two descriptors on the same inode, opened through two different sessions
// or the same one, are exactly as independent as spec says they are.
package session

import (
	"github.com/hashicorp/go-multierror"

	"github.com/finode/voldisk/ifl"
	"github.com/finode/voldisk/inode"
)

// Manager tracks every FileDescriptor opened through it.
type Manager struct {
	fs   *ifl.IndexedFileSystem
	open map[uint32]*ifl.FileDescriptor
}

// New wraps fs with descriptor tracking.
func New(fs *ifl.IndexedFileSystem) *Manager {
	return &Manager{fs: fs, open: make(map[uint32]*ifl.FileDescriptor)}
}

// Open opens inumber and remembers the resulting descriptor for CloseAll.
func (m *Manager) Open(inumber uint32) (*ifl.FileDescriptor, error) {
	fd := &ifl.FileDescriptor{}
	if err := m.fs.Open(fd, inumber); err != nil {
		return nil, err
	}
	m.open[fd.ID()] = fd
	return fd, nil
}

// Close closes fd and forgets it.
func (m *Manager) Close(fd *ifl.FileDescriptor) error {
	delete(m.open, fd.ID())
	return m.fs.Close(fd)
}

// CloseAll closes every descriptor this manager still has open, even if one
// of them fails, and reports every failure it hit.
func (m *Manager) CloseAll() error {
	var result *multierror.Error
	for id, fd := range m.open {
		if err := m.fs.Close(fd); err != nil {
			result = multierror.Append(result, err)
		}
		delete(m.open, id)
	}
	return result.ErrorOrNil()
}

// Create is a passthrough to the underlying file system, kept here so
// callers that only hold a *Manager don't also need to hold the
// IndexedFileSystem.
func (m *Manager) Create(t inode.FileType) (uint32, error) {
	return m.fs.Create(t)
}
