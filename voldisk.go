// Package voldisk defines the fixed parameters shared by every layer of the
// stack: the volume manager, the indexed file layer, and their external
// collaborators all agree on a single block size and volume table shape.
package voldisk

// BlockSize is the size, in bytes, of a sector and of a volume block. Sector
// and block sizes are equal by construction.
const BlockSize = 128

// MaxVolumes is the maximum number of logical volumes the MBR can describe.
const MaxVolumes = 8

// MBRMagic identifies a sector 0 that has already been formatted by this
// stack.
const MBRMagic uint16 = 0xB00B
