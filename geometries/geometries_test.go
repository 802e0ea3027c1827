package geometries

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_KnownSlug(t *testing.T) {
	g, err := Get("tiny")
	require.NoError(t, err)
	assert.Equal(t, "tiny", g.Slug)
	assert.Equal(t, uint16(4), g.Cylinders)
	assert.Equal(t, uint16(16), g.SectorsPerCylinder)
}

func TestGet_UnknownSlug(t *testing.T) {
	_, err := Get("does-not-exist")
	assert.Error(t, err)
}

func TestNames_IncludesEveryPredefinedGeometry(t *testing.T) {
	names := Names()
	assert.Contains(t, names, "tiny")
	assert.Contains(t, names, "floppy-like")
	assert.Contains(t, names, "small-disk")
	assert.Contains(t, names, "large-disk")
	assert.Len(t, names, 4)
}
