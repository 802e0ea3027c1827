// Package geometries offers a small set of named drive geometries so the
// CLI doesn't require the caller to spell out cylinder/sector counts by
// hand every time.
package geometries

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
)

// Geometry is one predefined drive shape.
type Geometry struct {
	Slug               string `csv:"slug"`
	Name               string `csv:"name"`
	Cylinders          uint16 `csv:"cylinders"`
	SectorsPerCylinder uint16 `csv:"sectors_per_cylinder"`
}

//go:embed geometries.csv
var rawCSV string

var predefined map[string]Geometry

func init() {
	predefined = make(map[string]Geometry)
	reader := strings.NewReader(rawCSV)
	err := gocsv.UnmarshalToCallback(reader, func(row Geometry) error {
		if _, exists := predefined[row.Slug]; exists {
			return fmt.Errorf("duplicate geometry slug %q", row.Slug)
		}
		predefined[row.Slug] = row
		return nil
	})
	if err != nil && err != io.EOF {
		panic(err)
	}
}

// Get looks up a predefined geometry by slug.
func Get(slug string) (Geometry, error) {
	g, ok := predefined[slug]
	if !ok {
		return Geometry{}, fmt.Errorf("no predefined geometry named %q", slug)
	}
	return g, nil
}

// Names lists every predefined geometry's slug, for CLI help text.
func Names() []string {
	names := make([]string, 0, len(predefined))
	for slug := range predefined {
		names = append(names, slug)
	}
	return names
}
