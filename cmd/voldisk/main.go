// Command voldisk is a CLI front end over the volume manager and indexed
// file layer: format images, manage volumes, and move files in and out of
// them, all on a single flat image file backed by drive.MemoryDrive.
//
// Library code (volmgr, ifl, inode, drive) never logs anything; this is the
// only package in the module that does.
package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/finode/voldisk/drive"
	"github.com/finode/voldisk/errors"
	"github.com/finode/voldisk/geometries"
	"github.com/finode/voldisk/ifl"
	"github.com/finode/voldisk/inode"
	"github.com/finode/voldisk/session"
	"github.com/finode/voldisk/volmgr"
)

const version = "v0.1"

func main() {
	app := &cli.App{
		Name:    "voldisk",
		Usage:   "Manage volumes and files on a flat disk image",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Value: "info",
				Usage: "log level (trace, debug, info, warn, error, fatal, panic)",
			},
		},
		Before: func(c *cli.Context) error {
			return initLogging(c.String("log-level"))
		},
		Commands: []*cli.Command{
			formatCommand,
			addVolumeCommand,
			removeVolumeCommand,
			lsCommand,
			touchCommand,
			catCommand,
			writeCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("voldisk failed")
	}
}

func initLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.
		New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    false,
		}).
		With().Timestamp().Logger()
	return nil
}

// openImage loads an existing image file with the given geometry and starts
// a VolumeManager over it.
func openImage(path string, cylinders, sectors uint16) (*volmgr.VolumeManager, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ErrIOFailed.Wrap(err)
	}
	d, err := drive.NewMemoryDriveFromImage(cylinders, sectors, image)
	if err != nil {
		return nil, err
	}
	vm := volmgr.New(d)
	if err := vm.DriveStart(); err != nil {
		return nil, err
	}
	return vm, nil
}

// saveImage reads the drive back out and writes it to path. MemoryDrive
// holds the whole image in memory, so this is the only place the CLI
// persists anything to the host file system.
func saveImage(path string, d *drive.MemoryDrive) error {
	info := d.Infos()
	image := make([]byte, int(info.TotalSectors())*int(info.SectorSize))
	for abs := uint32(0); abs < info.TotalSectors(); abs++ {
		cyl := uint16(abs / uint32(info.NbSector))
		sec := uint16(abs % uint32(info.NbSector))
		buf := image[int(abs)*int(info.SectorSize) : (int(abs)+1)*int(info.SectorSize)]
		if err := d.ReadSector(cyl, sec, buf); err != nil {
			return err
		}
	}
	return os.WriteFile(path, image, 0o644)
}

func resolveGeometry(c *cli.Context) (cylinders, sectors uint16, err error) {
	if slug := c.String("geometry"); slug != "" {
		g, err := geometries.Get(slug)
		if err != nil {
			return 0, 0, err
		}
		return g.Cylinders, g.SectorsPerCylinder, nil
	}
	cylinders = uint16(c.Int("cylinders"))
	sectors = uint16(c.Int("sectors"))
	if cylinders == 0 || sectors == 0 {
		return 0, 0, fmt.Errorf(
			"either --geometry (one of %s) or both --cylinders and --sectors must be given",
			strings.Join(geometries.Names(), ", "),
		)
	}
	return cylinders, sectors, nil
}

var formatCommand = &cli.Command{
	Name:      "format",
	Usage:     "Create a new blank image",
	ArgsUsage: "IMAGE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "geometry", Usage: "predefined drive geometry slug"},
		&cli.IntFlag{Name: "cylinders", Usage: "number of cylinders"},
		&cli.IntFlag{Name: "sectors", Usage: "sectors per cylinder"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("missing IMAGE argument")
		}
		cylinders, sectors, err := resolveGeometry(c)
		if err != nil {
			return err
		}

		d := drive.NewMemoryDrive(cylinders, sectors)
		vm := volmgr.New(d)
		if err := vm.DriveStart(); err != nil {
			return err
		}
		if err := saveImage(path, d); err != nil {
			return err
		}
		log.Info().Str("image", path).Uint16("cylinders", cylinders).Uint16("sectors", sectors).Msg("formatted new image")
		return nil
	},
}

var addVolumeCommand = &cli.Command{
	Name:      "add-volume",
	Usage:     "Add a volume to an existing image",
	ArgsUsage: "IMAGE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "geometry", Usage: "predefined drive geometry slug"},
		&cli.IntFlag{Name: "cylinders", Usage: "number of cylinders"},
		&cli.IntFlag{Name: "sectors", Usage: "sectors per cylinder"},
		&cli.IntFlag{Name: "start-cylinder", Required: true},
		&cli.IntFlag{Name: "start-sector", Required: true},
		&cli.IntFlag{Name: "blocks", Required: true, Usage: "number of blocks in the new volume"},
		&cli.StringFlag{Name: "type", Value: "base", Usage: "base, annx, or other"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("missing IMAGE argument")
		}
		cylinders, sectors, err := resolveGeometry(c)
		if err != nil {
			return err
		}
		vm, err := openImage(path, cylinders, sectors)
		if err != nil {
			return err
		}

		var vtype volmgr.VolumeType
		switch strings.ToLower(c.String("type")) {
		case "base":
			vtype = volmgr.VolumeBase
		case "annx":
			vtype = volmgr.VolumeAnnx
		default:
			vtype = volmgr.VolumeOther
		}

		desc := volmgr.VolumeDescriptor{
			First: volmgr.CylSec{
				Cylinder: uint16(c.Int("start-cylinder")),
				Sector:   uint16(c.Int("start-sector")),
			},
			NbBlocks: uint32(c.Int("blocks")),
			Type:     vtype,
		}
		if err := vm.AddVolume(desc); err != nil {
			return err
		}
		d := vm.Drive().(*drive.MemoryDrive)
		if err := saveImage(path, d); err != nil {
			return err
		}
		log.Info().Uint8("index", vm.NbVolumes()-1).Msg("added volume")
		return nil
	},
}

var removeVolumeCommand = &cli.Command{
	Name:      "remove-volume",
	Usage:     "Remove a volume from an existing image",
	ArgsUsage: "IMAGE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "geometry", Usage: "predefined drive geometry slug"},
		&cli.IntFlag{Name: "cylinders", Usage: "number of cylinders"},
		&cli.IntFlag{Name: "sectors", Usage: "sectors per cylinder"},
		&cli.IntFlag{Name: "index", Required: true},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("missing IMAGE argument")
		}
		cylinders, sectors, err := resolveGeometry(c)
		if err != nil {
			return err
		}
		vm, err := openImage(path, cylinders, sectors)
		if err != nil {
			return err
		}
		if err := vm.RemoveVolume(uint8(c.Int("index"))); err != nil {
			return err
		}
		d := vm.Drive().(*drive.MemoryDrive)
		if err := saveImage(path, d); err != nil {
			return err
		}
		log.Info().Int("index", c.Int("index")).Msg("removed volume")
		return nil
	},
}

// fileCommandFlags are shared by the file-level commands, which all need to
// locate one volume on an already-formatted image.
func fileCommandFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "geometry", Usage: "predefined drive geometry slug"},
		&cli.IntFlag{Name: "cylinders", Usage: "number of cylinders"},
		&cli.IntFlag{Name: "sectors", Usage: "sectors per cylinder"},
		&cli.IntFlag{Name: "volume", Value: 0, Usage: "volume index to operate on"},
	}
}

func openVolumeFS(c *cli.Context, path string) (*volmgr.VolumeManager, *ifl.IndexedFileSystem, error) {
	cylinders, sectors, err := resolveGeometry(c)
	if err != nil {
		return nil, nil, err
	}
	vm, err := openImage(path, cylinders, sectors)
	if err != nil {
		return nil, nil, err
	}
	mapper := inode.NewBitmapMapper(vm, uint8(c.Int("volume")))
	fs := ifl.New(vm, mapper)
	if err := fs.Init(); err != nil {
		return nil, nil, err
	}
	return vm, fs, nil
}

var lsCommand = &cli.Command{
	Name:      "ls",
	Usage:     "List the volumes on an image and their occupancy",
	ArgsUsage: "IMAGE",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "geometry", Usage: "predefined drive geometry slug"},
		&cli.IntFlag{Name: "cylinders", Usage: "number of cylinders"},
		&cli.IntFlag{Name: "sectors", Usage: "sectors per cylinder"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("missing IMAGE argument")
		}
		cylinders, sectors, err := resolveGeometry(c)
		if err != nil {
			return err
		}
		vm, err := openImage(path, cylinders, sectors)
		if err != nil {
			return err
		}
		occ := vm.OccupancyMap()
		for i := uint8(0); i < vm.NbVolumes(); i++ {
			nbBlocks, err := vm.NbBlocks(i)
			if err != nil {
				return err
			}
			occupied := 0
			for _, owner := range occ {
				if owner == int(i) {
					occupied++
				}
			}
			fmt.Printf("%d\t%d blocks\t%d sectors occupied\n", i, nbBlocks, occupied)
		}
		return nil
	},
}

var touchCommand = &cli.Command{
	Name:      "touch",
	Usage:     "Create a new empty inode on a volume and print its number",
	ArgsUsage: "IMAGE",
	Flags:     fileCommandFlags(),
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("missing IMAGE argument")
		}
		vm, fs, err := openVolumeFS(c, path)
		if err != nil {
			return err
		}
		sess := session.New(fs)
		inumber, err := sess.Create(inode.Regular)
		if err != nil {
			return err
		}
		d := vm.Drive().(*drive.MemoryDrive)
		if err := saveImage(path, d); err != nil {
			return err
		}
		fmt.Println(inumber)
		return nil
	},
}

var catCommand = &cli.Command{
	Name:      "cat",
	Usage:     "Print an inode's contents to stdout",
	ArgsUsage: "IMAGE INODE",
	Flags:     fileCommandFlags(),
	Action: func(c *cli.Context) error {
		path := c.Args().Get(0)
		if path == "" || c.Args().Get(1) == "" {
			return fmt.Errorf("usage: cat IMAGE INODE")
		}
		var inumber uint32
		if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &inumber); err != nil {
			return fmt.Errorf("invalid inode number: %s", c.Args().Get(1))
		}

		_, fs, err := openVolumeFS(c, path)
		if err != nil {
			return err
		}
		sess := session.New(fs)
		fd, err := sess.Open(inumber)
		if err != nil {
			return err
		}
		defer sess.Close(fd)

		buf := make([]byte, fd.Size())
		n, err := fs.Read(fd, buf)
		if err != nil && !stderrors.Is(err, io.EOF) {
			return err
		}
		os.Stdout.Write(buf[:n])
		return nil
	},
}

var writeCommand = &cli.Command{
	Name:      "write",
	Usage:     "Write stdin into an inode, starting at offset 0",
	ArgsUsage: "IMAGE INODE",
	Flags:     fileCommandFlags(),
	Action: func(c *cli.Context) error {
		path := c.Args().Get(0)
		if path == "" || c.Args().Get(1) == "" {
			return fmt.Errorf("usage: write IMAGE INODE")
		}
		var inumber uint32
		if _, err := fmt.Sscanf(c.Args().Get(1), "%d", &inumber); err != nil {
			return fmt.Errorf("invalid inode number: %s", c.Args().Get(1))
		}

		vm, fs, err := openVolumeFS(c, path)
		if err != nil {
			return err
		}
		sess := session.New(fs)
		fd, err := sess.Open(inumber)
		if err != nil {
			return err
		}

		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			sess.Close(fd)
			return errors.ErrIOFailed.Wrap(err)
		}
		n, err := fs.Write(fd, data)
		closeErr := sess.Close(fd)
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}

		d := vm.Drive().(*drive.MemoryDrive)
		if err := saveImage(path, d); err != nil {
			return err
		}
		log.Info().Int("bytes", n).Uint32("inode", inumber).Msg("wrote file")
		return nil
	},
}
