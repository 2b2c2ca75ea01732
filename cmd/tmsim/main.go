// Command tmsim runs traffic manager scripts against an in-memory chip.
package main

import (
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/usnistgov/tofino-tm/core/logging"
	"github.com/usnistgov/tofino-tm/mk/version"
	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmdef"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
)

var (
	asicName   string
	pipes      int
	targetName string
	warmInit   bool
	devID      int
	logLevel   string
)

var app = &cli.App{
	Version: version.Get().String(),
	Usage:   "Simulate the traffic manager driver on an in-memory chip.",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "asic",
			Value:       "tofino2",
			Usage:       "ASIC `generation` (tofino, tofino2, tofino3)",
			Destination: &asicName,
		},
		&cli.IntFlag{
			Name:        "pipes",
			Usage:       "number of pipes, 0 for the full device",
			Destination: &pipes,
		},
		&cli.StringFlag{
			Name:        "target",
			Value:       "asic",
			Usage:       "device `target` (asic, model)",
			Destination: &targetName,
		},
		&cli.BoolFlag{
			Name:        "warm",
			Usage:       "start in warm-init mode",
			Destination: &warmInit,
		},
		&cli.IntFlag{
			Name:        "dev",
			Usage:       "device `ID`",
			Destination: &devID,
		},
		&cli.StringFlag{
			Name:        "log",
			Usage:       "log `level` of every package (D, I, W, E)",
			Destination: &logLevel,
		},
	},
	Before: func(c *cli.Context) error {
		if logLevel != "" {
			logging.SetAll(logLevel)
		}
		return nil
	},
}

func defineCommand(command *cli.Command) {
	app.Commands = append(app.Commands, command)
}

// newDevice creates a Device on a fresh MemChip according to global flags.
func newDevice() (*tm.Device, *tmhw.MemChip, error) {
	asic, ok := tmdef.ParseAsicType(asicName)
	if !ok {
		return nil, nil, fmt.Errorf("unknown ASIC %q", asicName)
	}
	cfg := tm.Config{
		ID:       tmdef.DevID(devID),
		Asic:     asic,
		Pipes:    pipes,
		WarmInit: warmInit,
		PortInfo: &tm.StaticPortInfo{},
	}
	switch targetName {
	case "asic":
		cfg.Target = tmdef.TargetAsic
	case "model":
		cfg.Target = tmdef.TargetModel
	default:
		return nil, nil, fmt.Errorf("unknown target %q", targetName)
	}

	chip := tmhw.NewMemChip()
	cfg.Chip = chip
	dev, e := tm.New(cfg)
	return dev, chip, e
}

func main() {
	sort.Sort(cli.CommandsByName(app.Commands))
	e := app.Run(os.Args)
	if e != nil {
		log.Fatal(e)
	}
}
