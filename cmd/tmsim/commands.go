package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/kballard/go-shellquote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"
	"go4.org/must"

	"github.com/usnistgov/tofino-tm/mk/version"
	"github.com/usnistgov/tofino-tm/tm"
	"github.com/usnistgov/tofino-tm/tm/tmhw"
	"github.com/usnistgov/tofino-tm/tm/tmmetrics"
	"github.com/usnistgov/tofino-tm/tm/tmscript"
)

// runScripts executes script files in order; "-" reads from stdin.
func runScripts(in *tmscript.Interpreter, files []string) error {
	if len(files) == 0 {
		files = []string{"-"}
	}
	for _, filename := range files {
		var r io.Reader = os.Stdin
		if filename != "-" {
			file, e := os.Open(filename)
			if e != nil {
				return e
			}
			defer must.Close(file)
			r = file
		}
		if e := in.Run(r); e != nil {
			return fmt.Errorf("%s: %w", filename, e)
		}
	}
	return nil
}

func printWrites(chip *tmhw.MemChip, pattern string) {
	for _, w := range chip.Writes(pattern) {
		fmt.Println(shellquote.Join("write", w.Addr.String(), fmt.Sprintf("%#x", w.Value)))
	}
}

func newRegistry(dev *tm.Device) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(tmmetrics.New(dev))
	return reg
}

func init() {
	var writes string
	var dumpWrites bool
	defineCommand(&cli.Command{
		Name:      "run",
		Usage:     "Run scripts",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "writes",
				Usage:       "print register writes after running",
				Destination: &dumpWrites,
			},
			&cli.StringFlag{
				Name:        "writes-filter",
				Usage:       "print only writes to register blocks containing `PATTERN`",
				Destination: &writes,
			},
		},
		Action: func(c *cli.Context) error {
			dev, chip, e := newDevice()
			if e != nil {
				return e
			}
			defer must.Close(dev)

			e = runScripts(tmscript.New(dev, os.Stdout), c.Args().Slice())
			if dumpWrites || writes != "" {
				printWrites(chip, writes)
			}
			return e
		},
	})

	defineCommand(&cli.Command{
		Name:      "metrics",
		Usage:     "Run scripts and print Prometheus metrics",
		ArgsUsage: "[FILE...]",
		Action: func(c *cli.Context) error {
			dev, _, e := newDevice()
			if e != nil {
				return e
			}
			defer must.Close(dev)

			if e := runScripts(tmscript.New(dev, io.Discard), c.Args().Slice()); e != nil {
				return e
			}
			families, e := newRegistry(dev).Gather()
			if e != nil {
				return e
			}
			for _, mf := range families {
				if _, e := expfmt.MetricFamilyToText(os.Stdout, mf); e != nil {
					return e
				}
			}
			return nil
		},
	})

	defineCommand(&cli.Command{
		Name:  "commands",
		Usage: "List script commands",
		Action: func(c *cli.Context) error {
			for _, line := range tmscript.Usage() {
				fmt.Println(line)
			}
			return nil
		},
	})

	defineCommand(&cli.Command{
		Name:  "show-version",
		Usage: "Show version",
		Action: func(c *cli.Context) error {
			j, e := json.Marshal(version.Get())
			if e != nil {
				return e
			}
			fmt.Println(string(j))
			return nil
		},
	})
}
