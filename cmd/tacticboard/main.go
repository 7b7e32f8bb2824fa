// Command tacticboard inspects, converts, validates, plays back and stores
// tactic files.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	configFlag = "config"
	speedFlag  = "speed"
	inFlag     = "in"
	outFlag    = "out"
	saveFlag   = "save"
	keepFlag   = "keep-going"
	limitFlag  = "limit"
)

var build string
var semanticVersion = "v0.1.0-dev" + build

// app wires the runtime into every command. The runtime is created in
// Before so a bad config dir fails before any command runs.
type app struct {
	stdout io.Writer
	rt     *runtime
}

func newApp(stdout io.Writer) *cli.App {
	a := &app{stdout: stdout}
	return &cli.App{
		Name:      AppName,
		Usage:     "Build, inspect and play back tactic board timelines",
		Version:   semanticVersion,
		Writer:    stdout,
		ErrWriter: stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    configFlag,
				Aliases: []string{"c"},
				Usage:   "Directory containing tacticboard.cfg.json",
				Value:   ".",
			},
		},
		Before: func(cCtx *cli.Context) error {
			rt, err := newRuntime(cCtx.String(configFlag), stdout)
			if err != nil {
				return err
			}
			a.rt = rt
			return nil
		},
		After: func(cCtx *cli.Context) error {
			if a.rt == nil {
				return nil
			}
			return a.rt.Close()
		},
		Commands: a.commands(),
	}
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
