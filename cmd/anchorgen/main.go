package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tos-network/anchorgen"
	"github.com/tos-network/anchorgen/internal/config"
	"github.com/tos-network/anchorgen/internal/logger"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "driver configuration file",
		Value: config.DefaultFile,
	}
	noColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "disable coloured diagnostics",
	}
	outputFlag = &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "write to `FILE` instead of stdout",
	}
	stringMaxLenFlag = &cli.IntFlag{
		Name:  "string-max-len",
		Usage: "bytes reserved for a string state field",
		Value: 32,
	}
)

func newApp() *cli.App {
	app := &cli.App{
		Name:    "anchorgen",
		Usage:   "compile TypeScript program descriptions to Anchor Rust",
		Version: anchorgen.PackageVersion,
		Flags:   []cli.Flag{configFlag, noColorFlag},
		Commands: []*cli.Command{
			compileCommand,
			idlCommand,
			buildCommand,
			inspectCommand,
			keysCommand,
			replCommand,
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the --config file; the default name may be absent.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(configFlag.Name)
	return config.Load(path, !c.IsSet(configFlag.Name))
}

func newLogger(cfg *config.Config) (*zap.Logger, func() error, error) {
	return logger.New(cfg.LogConf.ToLogOption())
}
