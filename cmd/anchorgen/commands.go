package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/anchorgen"
	"github.com/tos-network/anchorgen/dsl/layout"
	"github.com/tos-network/anchorgen/internal/workspace"
)

var errCompileFailed = errors.New("compilation failed")

var compileCommand = &cli.Command{
	Name:      "compile",
	Usage:     "compile one DSL file to Anchor Rust",
	ArgsUsage: "<program.ts>",
	Flags: []cli.Flag{
		outputFlag,
		stringMaxLenFlag,
		&cli.StringFlag{Name: "idl", Usage: "also write the IDL to `FILE`"},
	},
	Action: func(c *cli.Context) error {
		input, src, err := readInput(c)
		if err != nil {
			return err
		}
		maxLen, err := stringMaxLen(c)
		if err != nil {
			return err
		}
		opts := anchorgen.Options{
			StringMaxLen: maxLen,
			EmitIDL:      c.String("idl") != "",
		}
		out, err := anchorgen.CompileWithOptions(src, input, opts)
		if err != nil {
			newPainter(useColor(c, c.App.ErrWriter)).report(c.App.ErrWriter, err)
			return errCompileFailed
		}
		if opts.EmitIDL {
			if err := os.WriteFile(c.String("idl"), out.IDL, 0o644); err != nil {
				return errors.Wrap(err, "write idl")
			}
		}
		return emit(c, []byte(out.Rust))
	},
}

var idlCommand = &cli.Command{
	Name:      "idl",
	Usage:     "print the Anchor IDL of one DSL file",
	ArgsUsage: "<program.ts>",
	Flags:     []cli.Flag{outputFlag, stringMaxLenFlag},
	Action: func(c *cli.Context) error {
		input, src, err := readInput(c)
		if err != nil {
			return err
		}
		maxLen, err := stringMaxLen(c)
		if err != nil {
			return err
		}
		out, err := anchorgen.CompileWithOptions(src, input, anchorgen.Options{
			StringMaxLen: maxLen,
			EmitIDL:      true,
		})
		if err != nil {
			newPainter(useColor(c, c.App.ErrWriter)).report(c.App.ErrWriter, err)
			return errCompileFailed
		}
		return emit(c, out.IDL)
	},
}

var buildCommand = &cli.Command{
	Name:  "build",
	Usage: "compile every program of the workspace",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "force", Usage: "recompile files the build manifest marks up to date"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		results, err := workspace.New(cfg, log).Build(c.Context, c.Bool("force"))
		if err != nil {
			return err
		}
		p := newPainter(useColor(c, c.App.ErrWriter))
		for _, r := range results {
			switch {
			case r.Err != nil:
				p.report(c.App.ErrWriter, r.Err)
			case r.Skipped:
				fmt.Fprintf(c.App.Writer, "%s: up to date\n", r.Source)
			default:
				fmt.Fprintf(c.App.Writer, "%s -> %s\n", r.Source, r.Output)
			}
		}
		if n := workspace.Failed(results); n > 0 {
			return errors.Wrapf(errCompileFailed, "%d of %d file(s)", n, len(results))
		}
		return nil
	},
}

var inspectCommand = &cli.Command{
	Name:      "inspect",
	Usage:     "decode raw state account data with the layout of a DSL state type",
	ArgsUsage: "<program.ts> <account-data>",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "type", Usage: "state type `NAME`; optional when the program has one"},
		&cli.StringFlag{Name: "encoding", Usage: "account data encoding: raw, base64 or base58", Value: "raw"},
		stringMaxLenFlag,
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 2 {
			return errors.New("inspect requires a program file and an account data file")
		}
		input := c.Args().Get(0)
		src, err := os.ReadFile(input)
		if err != nil {
			return errors.Wrapf(err, "read %s", input)
		}
		maxLen, err := stringMaxLen(c)
		if err != nil {
			return err
		}
		unit, err := anchorgen.ExtractProgram(src, input, anchorgen.Options{StringMaxLen: maxLen})
		if err != nil {
			newPainter(useColor(c, c.App.ErrWriter)).report(c.App.ErrWriter, err)
			return errCompileFailed
		}

		name := c.String("type")
		if name == "" {
			if len(unit.States) != 1 {
				return errors.Errorf("%s declares %d state types; choose one with --type", input, len(unit.States))
			}
			name = unit.States[0].Name
		}
		st, ok := unit.State(name)
		if !ok {
			return errors.Errorf("%s has no state type %q", input, name)
		}

		data, err := readAccountData(c.Args().Get(1), c.String("encoding"))
		if err != nil {
			return err
		}
		rec, err := layout.Decode(st, data)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s (%d bytes)\n", rec.Type, len(data))
		for _, f := range rec.Fields {
			fmt.Fprintf(c.App.Writer, "  %s: %s = %s\n", f.Name, f.Type.Name, f)
		}
		return nil
	},
}

var keysCommand = &cli.Command{
	Name:  "keys",
	Usage: "program id management",
	Subcommands: []*cli.Command{
		{
			Name:  "sync",
			Usage: "write deploy keypair program ids into sources and Anchor.toml",
			Action: func(c *cli.Context) error {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				log, closeLog, err := newLogger(cfg)
				if err != nil {
					return err
				}
				defer closeLog()

				synced, err := workspace.New(cfg, log).SyncKeys()
				if err != nil {
					return err
				}
				for _, k := range synced {
					if k.Changed() {
						fmt.Fprintf(c.App.Writer, "%s: %s -> %s\n", k.Program, k.OldID, k.NewID)
					} else {
						fmt.Fprintf(c.App.Writer, "%s: %s (unchanged)\n", k.Program, k.NewID)
					}
				}
				return nil
			},
		},
	},
}

func readInput(c *cli.Context) (string, []byte, error) {
	if c.NArg() != 1 {
		return "", nil, errors.Errorf("%s requires exactly one input file", c.Command.Name)
	}
	input := c.Args().First()
	src, err := os.ReadFile(input)
	if err != nil {
		return "", nil, errors.Wrapf(err, "read %s", input)
	}
	return input, src, nil
}

// stringMaxLen prefers --string-max-len over compiler.string_max_len.
func stringMaxLen(c *cli.Context) (int, error) {
	if c.IsSet(stringMaxLenFlag.Name) {
		return c.Int(stringMaxLenFlag.Name), nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return 0, err
	}
	return cfg.CompilerConf.StringMaxLen, nil
}

func emit(c *cli.Context, data []byte) error {
	if path := c.String(outputFlag.Name); path != "" {
		return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
	}
	_, err := c.App.Writer.Write(data)
	return err
}

func readAccountData(path, encoding string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	text := strings.TrimSpace(string(data))
	switch encoding {
	case "raw":
		return data, nil
	case "base64":
		out, err := base64.StdEncoding.DecodeString(text)
		return out, errors.Wrapf(err, "decode base64 %s", path)
	case "base58":
		out, err := base58.Decode(text)
		return out, errors.Wrapf(err, "decode base58 %s", path)
	default:
		return nil, errors.Errorf("unknown encoding %q", encoding)
	}
}
