package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"github.com/tos-network/anchorgen"
	"github.com/tos-network/anchorgen/dsl/parser"
)

const replName = "<repl>"

var replCommand = &cli.Command{
	Name:  "repl",
	Usage: "compile programs typed interactively; an empty line submits",
	Action: func(c *cli.Context) error {
		rl, err := readline.NewEx(&readline.Config{
			Prompt: "> ",
			Stdout: c.App.Writer,
			Stderr: c.App.ErrWriter,
		})
		if err != nil {
			return errors.Wrap(err, "start repl")
		}
		defer rl.Close()
		return doREPL(rl, c.App.Writer, newPainter(useColor(c, c.App.ErrWriter)))
	},
}

type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

// doREPL compiles one program per submission until the reader ends.
func doREPL(rl lineReader, w io.Writer, p painter) error {
	for {
		src, err := loadline(rl)
		if err == io.EOF || err == readline.ErrInterrupt {
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(src) == "" {
			continue
		}
		out, err := anchorgen.Compile([]byte(src), replName)
		if err != nil {
			p.report(w, err)
			continue
		}
		fmt.Fprint(w, out)
	}
}

func loadline(rl lineReader) (string, error) {
	rl.SetPrompt("> ")
	line, err := rl.Readline()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) == "" {
		return "", nil
	}
	return multiline(line, rl)
}

// multiline keeps reading while the source is cut short, then until an
// empty line.
func multiline(ml string, rl lineReader) (string, error) {
	for {
		rl.SetPrompt(">> ")
		line, err := rl.Readline()
		if err != nil {
			if err == io.EOF && !parser.Incomplete(replName, []byte(ml)) {
				return ml, nil
			}
			return "", err
		}
		if strings.TrimSpace(line) == "" && !parser.Incomplete(replName, []byte(ml)) {
			return ml, nil
		}
		ml = ml + "\n" + line
	}
}
