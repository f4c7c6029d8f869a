// Package maincmd implements the cmd/tamarin binary's argument parsing and
// dispatch, in the same idiom as the teacher's internal/maincmd: a single
// Cmd struct driven by github.com/mna/mainer's struct-tag flags. Unlike
// the teacher, this driver does not load scripts from the filesystem
// (spec.md §1 names "filesystem loading of scripts" as explicitly out of
// scope) - it reads the script body from stdin and exists only to give
// the stdlib's print/clock built-ins a host process to run under.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/tamarin"
)

const binName = "tamarin"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...]
       %[1]s -h|--help
       %[1]s -v|--version

Reads a script from stdin, compiles it and executes it, printing its
final return value (nil if it returns nothing) to stdout.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --disassemble             Print the compiled bytecode instead of
                                 running it.
`, binName)
)

// Cmd is the tamarin CLI's flag and dispatch struct, driven by
// mainer.Parser the same way the teacher's Cmd is.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help         bool `flag:"h,help"`
	Version      bool `flag:"v,version"`
	Disassemble  bool `flag:"disassemble"`

	args []string
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) != 0 {
		return errors.New("tamarin takes no positional arguments; pipe a script via stdin")
	}
	return nil
}

func printError(stdio mainer.Stdio, err error) error {
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
	}
	return err
}

// Main parses args, dispatches to the requested action, and returns a
// process exit code, mirroring the teacher's Cmd.Main.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.run(ctx, stdio); err != nil {
		printError(stdio, err)
		return mainer.Failure
	}
	return mainer.Success
}

func (c *Cmd) run(ctx context.Context, stdio mainer.Stdio) error {
	src, err := io.ReadAll(stdio.Stdin)
	if err != nil {
		return fmt.Errorf("reading stdin: %w", err)
	}

	prog, err := tamarin.Compile("stdin", src)
	if err != nil {
		return err
	}

	if c.Disassemble {
		fmt.Fprint(stdio.Stdout, prog.Disassemble())
		return nil
	}

	m := tamarin.New()
	m.SetStdout(stdio.Stdout)
	result, err := m.Execute(prog)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdio.Stdout, "%v\n", result)
	return nil
}
