// Command resarc packs, inspects and extracts resource archives.
//
// Usage:
//
//	resarc pack [-codec zstd|lz4|s2|none] [-prefix p] [-userdata n] -o out.arc dir
//	resarc ls [-prefix p] archive
//	resarc cat archive name
//	resarc extract [-C dir] [-j n] archive [names...]
//	resarc info archive
//
// An archive argument is a file path or an http(s) URL. URLs are read with
// range requests through an in-memory block cache. Read commands accept
// -codec to select the decompressor and -mmap to map local files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
)

const usage = `usage: resarc <command> [flags] [args]

commands:
  pack     build an archive from a directory
  ls       list entries
  cat      write one entry to stdout
  extract  write entries below a directory
  info     print header fields and digest

run "resarc <command> -h" for command flags`

type command struct {
	name string
	run  func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"pack", runPack},
	{"ls", runList},
	{"cat", runCat},
	{"extract", runExtract},
	{"info", runInfo},
}

// env carries the process streams so commands can be tested.
type env struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "resarc:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stderr, usage)
		return flag.ErrHelp
	}
	for _, c := range commands {
		if c.name == args[0] {
			e := &env{stdout: stdout, stderr: stderr}
			return c.run(ctx, e, args[1:])
		}
	}
	fmt.Fprintln(stderr, usage)
	return fmt.Errorf("unknown command %q", args[0])
}

// newFlagSet returns a FlagSet with the flags shared by every command.
func newFlagSet(e *env, name string, verbose *bool) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.BoolVar(verbose, "v", false, "enable debug logging")
	return fs
}

// setupLogger installs the text logger once flags are parsed.
func (e *env) setupLogger(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	e.logger = slog.New(slog.NewTextHandler(e.stderr, &slog.HandlerOptions{Level: level}))
}
