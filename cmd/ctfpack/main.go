package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/ctfpack/ctfpack/internal/buildinfo"
)

const usageText = `ctfpack packages challenge assets into deterministic artifacts.

Usage:
  ctfpack --version
  ctfpack [--project DIR] [--json] pack [--dry-run] [dir ...]
  ctfpack [--project DIR] [--json] describe <dir>

Global Flags:
  --project DIR   Project root containing ctfpack.yaml (default .)
  --json          Output json
`

type globalOptions struct {
	projectDir  string
	jsonOutput  bool
	showVersion bool
}

func main() {
	opts, args, err := parseGlobal(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	}
	if opts.showVersion {
		fmt.Println(buildinfo.String())
		return
	}
	if len(args) == 0 || isHelpToken(args[0]) {
		printUsage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	base := commonFlags{projectDir: opts.projectDir, jsonOutput: opts.jsonOutput}
	if err := dispatch(ctx, args, base); err != nil {
		if errors.Is(err, errHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseGlobal(args []string) (globalOptions, []string, error) {
	opts := globalOptions{projectDir: "."}
	fs := flag.NewFlagSet("ctfpack", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.projectDir, "project", ".", "project root containing ctfpack.yaml")
	fs.BoolVar(&opts.jsonOutput, "json", false, jsonFlagDescription)
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	if opts.projectDir == "" {
		opts.projectDir = "."
	}
	return opts, fs.Args(), nil
}

func dispatch(ctx context.Context, args []string, base commonFlags) error {
	switch args[0] {
	case "pack":
		return runPack(ctx, args[1:], base)
	case "describe":
		return runDescribe(ctx, args[1:], base)
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	_, _ = fmt.Fprint(os.Stdout, usageText)
}

func printPackUsage() {
	fmt.Fprintln(os.Stdout, "Usage: ctfpack pack [--dry-run] [dir ...]")
	fmt.Fprintln(os.Stdout, "Note: With no dirs, every challenge under the project root is packed.")
}

func printDescribeUsage() {
	fmt.Fprintln(os.Stdout, "Usage: ctfpack describe <dir>")
}

func isHelpToken(value string) bool {
	switch strings.TrimSpace(value) {
	case "help", "-h", "--help":
		return true
	default:
		return false
	}
}
