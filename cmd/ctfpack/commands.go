package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/ctfpack/ctfpack/internal/assets"
	"github.com/ctfpack/ctfpack/internal/challenge"
	"github.com/ctfpack/ctfpack/internal/config"
)

const jsonFlagDescription = "output json"

var errHelp = errors.New("help requested")

type commonFlags struct {
	projectDir string
	jsonOutput bool
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string, usage func(), help *bool) error {
	fs.Usage = usage
	if err := fs.Parse(args); err != nil {
		usage()
		return err
	}
	if help != nil && *help {
		usage()
		return errHelp
	}
	return nil
}

type artifactResult struct {
	Name      string    `json:"name"`
	SizeBytes int64     `json:"size_bytes"`
	Sha256    string    `json:"sha256,omitempty"`
	MTime     time.Time `json:"mtime"`
}

type packResult struct {
	Challenge string           `json:"challenge"`
	Path      string           `json:"path"`
	Artifacts []artifactResult `json:"artifacts"`
}

func runPack(ctx context.Context, args []string, base commonFlags) error {
	fs := newFlagSet("pack")
	var dryRun bool
	var help bool
	fs.BoolVar(&dryRun, "dry-run", false, "build transactions without committing")
	fs.BoolVar(&help, "help", false, "show help")
	fs.BoolVar(&help, "h", false, "show help")
	if err := parseFlags(fs, args, printPackUsage, &help); err != nil {
		return err
	}

	proj, err := config.LoadProject(base.projectDir)
	if err != nil {
		return err
	}
	store, err := assets.Open(proj.AssetDir)
	if err != nil {
		return err
	}
	defer store.Close()

	loader := challenge.NewLoader(storeFactory(store), proj.Defaults, proj.Root)

	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs, err = config.DiscoverChallenges(proj.Root, proj.AssetDir)
		if err != nil {
			return err
		}
		if len(dirs) == 0 {
			return fmt.Errorf("no challenges found under %s", proj.Root)
		}
	}

	var results []packResult
	for _, dir := range dirs {
		chal, err := loader.Load(dir)
		if err != nil {
			return err
		}
		tx, err := chal.CreateTransaction()
		if err != nil {
			return fmt.Errorf("challenge %s: %w", chal.Config.ID, err)
		}
		if !dryRun {
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("challenge %s: %w", chal.Config.ID, err)
			}
		}
		result := packResult{Challenge: chal.Config.ID, Path: chal.RelativePath()}
		if stx, ok := tx.(*assets.Transaction); ok {
			for _, art := range stx.Artifacts() {
				result.Artifacts = append(result.Artifacts, artifactResult{
					Name:      art.Name,
					SizeBytes: art.SizeBytes,
					Sha256:    art.Sha256,
					MTime:     art.MTime,
				})
			}
		}
		results = append(results, result)
	}
	if dryRun {
		log.Printf("ctfpack: dry run, nothing committed")
	}

	if base.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHALLENGE\tARTIFACT\tSIZE\tSHA256")
	total := 0
	for _, result := range results {
		for _, art := range result.Artifacts {
			sha := art.Sha256
			if len(sha) > 12 {
				sha = sha[:12]
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", result.Challenge, art.Name, art.SizeBytes, sha)
			total++
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("packed %d challenges (%d artifacts)\n", len(results), total)
	}
	return nil
}

func runDescribe(ctx context.Context, args []string, base commonFlags) error {
	fs := newFlagSet("describe")
	var help bool
	fs.BoolVar(&help, "help", false, "show help")
	fs.BoolVar(&help, "h", false, "show help")
	if err := parseFlags(fs, args, printDescribeUsage, &help); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		printDescribeUsage()
		return fmt.Errorf("describe takes exactly one challenge dir")
	}

	proj, err := config.LoadProject(base.projectDir)
	if err != nil {
		return err
	}
	store, err := assets.Open(proj.AssetDir)
	if err != nil {
		return err
	}
	defer store.Close()

	loader := challenge.NewLoader(storeFactory(store), proj.Defaults, proj.Root)
	chal, err := loader.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	description, err := chal.RenderDescription()
	if err != nil {
		return fmt.Errorf("challenge %s: %w", chal.Config.ID, err)
	}
	if base.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		return enc.Encode(map[string]string{"challenge": chal.Config.ID, "description": description})
	}
	fmt.Println(description)
	return nil
}

// storeFactory adapts the asset store to the loader's transaction factory.
func storeFactory(store *assets.Manager) challenge.TransactionFactory {
	return func(challengeID string) (challenge.Transaction, error) {
		scope, err := store.Context(challengeID)
		if err != nil {
			return nil, err
		}
		return scope.Transaction(), nil
	}
}
