// Command vaultcheck loads a IIIF tree from JSON, normalizes it into a
// vault snapshot, evaluates the structural integrity rules and optionally
// verifies round-trip stability, persists the snapshot or archives an
// export to blob storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"iiifvault/internal/archive"
	"iiifvault/internal/blob"
	"iiifvault/internal/storage"
	"iiifvault/internal/vault"
	"iiifvault/pkg/iiif"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	input     string
	stats     bool
	roundTrip bool
	persist   bool
	export    bool
	verbose   bool
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vaultcheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.input, "input", "", "path to a IIIF tree JSON document (required)")
	fs.BoolVar(&opts.stats, "stats", false, "print per-type entity counts")
	fs.BoolVar(&opts.roundTrip, "roundtrip", false, "verify normalize/denormalize round-trip stability")
	fs.BoolVar(&opts.persist, "persist", false, "persist the snapshot to the store selected by IIIFVAULT_STORAGE_DRIVER")
	fs.BoolVar(&opts.export, "export", false, "archive an export to the blob store selected by IIIFVAULT_BLOB_DRIVER")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if opts.input == "" {
		fmt.Fprintln(stderr, "vaultcheck: -input is required")
		fs.Usage()
		return 2
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := run(context.Background(), opts, stdout, logger); err != nil {
		fmt.Fprintf(stderr, "vaultcheck: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, opts options, stdout io.Writer, logger *slog.Logger) error {
	raw, err := os.ReadFile(opts.input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	root, err := iiif.DecodeEntity(raw)
	if err != nil {
		return fmt.Errorf("decode tree: %w", err)
	}
	state, err := vault.Normalize(root)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	logger.Debug("tree normalized", "root", state.RootID(), "entities", state.Len())

	result, err := vault.DefaultRulesEngine().Evaluate(ctx, state)
	if err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	for _, v := range result.Violations {
		fmt.Fprintf(stdout, "%s %s: %s\n", v.Severity, v.Rule, v.Message)
	}
	if result.HasBlocking() {
		blocking := 0
		for _, v := range result.Violations {
			if v.Severity == vault.SeverityBlock {
				blocking++
			}
		}
		return fmt.Errorf("%d blocking integrity violations", blocking)
	}
	fmt.Fprintf(stdout, "ok: %d entities, root %s\n", state.Len(), state.RootID())

	if opts.stats {
		printStats(stdout, state)
	}
	if opts.roundTrip {
		if err := verifyRoundTrip(state, root); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "round-trip stable")
	}
	if opts.persist {
		if err := persistSnapshot(ctx, state, logger); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "snapshot persisted")
	}
	if opts.export {
		info, err := exportArchive(ctx, state)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "archived %s (%d bytes)\n", info.Key, info.Size)
	}
	return nil
}

func printStats(stdout io.Writer, state *vault.State) {
	counts := state.CountByType()
	for _, t := range iiif.EntityTypes() {
		if n := counts[t]; n > 0 {
			fmt.Fprintf(stdout, "  %-14s %d\n", t, n)
		}
	}
}

// verifyRoundTrip re-serializes the denormalized snapshot and compares it
// with a fresh serialization of the decoded input.
func verifyRoundTrip(state *vault.State, root iiif.Entity) error {
	tree, err := vault.Denormalize(state)
	if err != nil {
		return fmt.Errorf("denormalize: %w", err)
	}
	got, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	want, err := json.Marshal(root)
	if err != nil {
		return err
	}
	if string(got) != string(want) {
		return fmt.Errorf("round trip altered the document")
	}
	return nil
}

func persistSnapshot(ctx context.Context, state *vault.State, logger *slog.Logger) error {
	store, err := storage.OpenSnapshotStore()
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Warn("close snapshot store", "error", cerr)
		}
	}()
	if err := store.Persist(ctx, vault.ExportSnapshot(state)); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func exportArchive(ctx context.Context, state *vault.State) (blob.Info, error) {
	store, err := blob.Open(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("open blob store: %w", err)
	}
	info, err := archive.NewExporter(store).Export(ctx, state)
	if err != nil {
		return blob.Info{}, fmt.Errorf("export archive: %w", err)
	}
	return info, nil
}
