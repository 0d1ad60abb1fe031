// upload a JSON product batch into a Shopify store
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopify-uploader/internal/app/usecases"

	"github.com/spf13/cobra"
)

const (
	exitOK          = 0
	exitFatal       = 1
	exitInterrupted = 130
)

type options struct {
	configPath        string
	stateDir          string
	logFile           string
	verbose           bool
	input             string
	output            string
	mode              string
	collectionsOutput string
	metricsFile       string
	skipCollections   bool
	delay             time.Duration

	rollbackCollections bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&options{})
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case usecases.IsInterrupted(err):
		return exitInterrupted
	}
	return exitFatal
}

func newRootCmd(o *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "upload-products",
		Short: "Upload a JSON product batch to Shopify",
		Long: `Uploads products from a JSON batch into a Shopify store through the Admin
GraphQL API. Department, category and subcategory collections are created
first; products are then uploaded one at a time with a checkpoint after each,
so an interrupted run resumes where it stopped.

Running without a subcommand is the same as "upload".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), cmd, o)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "config.json", "settings document (.json or .yaml)")
	pf.StringVar(&o.stateDir, "state-dir", "", "directory for checkpoint, registry and caches")
	pf.StringVar(&o.logFile, "log", "", "also write logs to this file")
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")

	addUploadFlags(root, o)

	upload := &cobra.Command{
		Use:   "upload",
		Short: "Upload products (resume or overwrite)",
		Example: `  upload-products upload --input products.json --output processed.json
  upload-products upload --input products.json --output processed.json --mode overwrite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), cmd, o)
		},
	}
	addUploadFlags(upload, o)

	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Delete every product recorded by earlier uploads",
		Long: `Deletes the products listed in the restore snapshot and checkpoint, then
clears both. With --collections the collections in the registry are deleted
too and the registry is emptied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback(cmd.Context(), o)
		},
	}
	rollback.Flags().BoolVar(&o.rollbackCollections, "collections", false, "also delete registry collections")

	root.AddCommand(upload, rollback, newConfigCmd(o))
	return root
}

func addUploadFlags(cmd *cobra.Command, o *options) {
	f := cmd.Flags()
	f.StringVarP(&o.input, "input", "i", "", "input product batch (JSON)")
	f.StringVarP(&o.output, "output", "o", "", "output document path")
	f.StringVar(&o.mode, "mode", "", "resume or overwrite (default resume)")
	f.StringVar(&o.collectionsOutput, "collections-output", "", "write the collection registry to this file")
	f.StringVar(&o.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	f.BoolVar(&o.skipCollections, "skip-collections", false, "do not create collections")
	f.DurationVar(&o.delay, "delay", 0, "pause between products (default 500ms)")
}
