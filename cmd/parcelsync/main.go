package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cogland/parcelsync/internal/config"
	"github.com/cogland/parcelsync/internal/database"
	"github.com/cogland/parcelsync/internal/feed"
	"github.com/cogland/parcelsync/internal/logger"
	"github.com/cogland/parcelsync/internal/portal"
	"github.com/cogland/parcelsync/internal/repository"
	"github.com/cogland/parcelsync/internal/services"
)

var (
	flagParcel   string
	flagEach     bool
	flagDiff     bool
	flagMunicode int
	flagCommit   bool
)

var rootCmd = &cobra.Command{
	Use:   "parcelsync",
	Short: "Property registry reconciliation engine",
	Long: `Parcelsync reconciles the municipal property registry against the
county's bulk assessment feed and real estate portal. It records an
append-only snapshot per parcel per run and emits events for detected
changes and disappearances.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one reconciliation pass",
	Long: `Run one reconciliation pass in exactly one mode:

  --parcel    reconcile a single parcel by id
  --each      reconcile every feed record per municipality
  --diff      classify parcels missing from the feed

Municipality modes cover every municipality unless --municode narrows
them to one. Runs are dry-run unless --commit is passed.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&flagParcel, "parcel", "", "reconcile this parcel id only")
	syncCmd.Flags().BoolVar(&flagEach, "each", false, "reconcile each parcel of the selected municipalities")
	syncCmd.Flags().BoolVar(&flagDiff, "diff", false, "classify parcels absent from the feed")
	syncCmd.Flags().IntVar(&flagMunicode, "municode", 0, "restrict municipality modes to one municipality")
	syncCmd.Flags().BoolVar(&flagCommit, "commit", false, "persist the run instead of rolling it back")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(cfg.Server.Env)

	db, err := database.NewPostgresPool(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	engine := services.NewEngine(
		repository.NewRegistryStore(db),
		feed.NewClient(cfg.Feed),
		portal.NewClient(cfg.Portal),
		portal.NewDirectory(cfg.Portal),
		log,
	)

	opts := services.RunOptions{
		ParcelID:   flagParcel,
		EachParcel: flagEach,
		Diff:       flagDiff,
		Commit:     flagCommit,
	}
	if flagMunicode != 0 {
		opts.Municode = &flagMunicode
	}

	summary, err := engine.Run(cmd.Context(), opts)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
