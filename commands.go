package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"namewatch/bot"
	"namewatch/config"
	"namewatch/handlers"
	"namewatch/model"
	"namewatch/policy"
	"namewatch/utils/database"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "namewatch",
	Short:        "Keeps member usernames in a Discord guild within policy",
	SilenceUsage: true,
	RunE:         runBot,
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and start enforcing (default)",
		RunE:  runBot,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "classify <username>...",
		Short: "Classify usernames against the stored word lists",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and seed the configured word lists",
		RunE:  runMigrate,
	})
}

// openStore connects to the configured database, creating the sqlite directory when needed.
func openStore(cfg *model.Config) (*database.Store, error) {
	if cfg.Database.Driver == database.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := database.Init(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	return database.NewStore(db), nil
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	b, err := bot.New(cfg, store)
	if err != nil {
		store.Close()
		return fmt.Errorf("creating bot: %w", err)
	}
	defer b.Close()

	handlers.Register(b)
	return b.Run()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := bot.SeedWords(cmd.Context(), store, cfg.Guard); err != nil {
		return err
	}
	words, err := store.ListWords(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema ready, %d forbidden words stored\n", len(words))
	return nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cls := policy.NewClassifier(policy.LoaderFunc(store.ListWords))
	out := cmd.OutOrStdout()
	for _, name := range args {
		verdict, err := cls.Classify(cmd.Context(), name)
		if errors.Is(err, policy.ErrListsUnavailable) {
			return fmt.Errorf("%w (run `namewatch migrate` to seed them)", err)
		}
		if err != nil {
			return err
		}
		switch {
		case verdict.Escalate:
			fmt.Fprintf(out, "%s\tescalate\t%s\n", name, verdict.Word)
		case verdict.ShouldAct:
			fmt.Fprintf(out, "%s\tstandard\t%s\n", name, verdict.Word)
		default:
			fmt.Fprintf(out, "%s\tclean\n", name)
		}
	}
	return nil
}
