// Package root contains the root command for the application.
package root

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dlev/finsync/internal/config"
	"dlev/finsync/internal/ledger"
)

var (
	// Log is the shared logger instance for commands.
	Log = logrus.New()

	// Cfg is the loaded configuration, available after PersistentPreRunE.
	Cfg *config.Config

	// ConfigPath is the --config flag value.
	ConfigPath string

	// Cmd is the root command.
	Cmd = &cobra.Command{
		Use:   "finsync",
		Short: "Aggregate balances and transactions from financial institutions into a local ledger.",
		Long: `finsync pulls brokerage balances, pension balances and credit-card
transactions from configured institutions into a single local SQLite ledger,
deduplicating records across overlapping fetch windows, and offers querying,
categorization and reporting over that ledger.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(ConfigPath)
			if err != nil {
				return err
			}
			Cfg = cfg
			Log = config.ConfigureLogging(cfg)
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to finsync!")
			Log.Info("Use --help to see available commands")
		},
	}
)

// Init initializes the root command flags.
func Init() {
	Cmd.PersistentFlags().StringVarP(&ConfigPath, "config", "c", "", "Config file (default $HOME/.finsync/config.yaml)")
}

// OpenStore opens the configured ledger database, creating its directory if
// needed.
func OpenStore() (*ledger.Store, error) {
	if dir := filepath.Dir(Cfg.Database.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return ledger.Open(Cfg.Database.Path, Log)
}
