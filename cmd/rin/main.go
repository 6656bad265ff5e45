// Package main is the rin command line.
//
// Usage:
//
//	rin run                  - Start the observation daemon
//	rin run --script day.yaml - Replay a scripted day through the pipeline
//	rin check --app code --title "main.go - Visual Studio Code"
//	rin kb add|list|forget   - Manage learned knowledge
//	rin episodes             - Show archived episodes
//	rin stats                - Show storage statistics
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Atharva-Kanherkar/rin/internal/config"
	"github.com/Atharva-Kanherkar/rin/internal/gate"
	"github.com/Atharva-Kanherkar/rin/internal/knowledge"
	"github.com/Atharva-Kanherkar/rin/internal/logging"
	"github.com/Atharva-Kanherkar/rin/internal/storage"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rin",
	Short: "rin - a desktop companion that knows when to stay quiet",
	Long: `rin watches the focused window, screen changes, ambient audio and
input activity, groups ticks into episodes, and consults its knowledge
tiers before deciding whether an AI call is worth making.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if configPath != "" {
			cfg, err = config.LoadFile(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/rin/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens the sqlite store under the configured storage path.
func openStore() (*storage.Store, error) {
	if err := cfg.EnsureStorageDir(); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return storage.Open(cfg.StoragePath, logger)
}

// loadBaseline loads the configured baseline document, or the embedded one.
func loadBaseline() (*knowledge.Baseline, error) {
	return knowledge.LoadBaseline(cfg.Knowledge.BaselinePath, logger)
}

// buildGate wires the knowledge chain: user, shared, then baseline.
func buildGate(store *storage.Store, baseline *knowledge.Baseline) *gate.Gate {
	resolver := knowledge.NewResolver(logger,
		store.Tier(knowledge.SourceUser),
		store.Tier(knowledge.SourceShared),
		baseline)
	return gate.New(resolver, baseline,
		gate.WithCache(store),
		gate.WithCapabilities(baseline),
		gate.WithLogger(logger))
}
