package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Atharva-Kanherkar/rin/internal/capture"
	"github.com/Atharva-Kanherkar/rin/internal/capture/live"
	"github.com/Atharva-Kanherkar/rin/internal/daemon"
	"github.com/Atharva-Kanherkar/rin/internal/notify"
	"github.com/Atharva-Kanherkar/rin/internal/platform"
)

var runScript string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the observation pipeline",
	Long: `Samples the desktop at the configured interval and runs every tick
through the signal extractor, episode aggregator and knowledge gate.
Closed episodes are archived by the batch loop. Ctrl+C flushes the active
episode and stops.

With --script the ticks come from a YAML replay file instead of the live
desktop, and the command exits when the script ends.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&runScript, "script", "", "replay ticks from a YAML script")
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	baseline, err := loadBaseline()
	if err != nil {
		return err
	}
	g := buildGate(store, baseline)

	opts := []daemon.Option{
		daemon.WithArchive(store),
		daemon.WithReactionStore(store),
		daemon.WithLogger(logger),
	}
	if cfg.Notify.Desktop {
		if d := notify.NewDesktop(cfg.Notify.Expire); d.Available() {
			opts = append(opts, daemon.WithNotifier(d))
		}
	}
	if cfg.Knowledge.Watch && cfg.Knowledge.BaselinePath != "" {
		opts = append(opts, daemon.WithBackground(baseline.Watch))
	}

	var src capture.Source
	if runScript != "" {
		script, err := capture.LoadScript(runScript)
		if err != nil {
			return err
		}
		src = script
	} else {
		plat := platform.Detect()
		ls := live.New(plat, live.Options{
			Interval:       cfg.Sampler.Interval,
			Screen:         cfg.Capture.Screen,
			Audio:          cfg.Capture.Audio,
			Mouse:          cfg.Capture.Mouse,
			Keyboard:       cfg.Capture.Keyboard,
			KeyboardDevice: cfg.Capture.KeyboardDevice,
			SampleRate:     cfg.Signal.SampleRate,
		}, logger)
		defer ls.Close()
		opts = append(opts, daemon.WithBackground(ls.Run))
		src = ls
	}
	if !src.Available() {
		return fmt.Errorf("capture source %s is not available on this system", src.Name())
	}

	m := daemon.NewManager(cfg, src, g, opts...)
	logger.Info("rin running", zap.String("source", src.Name()), zap.String("storage", cfg.StoragePath))

	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("session stats",
		zap.Any("gate", g.Stats()),
		zap.Any("pipeline", m.Counters()),
		zap.Any("episodes", m.Aggregator().Stats()))
	return nil
}
