package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Atharva-Kanherkar/rin/internal/episode"
	"github.com/Atharva-Kanherkar/rin/internal/gate"
	"github.com/Atharva-Kanherkar/rin/internal/signal"
)

var (
	checkApp        string
	checkTitle      string
	checkKeyboard   bool
	checkMouse      bool
	checkVisualDiff float64
	checkForce      bool
	checkTask       string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one observation through the extractor and knowledge gate",
	Long: `Extracts features for a single window title and asks the gate what it
would do, as if this were the first tick of a new episode. Nothing is
recorded.

Example:
  rin check --app Code.exe --title "main.go - rin - Visual Studio Code" --keyboard`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkApp, "app", "", "application name")
	checkCmd.Flags().StringVar(&checkTitle, "title", "", "window title")
	checkCmd.Flags().BoolVar(&checkKeyboard, "keyboard", false, "keyboard was active")
	checkCmd.Flags().BoolVar(&checkMouse, "mouse", false, "mouse was active")
	checkCmd.Flags().Float64Var(&checkVisualDiff, "visual-diff", 0, "percent of the screen that changed")
	checkCmd.Flags().BoolVar(&checkForce, "force", false, "force an AI call")
	checkCmd.Flags().StringVar(&checkTask, "task", "", "also report whether this task needs AI")
	rootCmd.AddCommand(checkCmd)
}

type checkOutput struct {
	Features struct {
		App      string              `json:"app"`
		Platform string              `json:"platform,omitempty"`
		Content  string              `json:"content,omitempty"`
		File     string              `json:"file,omitempty"`
		Project  string              `json:"project,omitempty"`
		Language string              `json:"language,omitempty"`
		Activity signal.ActivityType `json:"activity"`
		Passive  bool                `json:"passive"`
		Focused  bool                `json:"focused"`
	} `json:"features"`
	Gate       gate.Result `json:"gate"`
	TaskNeedAI *bool       `json:"task_requires_ai,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	if checkApp == "" && checkTitle == "" {
		return fmt.Errorf("need --app or --title")
	}

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

	f := signal.NewExtractor(cfg.Signal, signal.WithLogger(logger)).Extract(signal.Raw{
		Title:      checkTitle,
		AppName:    checkApp,
		VisualDiff: checkVisualDiff,
		Keyboard:   checkKeyboard,
		Mouse:      checkMouse,
	})

	// A scratch aggregator gives the gate a one-observation episode.
	agg := episode.NewAggregator(cfg.Episode, episode.WithLogger(logger))
	if _, err := agg.AddObservation(checkTitle, checkApp, f, nil, nil); err != nil {
		return fmt.Errorf("open scratch episode: %w", err)
	}

	var out checkOutput
	out.Features.App = f.Title.AppName
	out.Features.Platform = f.Title.Platform
	out.Features.Content = f.Title.ContentTitle
	out.Features.File = f.Title.FileName
	out.Features.Project = f.Title.ProjectName
	out.Features.Language, _ = signal.LanguageFor(f.Title.FileExtension)
	out.Features.Activity = f.Activity
	out.Features.Passive = f.IsPassive
	out.Features.Focused = f.IsFocused
	out.Gate = g.Check(cmd.Context(), checkTitle, checkApp, f, agg.Current(), checkForce)
	if checkTask != "" {
		need := g.ShouldCallAIForTask(checkTask)
		out.TaskNeedAI = &need
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
