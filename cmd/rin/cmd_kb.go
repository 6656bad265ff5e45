package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Atharva-Kanherkar/rin/internal/knowledge"
)

var (
	kbTier          string
	kbApps          []string
	kbTitleContains string
	kbCategory      string
	kbBehavior      string
	kbDescription   string
	kbReaction      string
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage knowledge entries",
	Long: `Knowledge is resolved user first, then shared, then the read-only
baseline. Adding an entry that already exists (same tier, apps and title
pattern) reinforces it instead of duplicating it.`,
}

var kbAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Learn or reinforce an entry",
	Example: `  rin kb add --app obsidian --category writing --reaction "Journaling again?"
  rin kb add --tier shared --title-contains "pull request" --behavior light_touch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := knowledge.ParseSource(kbTier)
		if err != nil {
			return err
		}
		if len(kbApps) == 0 && kbTitleContains == "" {
			return fmt.Errorf("need --app or --title-contains")
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		e, err := store.Learn(cmd.Context(), tier, knowledge.Entry{
			Apps:          kbApps,
			TitleContains: kbTitleContains,
			Category:      kbCategory,
			Behavior:      kbBehavior,
			Description:   kbDescription,
			Reaction:      kbReaction,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tconfidence=%.1f\tevidence=%d\n",
			e.ID, e.Source, e.Confidence, e.EvidenceCount)
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries from every tier, or one with --tier",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tiers := []knowledge.Source{knowledge.SourceUser, knowledge.SourceShared, knowledge.SourceBaseline}
		if cmd.Flags().Changed("tier") {
			t, err := knowledge.ParseSource(kbTier)
			if err != nil {
				return err
			}
			tiers = []knowledge.Source{t}
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIER\tAPPS\tTITLE\tCATEGORY\tBEHAVIOR\tCONF")
		for _, tier := range tiers {
			var entries []knowledge.Entry
			if tier == knowledge.SourceBaseline {
				baseline, err := loadBaseline()
				if err != nil {
					return err
				}
				entries = baseline.Entries()
			} else if entries, err = store.Entries(cmd.Context(), tier); err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%.1f\n",
					e.ID, tier, strings.Join(e.Apps, ","), e.TitleContains, e.Category, e.Behavior, e.Confidence)
			}
		}
		return w.Flush()
	},
}

var kbForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a user or shared entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Forget(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("forget %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "forgot %s\n", args[0])
		return nil
	},
}

func init() {
	kbCmd.PersistentFlags().StringVar(&kbTier, "tier", string(knowledge.SourceUser), "knowledge tier: user, shared or baseline")

	kbAddCmd.Flags().StringSliceVar(&kbApps, "app", nil, "application name (repeatable)")
	kbAddCmd.Flags().StringVar(&kbTitleContains, "title-contains", "", "match titles containing this text")
	kbAddCmd.Flags().StringVar(&kbCategory, "category", "", "category label")
	kbAddCmd.Flags().StringVar(&kbBehavior, "behavior", "", "behavior policy name")
	kbAddCmd.Flags().StringVar(&kbDescription, "description", "", "free-form description")
	kbAddCmd.Flags().StringVar(&kbReaction, "reaction", "", "ready-made reaction text")

	kbCmd.AddCommand(kbAddCmd, kbListCmd, kbForgetCmd)
	rootCmd.AddCommand(kbCmd)
}
