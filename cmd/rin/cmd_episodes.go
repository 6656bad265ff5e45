package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	episodesLimit int
	pruneOlder    time.Duration
)

var episodesCmd = &cobra.Command{
	Use:   "episodes",
	Short: "Show recently archived episodes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if cmd.Flags().Changed("prune") {
			n, err := store.PruneEpisodes(cmd.Context(), pruneOlder)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d episodes\n", n)
			return nil
		}

		records, err := store.RecentEpisodes(cmd.Context(), episodesLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTART\tMIN\tOBS\tAPP\tACTIVITY\tPLATFORM\tFLAGS")
		for _, r := range records {
			flags := ""
			if r.Focused {
				flags += "F"
			}
			if r.Passive {
				flags += "P"
			}
			if r.Keyboard {
				flags += "K"
			}
			if r.Mouse {
				flags += "M"
			}
			fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%s\t%s\t%s\t%s\n",
				r.ID, r.StartTime.Local().Format("2006-01-02 15:04:05"), r.Duration.Minutes(),
				r.ObservationCount, r.App, r.Activity, r.Platform, flags)
		}
		return w.Flush()
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	episodesCmd.Flags().IntVarP(&episodesLimit, "limit", "n", 20, "number of episodes to show")
	episodesCmd.Flags().DurationVar(&pruneOlder, "prune", 0, "delete episodes that ended longer ago than this instead of listing")
	rootCmd.AddCommand(episodesCmd, statsCmd)
}
