package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"marketsync/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent synchronization runs",
	Long:  "List recent synchronization runs from the run history database, newest first.",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rs, err := store.NewRunStore(cfg.Storage.RunsDBPath)
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer rs.Close()

	runs, err := rs.ListRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, r := range runs {
		fmt.Printf("%s  %s  tickers=%d downloaded=%d updated=%d up_to_date=%d no_new_data=%d failed=%d\n",
			r.StartedAt.Format(time.RFC3339), shortID(r.ID),
			r.Tickers, r.Downloaded, r.Updated, r.UpToDate, r.NoNewData, r.Failed)
		if r.Failed > 0 && len(r.FailedSymbols) > 0 {
			fmt.Printf("    failed: %s\n", strings.Join(r.FailedSymbols, ", "))
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
