package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"marketsync/internal/dataset"
)

var (
	showRaw  bool
	showTail int
)

var showCmd = &cobra.Command{
	Use:   "show TICKER",
	Short: "Print a ticker's stored bar history",
	Long: `Print the locally stored daily bars for a ticker.

By default prices and volumes are split-adjusted using the stored split
history, so the series is continuous across splits. The files on disk
always stay raw.

Examples:
  marketsync show AAPL
  marketsync show AAPL --raw
  marketsync show AAPL --tail 10`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print raw prices without split adjustment")
	showCmd.Flags().IntVar(&showTail, "tail", 0, "print only the last N bars")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	l := dataset.NewLoader(cfg.Storage.BarsDir, cfg.Storage.SplitsDir)
	bars, err := l.LoadBars(args[0], !showRaw)
	if err != nil {
		return err
	}

	if showTail > 0 && showTail < len(bars) {
		bars = bars[len(bars)-showTail:]
	}

	fmt.Printf("%-12s %10s %10s %10s %10s %12s\n", "Date", "Open", "High", "Low", "Close", "Volume")
	for _, b := range bars {
		fmt.Printf("%-12s %10.2f %10.2f %10.2f %10.2f %12d\n",
			b.Date.Format("2006-01-02"), b.Open, b.High, b.Low, b.Close, b.Volume)
	}
	fmt.Printf("\n%d bars\n", len(bars))
	return nil
}
