// Command marketdata is the operator-facing CLI for the retrieval engine:
// ad-hoc bar/funding backfills against the composed cache/Vision/REST
// pipeline, grounded on the teacher's cmd/cryptorun root command structure
// (cobra root + subcommands) but narrowed to this engine's two operations
// instead of the scanner's menu-driven surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sawpanic/marketdata/internal/log"
)

const appName = "marketdata"

func main() {
	log.Init()

	root := &cobra.Command{
		Use:   appName,
		Short: "Unified historical and recent market-data retrieval engine",
		Long: `marketdata composes a local cache, the Binance Vision bulk archive, and
venue REST APIs behind one failover/composition protocol to serve OHLCV bars
and funding-rate history for Binance and OKX.`,
	}

	root.AddCommand(newFetchBarsCmd())
	root.AddCommand(newFetchFundingCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
