package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dDoc/cmd/document"
	"github.com/ValentinKolb/dDoc/cmd/inspect"
	"github.com/ValentinKolb/dDoc/cmd/serve"
	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "ddoc",
		Short: "client of a partitioned, replicated document database",
		Long: fmt.Sprintf(`dDoc (v%s)

The data plane of a partitioned, replicated document database client
written in Go: requests are routed by partition key to replica sets and
served with quorum reads, session consistency and automatic retries
across splits, failovers and throttling.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dDoc",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dDoc v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(document.DocumentCommands)
	RootCmd.AddCommand(inspect.EpkCmd)
	RootCmd.AddCommand(inspect.RangesCmd)
	RootCmd.AddCommand(inspect.StatsCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer of replica messages (binary, json, gob, cbor)"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
