package inspect

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/lib/ddoc"
	"github.com/ValentinKolb/dDoc/lib/pkey"
	"github.com/spf13/cobra"
)

var (
	// EpkCmd computes the effective partition key of a key without contacting the account
	EpkCmd = &cobra.Command{
		Use:   "epk [partition-key]",
		Short: "Prints the effective partition key of a partition key given as JSON array",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParsePartitionKey(args[0])
			if err != nil {
				return err
			}
			if key == nil {
				return fmt.Errorf("partition key must not be empty")
			}

			paths, _ := cmd.Flags().GetString("paths")
			kind, _ := cmd.Flags().GetString("kind")
			version, _ := cmd.Flags().GetInt("version")
			def := &pkey.Definition{Paths: strings.Split(paths, ","), Kind: pkey.Kind(kind), Version: version}

			epk, err := pkey.EffectivePartitionKeyString(*key, def)
			if err != nil {
				return err
			}
			fmt.Println(epk)
			return nil
		},
	}

	// RangesCmd lists the partition key ranges of a collection
	RangesCmd = &cobra.Command{
		Use:   "ranges [collection]",
		Short: "Lists the partition key ranges of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := util.OpenClient(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			coll, err := client.Collection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			ranges, err := client.PartitionKeyRanges(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			paths := "<none>"
			if coll.PartitionKey != nil {
				paths = strings.Join(coll.PartitionKey.Paths, ",")
			}
			fmt.Printf("collection %s (rid %s, partition key %s)\n", args[0], coll.ResourceID, paths)
			for _, r := range ranges {
				fmt.Printf("  %-6s [%q, %q)  parents %v\n", r.ID, r.MinInclusive, r.MaxExclusive, r.Parents)
			}
			return nil
		},
	}

	// StatsCmd reads one feed page of a collection and prints the client metrics
	StatsCmd = &cobra.Command{
		Use:   "stats [collection]",
		Short: "Reads the first page of a collection and prints the client metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := util.OpenClient(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			pageSize, _ := cmd.Flags().GetInt("page-size")
			if _, err := client.QueryDocuments(cmd.Context(), args[0], "", ddoc.FeedOptions{MaxItemCount: pageSize}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			client.Stats().WritePrometheus(out)
			for _, t := range client.Stats().Timers() {
				fmt.Fprintf(out, "%-32s count=%d mean=%s p99=%s\n", t.Name, t.Count, t.Mean, t.P99)
			}
			if token := client.SessionToken(args[0]); token != "" {
				fmt.Fprintf(out, "session token: %s\n", token)
			}
			return nil
		},
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	EpkCmd.Flags().String("paths", "/id", util.WrapString("Comma-separated partition key paths of the collection"))
	EpkCmd.Flags().String("kind", string(pkey.KindHash), util.WrapString("Partitioning kind (Hash, Range)"))
	EpkCmd.Flags().Int("version", 1, util.WrapString("Version of the hash partitioning"))

	util.SetupClientFlags(RangesCmd)
	util.SetupClientFlags(StatsCmd)
	StatsCmd.Flags().Int("page-size", 10, util.WrapString("Maximum number of documents read"))
}
