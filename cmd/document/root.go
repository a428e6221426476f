package document

import (
	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/lib/ddoc"
	"github.com/spf13/cobra"
)

var (
	client *ddoc.Client

	// DocumentCommands represents the document command group
	DocumentCommands = &cobra.Command{
		Use:                "doc",
		Short:              "Read, write and query documents",
		PersistentPreRunE:  setupClient,
		PersistentPostRunE: closeClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common client flags to the document commands
	util.SetupClientFlags(DocumentCommands)

	DocumentCommands.PersistentFlags().StringP("collection", "c", "", util.WrapString("Name based link of the collection (e.g. dbs/shop/colls/orders)"))
	DocumentCommands.PersistentFlags().StringP("partition-key", "p", "", util.WrapString("Partition key as JSON array (e.g. '[\"acme\"]'), extracted from the document for writes if empty"))
	_ = DocumentCommands.MarkPersistentFlagRequired("collection")

	// Add subcommands
	DocumentCommands.AddCommand(getCmd)
	DocumentCommands.AddCommand(putCmd)
	DocumentCommands.AddCommand(delCmd)
	DocumentCommands.AddCommand(queryCmd)
}

// setupClient opens the dDoc client used by the subcommands
func setupClient(cmd *cobra.Command, _ []string) (err error) {
	client, err = util.OpenClient(cmd.Context(), cmd)
	return err
}

func closeClient(_ *cobra.Command, _ []string) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
