package document

import (
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/dDoc/cmd/util"
	"github.com/ValentinKolb/dDoc/lib/ddoc"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Reads a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := requestOptions()
			if err != nil {
				return err
			}
			resp, err := client.ReadDocument(cmd.Context(), viper.GetString("collection"), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Println(string(resp.Body))
			printCharge(cmd, resp.RequestCharge())
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [document]",
		Short: "Creates or replaces a document, read from stdin if the argument is '-'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := []byte(args[0])
			if args[0] == "-" {
				var err error
				if doc, err = io.ReadAll(os.Stdin); err != nil {
					return fmt.Errorf("failed to read document: %w", err)
				}
			}
			opts, err := requestOptions()
			if err != nil {
				return err
			}

			collection := viper.GetString("collection")
			var resp *resource.StoreResponse
			if create, _ := cmd.Flags().GetBool("create"); create {
				resp, err = client.CreateDocument(cmd.Context(), collection, doc, opts)
			} else {
				resp, err = client.UpsertDocument(cmd.Context(), collection, doc, opts)
			}
			if err != nil {
				return err
			}
			fmt.Println("put successfully")
			printCharge(cmd, resp.RequestCharge())
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [id]",
		Short: "Deletes a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := requestOptions()
			if err != nil {
				return err
			}
			resp, err := client.DeleteDocument(cmd.Context(), viper.GetString("collection"), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Println("deleted successfully")
			printCharge(cmd, resp.RequestCharge())
			return nil
		},
	}
	queryCmd = &cobra.Command{
		Use:   "query [query]",
		Short: "Reads the documents of a collection, all partitions if no partition key is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			key, err := util.ParsePartitionKey(viper.GetString("partition-key"))
			if err != nil {
				return err
			}
			pageSize, _ := cmd.Flags().GetInt("page-size")
			continuation, _ := cmd.Flags().GetString("continuation")
			opts := ddoc.FeedOptions{MaxItemCount: pageSize, Continuation: continuation, PartitionKey: key}

			if all, _ := cmd.Flags().GetBool("all"); all {
				docs, charge, err := client.QueryAllDocuments(cmd.Context(), viper.GetString("collection"), query, opts)
				if err != nil {
					return err
				}
				for _, d := range docs {
					fmt.Println(string(d))
				}
				printCharge(cmd, charge)
				return nil
			}

			page, err := client.QueryDocuments(cmd.Context(), viper.GetString("collection"), query, opts)
			if err != nil {
				return err
			}
			for _, d := range page.Documents {
				fmt.Println(string(d))
			}
			if page.Continuation != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "continuation: %s\n", page.Continuation)
			}
			printCharge(cmd, page.RequestCharge)
			return nil
		},
	}
)

func init() {
	putCmd.Flags().Bool("create", false, util.WrapString("Fail with a conflict if the document exists instead of replacing it"))

	queryCmd.Flags().Int("page-size", 0, util.WrapString("Maximum number of documents per page, 0 lets the replica decide"))
	queryCmd.Flags().String("continuation", "", util.WrapString("Continuation token of the previous page"))
	queryCmd.Flags().Bool("all", false, util.WrapString("Read all pages instead of one"))
}

func requestOptions() (*ddoc.RequestOptions, error) {
	key, err := util.ParsePartitionKey(viper.GetString("partition-key"))
	if err != nil {
		return nil, err
	}
	return &ddoc.RequestOptions{PartitionKey: key}, nil
}

func printCharge(cmd *cobra.Command, charge float64) {
	fmt.Fprintf(cmd.ErrOrStderr(), "request charge: %.2f RU\n", charge)
}
