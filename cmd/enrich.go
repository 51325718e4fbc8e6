package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/client-enricher/internal/model"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a single client and print its profile",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		format, _ := cmd.Flags().GetString("output")
		force, _ := cmd.Flags().GetBool("force")
		client := clientFromFlags(cmd)

		// Fail fast on bad flags before opening the store.
		if err := client.Validate(); err != nil {
			return err
		}
		if err := checkFormat(format); err != nil {
			return err
		}

		env, err := initApp(ctx, "enrich")
		if err != nil {
			return err
		}
		defer env.Close()

		data, sess, err := env.Service.Enrich(ctx, client, force)
		if err != nil {
			if sess != nil {
				cmd.PrintErrf("session %s: %s\n", sess.ID, sess.Status)
			}
			return err
		}

		return writeOutput(os.Stdout, format, enrichResult{SessionID: sess.ID, ClientID: client.ID, Data: data})
	},
}

type enrichResult struct {
	SessionID string              `json:"sessionId" yaml:"sessionId"`
	ClientID  string              `json:"clientId" yaml:"clientId"`
	Data      *model.EnrichedData `json:"enrichedData" yaml:"enrichedData"`
}

func clientFromFlags(cmd *cobra.Command) model.ClientInput {
	id, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	website, _ := cmd.Flags().GetString("website")
	industry, _ := cmd.Flags().GetString("industry")
	return model.ClientInput{ID: id, Name: name, Website: website, Industry: industry}
}

func checkFormat(format string) error {
	switch format {
	case "", "json", "yaml":
		return nil
	}
	return &model.ValidationError{Field: "output", Reason: "must be json or yaml"}
}

func init() {
	f := enrichCmd.Flags()
	f.String("id", "", "client id (required)")
	f.String("name", "", "company name (required)")
	f.String("website", "", "company website URL (required)")
	f.String("industry", "", "industry")
	f.Bool("force", false, "run even if an enrichment is in progress and bypass content caches")
	f.StringP("output", "o", "json", "output format: json or yaml")
	_ = enrichCmd.MarkFlagRequired("id")
	_ = enrichCmd.MarkFlagRequired("name")
	_ = enrichCmd.MarkFlagRequired("website")
	rootCmd.AddCommand(enrichCmd)
}
