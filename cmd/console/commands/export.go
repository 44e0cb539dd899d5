package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"admin-console/internal/config"
	"admin-console/internal/resources"
	"admin-console/internal/token_store"
)

func newExportCommand(configFile *string) *cobra.Command {
	var (
		token   string
		filters map[string]string
	)

	cmd := &cobra.Command{
		Use:   "export <resource>",
		Short: "Print every record of a resource as JSON",
		Long: `Walk every page of a backend collection with the given access token and
print the records as a JSON array. A page that fails ends the walk; the
records gathered so far are still printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()

			cfg, err := config.LoadConfig(*configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			client, err := newClient(cfg, logger)
			if err != nil {
				return err
			}
			set := resources.NewSet(client, nil, logger)

			ctx := context.Background()
			slots := token_store.NewSlots(token_store.NewMemoryStore(), uuid.NewString(), logger)
			if err := slots.SetAccessToken(ctx, token); err != nil {
				return err
			}

			params := url.Values{}
			for k, v := range filters {
				params.Set(k, v)
			}
			items, err := set.Export(ctx, slots, args[0], params)
			if err != nil {
				return fmt.Errorf("%w %q (one of %s)", err, args[0], strings.Join(set.Exportable(), ", "))
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "backend access token")
	cmd.Flags().StringToStringVarP(&filters, "filter", "f", nil, "list filter, e.g. -f status=active")
	return cmd
}
