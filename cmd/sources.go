package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

var (
	sourcesEntity      string
	sourcesService     string
	sourcesIntegration string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage linked financial sources",
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sources linked to an entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		sources, err := e.store.ListSources(cmd.Context(), sourcesEntity)
		if err != nil {
			return err
		}
		if len(sources) == 0 {
			fmt.Printf("No sources linked for entity %q\n", sourcesEntity)
			return nil
		}

		for _, s := range sources {
			state := "disconnected"
			if s.Connected {
				state = "connected"
			}
			fmt.Printf("%-12s %-24s %s\n", s.ServiceType, s.IntegrationID, state)
		}
		return nil
	},
}

var sourcesLinkCmd = &cobra.Command{
	Use:   "link [key=value ...]",
	Short: "Link a source, with credentials as key=value pairs",
	Example: `  chittyfinance sources link --service stripe --integration acct_123 api_key=sk_live_x
  chittyfinance sources link --service gusto --integration co_9 access_token=t company_id=co_9`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sourcesService == "" || sourcesIntegration == "" {
			return eris.New("--service and --integration are required")
		}

		creds := make(map[string]string, len(args))
		for _, arg := range args {
			k, v, ok := strings.Cut(arg, "=")
			if !ok || k == "" {
				return eris.Errorf("credential %q is not key=value", arg)
			}
			creds[k] = v
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		src := model.Source{
			ServiceType:   model.ServiceType(sourcesService),
			IntegrationID: sourcesIntegration,
			Connected:     true,
			Credentials:   creds,
		}
		if err := e.store.UpsertSource(cmd.Context(), sourcesEntity, src); err != nil {
			return err
		}

		fmt.Printf("Linked %s for entity %q\n", src.Key(), sourcesEntity)
		return nil
	},
}

var sourcesUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Remove a linked source",
	RunE: func(cmd *cobra.Command, args []string) error {
		if sourcesService == "" || sourcesIntegration == "" {
			return eris.New("--service and --integration are required")
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.store.DeleteSource(cmd.Context(), sourcesEntity, sourcesService, sourcesIntegration); err != nil {
			return err
		}

		fmt.Printf("Unlinked %s:%s for entity %q\n", sourcesService, sourcesIntegration, sourcesEntity)
		return nil
	},
}

func init() {
	sourcesCmd.PersistentFlags().StringVar(&sourcesEntity, "entity", "default", "entity the sources belong to")
	sourcesCmd.PersistentFlags().StringVar(&sourcesService, "service", "", "service type (stripe, plaid, mercury, quickbooks, xero, brex, gusto)")
	sourcesCmd.PersistentFlags().StringVar(&sourcesIntegration, "integration", "", "provider-side integration id")

	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesLinkCmd)
	sourcesCmd.AddCommand(sourcesUnlinkCmd)
	rootCmd.AddCommand(sourcesCmd)
}
