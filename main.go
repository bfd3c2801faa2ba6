package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mindcare-chatbot-backend/catalog"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mindcare",
		Short:         "MindCare mental health chatbot backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP, WebSocket and WhatsApp webhook server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServer()
			},
		},
		newCatalogCmd(),
	)
	return root
}

func newCatalogCmd() *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the disease catalog",
	}

	catalogCmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate a catalog document and list its diseases",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "data/diseases.yaml"
			if len(args) == 1 {
				path = args[0]
			} else if env := os.Getenv("CATALOG_PATH"); env != "" {
				path = env
			}

			idx, shape, err := catalog.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d diseases (%s layout)\n", path, idx.Len(), shape)
			for _, rec := range idx.Records() {
				fmt.Fprintf(out, "  %-30s %2d medicines  %2d doctors\n", rec.Name, len(rec.Medicines), len(rec.Doctors))
			}
			return nil
		},
	})
	return catalogCmd
}
