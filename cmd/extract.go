package cmd

import (
	"github.com/spf13/cobra"
)

func newExtractCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "extract <url> [url...]",
		Short: "Fetches pages and prints their extracted text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			gw := appInstance.Gateway()
			if len(args) == 1 {
				out, err := gw.Extract(cmd.Context(), args[0], mode)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			out, err := gw.ExtractBatch(cmd.Context(), args, mode)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "content", "content or meta")
	return cmd
}
