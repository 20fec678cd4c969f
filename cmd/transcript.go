package cmd

import (
	"github.com/spf13/cobra"
)

func newTranscriptCmd() *cobra.Command {
	var languages []string
	cmd := &cobra.Command{
		Use:   "transcript <video id or url>",
		Short: "Prints a YouTube transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			out, err := appInstance.Gateway().Transcript(cmd.Context(), args[0], languages)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringSliceVar(&languages, "lang", nil, "preferred caption languages in order, e.g. en,de")
	return cmd
}
