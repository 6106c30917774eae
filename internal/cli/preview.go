package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Print the ordered rows as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			out, err := s.engine.JSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
