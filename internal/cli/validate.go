package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formstate/pkg/form"
)

// NewValidateCommand creates the validate command. It runs a submit pass and
// prints the resulting report; ErrInvalid is returned when errors remain.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Run a submit pass and print the error report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			valid, err := s.engine.Submit(cmd.Context(), nil)
			if err != nil {
				return err
			}

			out, err := form.MarshalReport(s.engine.Report())
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(out)); err != nil {
				return err
			}
			if !valid {
				s.log.Debug().Int("errors", s.engine.Errors().Len()).Msg("validation failed")
				return ErrInvalid
			}
			return nil
		},
	}
}
