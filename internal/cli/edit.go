package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formstate/pkg/renderers/tui"
)

// NewEditCommand creates the interactive edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		format   string
		sanitize bool
	)

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit rows interactively and print the submitted payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch tui.OutputFormat(format) {
			case tui.OutputFormatJSON, tui.OutputFormatFormURLEncoded, tui.OutputFormatPrettyText:
			default:
				return fmt.Errorf("invalid format %q: must be one of json, form, pretty", format)
			}

			s, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}

			driver := rootOpts.Driver
			if driver == nil {
				driver = tui.NewSurveyDriver(cmd.ErrOrStderr())
			}
			options := []tui.Option{
				tui.WithPromptDriver(driver),
				tui.WithOutputFormat(tui.OutputFormat(format)),
				tui.WithTheme(tui.Theme{ErrorPrefix: "✗ "}),
			}
			if sanitize {
				options = append(options, tui.WithSubmitTransformer(sanitizeSubmit))
			}

			session, err := tui.New(s.engine, options...)
			if err != nil {
				return err
			}
			out, err := session.Run(cmd.Context())
			if err != nil {
				return err
			}
			if out == nil {
				s.log.Debug().Msg("edit session closed without submit")
				return nil
			}
			s.log.Debug().Str("content_type", session.ContentType()).Int("bytes", len(out)).Msg("payload submitted")
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", string(tui.OutputFormatJSON), "submit output format (json|form|pretty)")
	cmd.Flags().BoolVar(&sanitize, "sanitize", true, "strip markup from submitted strings")

	return cmd
}
