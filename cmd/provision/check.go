package main

import (
	"errors"
	"fmt"

	"github.com/ruffel/provision"
	"github.com/ruffel/provision/config"
	"github.com/ruffel/provision/providers/local"
	"github.com/spf13/cobra"
)

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configured remote-shell tool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, err := a.loadProjects()
			if err != nil {
				return err
			}

			return a.check(cmd, file)
		},
	}
}

func (a *app) check(cmd *cobra.Command, file *config.File) error {
	settings := a.settings(file)
	out := cmd.OutOrStdout()

	if err := settings.Validate(provision.Build); err != nil {
		_, _ = fmt.Fprintln(out, errorStyle.Render(errorPrefix+err.Error()))

		return err
	}

	banner, err := local.ToolVersion(cmd.Context(), settings.ShellPath, local.WithLogger(a.logger))
	if err != nil {
		_, _ = fmt.Fprintln(out, errorStyle.Render(errorPrefix+err.Error()))

		return err
	}

	if banner == "" {
		return errors.New("remote-shell tool printed no version")
	}

	_, _ = fmt.Fprintln(out, infoStyle.Render("remote shell: "+settings.ShellPath))
	_, _ = fmt.Fprintln(out, checkStyle.Render("✅ "+banner))

	return nil
}
