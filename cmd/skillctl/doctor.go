package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/skillctl/skillctl/pkg/presenter"
	"github.com/skillctl/skillctl/pkg/provider"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that provider CLIs and git tooling are installed",
	Long: `Check every known provider CLI plus git and gh for availability on PATH
and report everything that is missing. Missing providers are not fatal for
commands that do not use them.`,
	Run: func(cmd *cobra.Command, _ []string) {
		var result *multierror.Error

		presenter.Section("Provider CLIs")
		for _, name := range provider.Names() {
			p, err := newProvider(name)
			if err != nil {
				result = multierror.Append(result, err)
				continue
			}
			if err := p.Available(); err != nil {
				presenter.Warning(fmt.Sprintf("%-10s missing", name))
				result = multierror.Append(result, err)
				continue
			}
			presenter.Success(fmt.Sprintf("%-10s ok", name))
		}

		presenter.Section("Git Tooling")
		for _, bin := range []string{"git", "gh"} {
			if _, err := exec.LookPath(bin); err != nil {
				presenter.Warning(fmt.Sprintf("%-10s missing", bin))
				result = multierror.Append(result, errors.Errorf("%s not found on PATH", bin))
				continue
			}
			presenter.Success(fmt.Sprintf("%-10s ok", bin))
		}

		if err := result.ErrorOrNil(); err != nil {
			presenter.Separator()
			presenter.Error(err, "Some tools are missing")
			os.Exit(1)
		}

		presenter.Separator()
		presenter.Success("All tools are available")
	},
}
