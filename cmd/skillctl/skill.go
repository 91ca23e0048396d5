package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/skillctl/skillctl/pkg/fragments"
	"github.com/skillctl/skillctl/pkg/presenter"
	"github.com/skillctl/skillctl/pkg/provider"
	"github.com/skillctl/skillctl/pkg/skills"
)

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Discover and run agent skills",
	Long: `Skills are directories containing a SKILL.md file: YAML frontmatter naming
and describing the skill, followed by a prompt template. Skills are discovered
from ./.skillctl/skills and ~/.skillctl/skills; vendored packs under a packs/
directory are namespaced as vendor/pack/skill.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// allowedSkills discovers skills and applies the skills.allowlist config
// key. An empty allowlist permits everything.
func allowedSkills() (map[string]*skills.Skill, error) {
	discovery, err := skills.NewDiscovery()
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize skill discovery")
	}
	found, err := discovery.DiscoverSkills()
	if err != nil {
		return nil, err
	}
	return skills.FilterByAllowlist(found, viper.GetStringSlice("skills.allowlist")), nil
}

func lookupSkill(name string) (*skills.Skill, error) {
	found, err := allowedSkills()
	if err != nil {
		return nil, err
	}
	skill, exists := found[name]
	if !exists {
		return nil, errors.Errorf("skill '%s' not found or not in skills.allowlist", name)
	}
	return skill, nil
}

var skillListCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered skills",
	Run: func(cmd *cobra.Command, _ []string) {
		found, err := allowedSkills()
		if err != nil {
			presenter.Error(err, "Failed to discover skills")
			os.Exit(1)
		}

		if len(found) == 0 {
			presenter.Info("No skills found. Add skill directories under ./.skillctl/skills or ~/.skillctl/skills")
			return
		}

		names := make([]string, 0, len(found))
		for name := range found {
			names = append(names, name)
		}
		sort.Strings(names)

		presenter.Section("Available Skills")
		for _, name := range names {
			presenter.Info(fmt.Sprintf("%-30s %s", name, found[name].Description))
		}
	},
}

var skillShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a skill's prompt template",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		skill, err := lookupSkill(args[0])
		if err != nil {
			presenter.Error(err, "Skill not found")
			os.Exit(1)
		}

		presenter.Section(skill.Name)
		presenter.Info(skill.Description)
		presenter.Separator()
		fmt.Println(skill.Content)
	},
}

type SkillRunConfig struct {
	Provider string
	Output   string
	Args     []string
}

func NewSkillRunConfig() *SkillRunConfig {
	return &SkillRunConfig{
		Provider: "claude",
		Output:   "",
		Args:     nil,
	}
}

var skillRunCmd = &cobra.Command{
	Use:   "run [name]",
	Short: "Render a skill's template and send it to a provider",
	Long: `Render the skill's prompt template (with --arg key=value substitutions and
{{bash ...}} shell-outs) and send the result to the configured provider CLI.
The provider's output is printed to stdout or written to --output.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getSkillRunConfigFromFlags(cmd)

		skill, err := lookupSkill(args[0])
		if err != nil {
			presenter.Error(err, "Skill not found")
			os.Exit(1)
		}

		templateArgs, err := parseSkillArgs(config.Args)
		if err != nil {
			presenter.Error(err, "Invalid --arg value")
			os.Exit(1)
		}

		processor, err := fragments.NewProcessor()
		if err != nil {
			presenter.Error(err, "Failed to create fragment processor")
			os.Exit(1)
		}

		prompt, err := processor.Render(ctx, skill.Content, templateArgs)
		if err != nil {
			presenter.Error(err, "Failed to render skill template")
			os.Exit(1)
		}

		p, err := newProvider(config.Provider)
		if err != nil {
			presenter.Error(err, "Unknown provider")
			os.Exit(1)
		}
		if err := p.Available(); err != nil {
			presenter.Error(err, "Provider is not usable")
			os.Exit(1)
		}

		presenter.Info(fmt.Sprintf("Running skill '%s' with provider '%s'...", skill.Name, config.Provider))

		result, err := p.Invoke(ctx, provider.Request{Prompt: prompt})
		if err != nil {
			presenter.Error(err, "Provider invocation failed")
			os.Exit(1)
		}

		if config.Output != "" {
			if err := os.WriteFile(config.Output, []byte(result.Output+"\n"), 0o644); err != nil {
				presenter.Error(err, "Failed to write output file")
				os.Exit(1)
			}
			presenter.Success(fmt.Sprintf("Output written to %s", config.Output))
			return
		}

		fmt.Println(result.Output)
	},
}

func init() {
	defaults := NewSkillRunConfig()
	skillRunCmd.Flags().String("provider", defaults.Provider, "Provider used to run the skill")
	skillRunCmd.Flags().StringP("output", "o", defaults.Output, "Write the provider output to this file")
	skillRunCmd.Flags().StringArray("arg", defaults.Args, "Template argument as key=value (repeatable)")

	skillCmd.AddCommand(skillListCmd)
	skillCmd.AddCommand(skillShowCmd)
	skillCmd.AddCommand(withTracing(skillRunCmd))
}

func getSkillRunConfigFromFlags(cmd *cobra.Command) *SkillRunConfig {
	config := NewSkillRunConfig()

	if providerName, err := cmd.Flags().GetString("provider"); err == nil {
		config.Provider = providerName
	}
	if output, err := cmd.Flags().GetString("output"); err == nil {
		config.Output = output
	}
	if skillArgs, err := cmd.Flags().GetStringArray("arg"); err == nil {
		config.Args = skillArgs
	}

	return config
}

func parseSkillArgs(pairs []string) (map[string]string, error) {
	args := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		args[key] = value
	}
	return args, nil
}
