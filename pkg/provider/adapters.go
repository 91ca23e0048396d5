package provider

// model resolves the request model against the configured default.
func model(cfg Config, req Request) string {
	if req.Model != "" {
		return req.Model
	}
	return cfg.Model
}

// newClaude adapts the Claude Code CLI. The prompt is read from stdin with
// -p, and --output-format text keeps stdout to plain model text.
func newClaude(cfg Config) Provider {
	if cfg.Bin == "" {
		cfg.Bin = "claude"
	}
	return &cliProvider{
		name: "claude",
		cfg:  cfg,
		buildArgs: func(cfg Config, req Request) []string {
			args := []string{"-p", "--output-format", "text"}
			if m := model(cfg, req); m != "" {
				args = append(args, "--model", m)
			}
			return args
		},
	}
}

// newCodex adapts the OpenAI Codex CLI. `codex exec -` reads the prompt
// from stdin and runs non-interactively.
func newCodex(cfg Config) Provider {
	if cfg.Bin == "" {
		cfg.Bin = "codex"
	}
	return &cliProvider{
		name: "codex",
		cfg:  cfg,
		buildArgs: func(cfg Config, req Request) []string {
			args := []string{"exec", "--skip-git-repo-check"}
			if m := model(cfg, req); m != "" {
				args = append(args, "--model", m)
			}
			return append(args, "-")
		},
	}
}

// newGemini adapts the Gemini CLI, which reads the prompt from stdin when
// no positional prompt is given.
func newGemini(cfg Config) Provider {
	if cfg.Bin == "" {
		cfg.Bin = "gemini"
	}
	return &cliProvider{
		name: "gemini",
		cfg:  cfg,
		buildArgs: func(cfg Config, req Request) []string {
			var args []string
			if m := model(cfg, req); m != "" {
				args = append(args, "-m", m)
			}
			return args
		},
	}
}

// newCopilot adapts the GitHub Copilot CLI in programmatic mode.
func newCopilot(cfg Config) Provider {
	if cfg.Bin == "" {
		cfg.Bin = "copilot"
	}
	return &cliProvider{
		name: "copilot",
		cfg:  cfg,
		buildArgs: func(cfg Config, req Request) []string {
			args := []string{"-p", "-", "--no-color"}
			if m := model(cfg, req); m != "" {
				args = append(args, "--model", m)
			}
			return args
		},
	}
}
