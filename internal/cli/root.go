package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oscarka/underwritingsystem2/internal/common/fsutil"
	"github.com/oscarka/underwritingsystem2/internal/config"
	"github.com/oscarka/underwritingsystem2/internal/session"
)

// Options carries process-level inputs; tests replace them.
type Options struct {
	In       io.Reader
	Out, Err io.Writer
	// Storage overrides the configured session backend.
	Storage session.Storage
}

type globals struct {
	configPath string
	envFile    string
	baseURL    string
	logLevel   string
	yes        bool
}

// NewRootCmd constructs the uwctl command tree. The App is built lazily in
// PersistentPreRunE so help and completion work without configuration.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	g := &globals{}
	var app *App

	root := &cobra.Command{
		Use:           "uwctl",
		Short:         "Operate the underwriting admin and mobile APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Config file (.yaml|.json|.toml)")
	pf.StringVar(&g.envFile, "env-file", ".env", "Dotenv file loaded before UW_* overrides when present")
	pf.StringVar(&g.baseURL, "base-url", "", "API base URL (overrides config)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error|off")
	pf.BoolVarP(&g.yes, "yes", "y", false, "Answer yes to confirmations")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if skipApp(cmd) {
			return nil
		}
		cfg, err := loadConfig(g)
		if err != nil {
			return err
		}
		app, err = NewApp(cfg, opts.Storage, opts.In, opts.Out, opts.Err)
		if err != nil {
			return err
		}
		app.yes = g.yes
		return nil
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app == nil {
			return nil
		}
		return app.Close()
	}

	get := func() *App { return app }
	root.AddCommand(
		newLoginCmd(get),
		newLogoutCmd(get),
		newWhoamiCmd(get),
		newCanCmd(get),
		newListCmd(get),
		newGetCmd(get),
		newCreateCmd(get),
		newUpdateCmd(get),
		newDeleteCmd(get),
		newImportCmd(get),
		newExportCmd(get),
		newRoutesCmd(get),
		newNavigateCmd(get),
		newEvaluateCmd(get),
	)

	completionCmd := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	completionCmd.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(cmd.OutOrStdout()) }})
	completionCmd.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(cmd.OutOrStdout(), true) }})
	root.AddCommand(completionCmd)
	return root
}

func skipApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "completion" || c.Name() == "help" {
			return true
		}
	}
	return false
}

func loadConfig(g *globals) (config.Config, error) {
	if g.envFile != "" {
		p, err := fsutil.ExpandHome(g.envFile)
		if err != nil {
			return config.Config{}, err
		}
		if fsutil.PathExists(p) {
			if err := godotenv.Load(p); err != nil {
				return config.Config{}, fmt.Errorf("load %s: %w", p, err)
			}
		}
	}
	cfg, err := config.Resolve(g.configPath)
	if err != nil {
		return cfg, err
	}
	if g.baseURL != "" {
		cfg.API.BaseURL = g.baseURL
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, cfg.Validate()
}

// Execute runs uwctl and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	root := NewRootCmd(Options{})
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		return 1
	}
	return 0
}
