package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/djarekg/tampa-taffy/internal/config"
	"github.com/djarekg/tampa-taffy/internal/errors"
	"github.com/djarekg/tampa-taffy/pkg/api"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globals are the persistent flags shared by every command.
type globals struct {
	envFile string
	apiURL  string
	token   string
	noColor bool

	// jsonErrors is set once a config with LOG_FORMAT=json is loaded.
	jsonErrors bool
}

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:   "tampa",
		Short: "Reactive users service and client",
		Long: `tampa runs the users API with its live search endpoint, and
talks to a running API from the command line.

Settings come from the environment, optionally seeded from a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor || os.Getenv("NO_COLOR") != "" || !isTerminal(os.Stderr) {
				errors.DisableColors()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Load settings from this .env file (default ./.env when present)")
	rootCmd.PersistentFlags().StringVar(&g.apiURL, "api-url", "", "API base URL for client commands (default API_URL)")
	rootCmd.PersistentFlags().StringVar(&g.token, "token", "", "Bearer token for client commands")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		serveCmd(g),
		seedCmd(g),
		usersCmd(g),
		searchCmd(g),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		g.report(os.Stderr, err)
		os.Exit(1)
	}
}

// report prints a command error, as JSON when the config asks for JSON logs.
func (g *globals) report(w io.Writer, err error) {
	if g.jsonErrors {
		errors.FprintJSON(w, err)
		return
	}
	errors.Fprint(w, err)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (g *globals) config() (*config.Config, error) {
	if g.envFile != "" {
		return config.Load(g.envFile)
	}
	return config.Load()
}

// logger builds the process logger and installs it as the slog default.
func (g *globals) logger(cfg *config.Config, w io.Writer) *slog.Logger {
	g.jsonErrors = cfg.LogFormat == "json"
	l := cfg.NewLogger(w)
	slog.SetDefault(l)
	return l
}

func (g *globals) client(cfg *config.Config) (*api.Client, error) {
	base := g.apiURL
	if base == "" {
		base = cfg.APIURL
	}
	opts := []api.Option{api.WithLogger(slog.Default())}
	if g.token != "" {
		opts = append(opts, api.WithStaticToken(g.token))
	}
	return api.New(base, opts...)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
