// Package commands implements the CLI commands for kiln.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
)

// EnvPrefix prefixes the environment variables that mirror flags, e.g. KILN_PORT.
const EnvPrefix = "KILN"

// CLI represents the command line interface for kiln.
type CLI struct {
	app     Application
	rootCmd *cobra.Command
	config  *viper.Viper
	json    JSONToggler
}

// Application represents the application logic interface.
type Application interface {
	Run(ctx context.Context, taskNames []string, opts app.RunOptions) error
	Tasks(ctx context.Context, w io.Writer) error
	Clean(ctx context.Context) error
}

// JSONToggler switches log output between pretty and JSON lines.
type JSONToggler interface {
	SetJSON(enable bool)
}

// Option configures a CLI.
type Option func(*CLI)

// WithJSONToggler lets --json switch the log format.
func WithJSONToggler(t JSONToggler) Option {
	return func(c *CLI) {
		c.json = t
	}
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	rootCmd := &cobra.Command{
		Use:           "kiln",
		Short:         "Build and serve static assets",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
		config:  v,
	}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd.PersistentFlags().Bool("json", false, "Write logs as JSON lines")
	_ = v.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		if c.json != nil {
			c.json.SetJSON(v.GetBool("json"))
		}
	}

	rootCmd.AddCommand(c.newRunCmd())
	rootCmd.AddCommand(c.newTasksCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}
