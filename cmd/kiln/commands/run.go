package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/engine/executor"
)

func (c *CLI) newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [tasks...]",
		Short: "Run tasks, or the default task when none is named",
		Args:  cobra.ArbitraryArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{domain.DefaultTaskName}
			}

			opts := app.RunOptions{
				Series:      c.config.GetBool("series"),
				Parallelism: c.config.GetInt("parallelism"),
				Serve: executor.ServeOverrides{
					Browser: c.config.GetString("browser"),
					NoOpen:  c.config.GetBool("no-open"),
				},
			}
			if c.config.IsSet("port") {
				port := c.config.GetInt("port")
				opts.Serve.Port = &port
			}

			return c.app.Run(cmd.Context(), args, opts)
		},
	}
	cmd.Flags().BoolP("series", "s", false, "Run the named tasks one after another")
	cmd.Flags().IntP("parallelism", "j", 0, "Maximum number of steps running at once (default: number of CPUs)")
	cmd.Flags().IntP("port", "p", domain.DefaultServePort, "Port the live-reload server tries first")
	cmd.Flags().String("browser", "", `Browser to open: an executable name, "default" or "none"`)
	cmd.Flags().Bool("no-open", false, "Do not open a browser when serving")
	return cmd
}
