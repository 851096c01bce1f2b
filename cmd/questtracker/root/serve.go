package root

import (
	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/SakuraBurst/questtracker/internal/tracker"
	"github.com/SakuraBurst/questtracker/internal/tracker/config"
)

func newServeCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return errors.Wrap(err, "config.Load failed: ")
			}
			app, err := tracker.NewApp(cfg)
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults to $CONFIG_PATH)")
	return cmd
}
