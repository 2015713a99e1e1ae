package cli

import (
	"screenlist/pkg/cache"
	"screenlist/pkg/server"
	"screenlist/pkg/sites"

	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the rendered reports and the cached records over HTTP.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			stores := map[string]cache.Store{}
			for _, name := range sites.Names() {
				stores[name] = cache.NewFileStore(a.cfg.CachePath(name))
			}

			return server.New(server.Config{
				Addr:      addr,
				OutputDir: a.cfg.Output.Dir,
				Stores:    stores,
			}).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
