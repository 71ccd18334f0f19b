package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lockin-app/lockin/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to listen on (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "Store backend: sqlite, postgres or firestore (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost  string
	servePort  int
	serveStore string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Lock In API server",
	Long:  `Start the progression REST API at localhost:8080 (see config.toml for store selection).`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	// Override config from flags
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveStore != "" {
		cfg.Store.Backend = serveStore
	}

	ctx := context.Background()
	d, err := daemon.NewWithConfig(ctx, cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Serve(ctx)
}
