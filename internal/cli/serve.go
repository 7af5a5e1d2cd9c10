package cli

import (
	"recruitflow/internal/common"
	"recruitflow/internal/config"
	"recruitflow/internal/server"

	"github.com/spf13/cobra"
)

var servePort, serveHost string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing the recruitment pipeline.

Available endpoints:
- POST /runs: Start a pipeline run over uploaded CVs
- GET /runs/{id}: Progress of a run
- GET /runs/{id}/result: Final state of a finished run
- POST /score: Score extracted candidates against a job
- POST /shortlist: Rank scored candidates
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

When Vault is enabled and holds the API keys, key rotations are picked up
without a restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cmd, common.RuntimeOptions{RunStore: true})
	if err != nil {
		return err
	}
	defer closeRuntime(cmd, rt)
	rt.ServeMetrics()

	if servePort != "" {
		rt.Config.Server.Port = servePort
	}
	if serveHost != "" {
		rt.Config.Server.Host = serveHost
	}

	seq, err := rt.Sequencer(rt.LogProgress)
	if err != nil {
		return err
	}
	opts, err := rt.Options()
	if err != nil {
		return err
	}

	deps := server.Dependencies{
		Sequencer: seq,
		Scorer:    opts.Scorer,
		Store:     rt.Store,
		Telemetry: rt.Telemetry,
		OnResult:  rt.WriteArtifacts,
	}
	if rt.Model != nil {
		deps.Model = rt.Model
	}

	vaultCfg := rt.Config.Vault
	if vaultCfg.Enabled && vaultCfg.Secrets.APIKeys != "" && vaultCfg.PollInterval > 0 {
		client, err := config.NewVaultClient(vaultCfg, rt.Logger)
		if err != nil {
			return err
		}
		if client != nil {
			deps.KeySource = client
		}
	}

	return server.NewServer(rt.Config, Version, deps, rt.Logger).Start(cmd.Context())
}
