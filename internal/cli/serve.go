package cli

import (
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/metergrid/metergrid/internal/api"
	"github.com/metergrid/metergrid/internal/app/consolidator"
	"github.com/metergrid/metergrid/internal/audit"
	"github.com/metergrid/metergrid/internal/daemon"
	"github.com/metergrid/metergrid/internal/history"
	"github.com/metergrid/metergrid/internal/infra/sqlite"
	"github.com/metergrid/metergrid/internal/ledger"
	"github.com/metergrid/metergrid/internal/publisher"
	"github.com/metergrid/metergrid/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the metergrid HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	aud := audit.Open(cfg.AuditPath())
	st := store.New(aud)
	led := ledger.New(cfg.LedgerPath())

	cons := consolidator.New(consolidator.Config{Workers: cfg.Drain.Workers}, st, led, aud)

	runs, err := sqlite.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open drain history: %w", err)
	}
	defer runs.Close()
	cons.SetHistory(runs)

	pub, err := publisher.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("mqtt publisher: %w", err)
	}
	defer pub.Close()
	cons.SetPublisher(pub)

	srv := api.NewServer(st, history.New(led), cons)
	srv.SetDrainHistory(runs)
	if cfg.Metrics.Enabled {
		srv.EnableMetrics()
	}

	log.Printf("[serve] listening on %s (ledger: %s)", cfg.API.Addr(), led.Path())
	return http.ListenAndServe(cfg.API.Addr(), srv.Handler())
}
