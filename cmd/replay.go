package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flipnotify/app"
	"github.com/kilianp07/flipnotify/config"
	"github.com/kilianp07/flipnotify/core/factory"
	"github.com/kilianp07/flipnotify/core/ingest"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/monitoring"
	"github.com/kilianp07/flipnotify/core/session"
	"github.com/kilianp07/flipnotify/infra/logger"
	"github.com/kilianp07/flipnotify/infra/mqtt"
)

var (
	replayUser    string
	replayTier    string
	replayPublish bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <batch.json>",
	Short: "Run a recorded candidate batch through a local session",
	Long: "Replay reads a JSON batch of candidate events. By default the batch runs through a " +
		"session that logs what it would send. With --mqtt the batch is published to the " +
		"configured mqtt source topic instead.",
	Args: cobra.ExactArgs(1),
	RunE: replay,
}

func init() {
	replayCmd.Flags().StringVar(&replayUser, "user", "replay", "user id of the local session")
	replayCmd.Flags().StringVar(&replayTier, "tier", "premium", "account tier of the local session")
	replayCmd.Flags().BoolVar(&replayPublish, "mqtt", false, "publish the batch to the mqtt source topic")
	rootCmd.AddCommand(replayCmd)
}

func replay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	payload, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	batch, err := ingest.DecodeBatch(payload)
	if err != nil {
		return fmt.Errorf("decode %s: %w", args[0], err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if replayPublish {
		return publish(ctx, cfg, batch)
	}

	tier, err := model.ParseTier(replayTier)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	log := logger.New("replay")
	s, err := session.New(ctx, session.LogConn{Log: log}, model.AccountInfo{UserID: replayUser, Tier: tier},
		cfg.DefaultSettings.Clone(), svc.Deps)
	if err != nil {
		return err
	}
	svc.Hub.Add(s)
	svc.Hub.Deliver(batch)
	svc.Hub.Wait()

	p := s.Processor()
	fmt.Fprintf(cmd.OutOrStdout(), "candidates=%d sent=%d blocked=%d\n", len(batch), p.SentCount(), p.BlockedCount())
	for _, b := range s.Blocked() {
		fmt.Fprintf(cmd.OutOrStdout(), "  blocked %d: %s\n", b.Event.ID, b.Reason)
	}
	s.Close()
	return nil
}

func publish(ctx context.Context, cfg *config.Config, batch []*model.CandidateEvent) error {
	if cfg.Source.Type != "mqtt" {
		return fmt.Errorf("--mqtt needs an mqtt source, configured source is %q", cfg.Source.Type)
	}
	var mc mqtt.Config
	if err := factory.Decode(cfg.Source.Conf, &mc); err != nil {
		return err
	}
	pub, err := mqtt.NewPublisher(mc, monitoring.Default())
	if err != nil {
		return err
	}
	defer pub.Close()
	return pub.Publish(ctx, batch)
}
