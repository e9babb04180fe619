package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"hermes/api/stdio"
	"hermes/config"
	"hermes/domain/risk"
	"hermes/infra/logging"
	"hermes/infra/outbox"
	"hermes/infra/wal"
	"hermes/jobs/broadcaster"
	"hermes/service"
	"hermes/snapshot"
)

func main() {
	eventLogFlag := flag.String("event-log", "", "path to the append-only event log (empty = no durability)")
	snapshotDirFlag := flag.String("snapshot-dir", "", "directory for periodic snapshots (empty = no snapshots)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// CLI flags win over the environment.
	if *eventLogFlag != "" {
		cfg.Engine.EventLogPath = *eventLogFlag
	}
	if *snapshotDirFlag != "" {
		cfg.Engine.SnapshotDir = *snapshotDirFlag
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	limits := risk.DefaultLimits()
	if cfg.Engine.RiskLimitsPath != "" {
		limits, err = risk.LoadLimits(cfg.Engine.RiskLimitsPath)
		if err != nil {
			logger.Fatal("risk limits load failed", zap.Error(err))
		}
	}

	eventLog := wal.Open(cfg.Engine.EventLogPath, logger)
	defer eventLog.Close()

	snapshots := snapshot.NewStore(cfg.Engine.SnapshotDir, cfg.Engine.SnapshotInterval)

	var ob *outbox.Outbox
	if cfg.Engine.OutboxDir != "" {
		ob, err = outbox.Open(cfg.Engine.OutboxDir)
		if err != nil {
			logger.Fatal("outbox open failed", zap.Error(err))
		}
		defer ob.Close()
	}

	svc := service.NewOrderService(risk.NewChecker(limits), eventLog, snapshots, ob, logger)

	if svc.Recover() {
		logger.Info("recovered from existing state", zap.String("instance", svc.InstanceID()))
	} else {
		logger.Info("starting fresh", zap.String("instance", svc.InstanceID()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled() {
		if ob == nil {
			logger.Fatal("kafka brokers configured but HERMES_OUTBOX_DIR is not set")
		}
		bc, err := broadcaster.New(ob, cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Fatal("broadcaster init failed", zap.Error(err))
		}
		defer bc.Close()
		bc.Start(ctx)
	}

	srv := stdio.NewServer(svc, logger)
	logger.Info("ready, reading commands from stdin")

	if err := srv.Run(os.Stdin, os.Stdout); err != nil {
		logger.Error("driver loop failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("exiting")
}
