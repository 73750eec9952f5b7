// Command logpusher moves request logs from the kafka log topic into Elasticsearch.
package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go_trial/ordertaking/config"
	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/utils"
)

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := config.LoadEnvFile(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}
	cfg := config.Load()
	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("CONFIG", "KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	es, err := utils.NewESBulk(cfg.ElasticURL)
	if err != nil {
		log.Fatal("ELASTIC", err.Error())
	}
	reader := utils.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaLogTopic, cfg.KafkaLogGroup)
	defer reader.Close()
	log.LogKafka("INIT", cfg.KafkaLogTopic, "consuming as group "+cfg.KafkaLogGroup)

	pusher := &utils.LogPusher{
		Reader:       reader,
		Indexer:      es,
		Index:        cfg.ElasticIndex,
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		Log:          log,
	}
	if err := pusher.Run(ctx); err != nil {
		log.Fatal("LOGPUSHER", err.Error())
	}
	log.Info("SHUTDOWN", "log pusher stopped")
}
