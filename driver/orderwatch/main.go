// Command orderwatch polls the order list and announces every order that was not there on the
// previous poll: a bell and a highlighted line on the terminal, plus kafka and AMQP events when
// those are configured. After each poll it prints the order board with fresh orders starred.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go_trial/ordertaking/client"
	"go_trial/ordertaking/config"
	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/models"
	"go_trial/ordertaking/watcher"
)

// relogin signs in again once when the access token has expired.
type relogin struct {
	c                  *client.Client
	username, password string
}

func (r *relogin) ListOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := r.c.ListOrders(ctx)
	if !client.IsStatus(err, http.StatusUnauthorized) {
		return orders, err
	}
	if _, err := r.c.Login(ctx, r.username, r.password); err != nil {
		return nil, err
	}
	return r.c.ListOrders(ctx)
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := config.LoadEnvFile(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}
	cfg := config.Load()
	wc := cfg.Watch
	if wc.Username == "" || wc.Password == "" {
		log.Fatal("CONFIG", "WATCH_USERNAME and WATCH_PASSWORD are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(wc.APIURL)
	if _, err := api.Login(ctx, wc.Username, wc.Password); err != nil {
		log.Fatal("WATCH", "login failed: "+err.Error())
	}
	log.LogProcess("WATCH", "signed in to "+wc.APIURL+" as "+wc.Username)

	notifiers := []watcher.Notifier{&watcher.ConsoleNotifier{Out: os.Stdout, Bell: true}}
	if len(cfg.KafkaBrokers) > 0 {
		w := watcher.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaOrderTopic)
		defer w.Close()
		notifiers = append(notifiers, &watcher.KafkaNotifier{Writer: w})
		log.LogKafka("INIT", cfg.KafkaOrderTopic, "new-order events enabled")
	}
	if cfg.AMQPURL != "" {
		conn, err := watcher.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal("AMQP", "Failed to connect: "+err.Error())
		}
		defer conn.Close()
		notifiers = append(notifiers, conn.Notifier(cfg.AMQPExchange))
		log.LogProcess("AMQP", "publishing new orders to exchange "+cfg.AMQPExchange)
	}

	poller := watcher.NewPoller(&relogin{c: api, username: wc.Username, password: wc.Password},
		watcher.WithInterval(wc.Interval),
		watcher.WithHighlight(wc.Highlight),
		watcher.WithNotifiers(notifiers...),
		watcher.WithBoard(os.Stdout),
		watcher.WithLogger(log),
	)
	poller.Run(ctx)
	log.Info("SHUTDOWN", "order watch stopped")
}
