// Command caro-server runs the game service: it listens for client
// connections, matches players into rooms, and arbitrates their matches.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cyberinferno/caro-server/logger"
	"github.com/cyberinferno/caro-server/server"
	"github.com/cyberinferno/caro-server/store"
)

const serviceName = "caro-server"

func main() {
	addr := flag.String("addr", ":9999", "TCP listen address")
	redisAddr := flag.String("redis-addr", "", "redis address; empty selects the in-memory store")
	logDir := flag.String("log-dir", "", "directory for daily log files; empty logs to stdout only")
	logLevel := flag.String("log-level", "info", "minimum log level")
	turnTimeout := flag.Duration("turn-timeout", 0, "server-side per-turn deadline; 0 leaves timeouts to clients")
	discordWebhook := flag.String("discord-webhook", "", "Discord webhook for service events; empty logs them")
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q: %v\n", *logLevel, err)
		os.Exit(1)
	}

	var log logger.Logger
	if *logDir != "" {
		log = logger.NewZerologFileLogger(serviceName, *logDir, level)
	} else {
		log = logger.NewZerologLogger(zerolog.New(os.Stdout), serviceName, level)
	}
	defer func() { _ = log.Close() }()

	st, err := buildStore(*redisAddr)
	if err != nil {
		log.Error("store init failed", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	// An unclean shutdown leaves stale online/playing flags behind.
	if err := st.ResetAllStatus(context.Background()); err != nil {
		log.Error("status reset failed", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	var notifier server.Notifier
	if *discordWebhook != "" {
		notifier = server.NewDiscordNotifier(*discordWebhook, log)
	}

	srv := server.New(server.Config{
		Addr:        *addr,
		TurnTimeout: *turnTimeout,
	}, st, log, notifier)

	if err := srv.Start(); err != nil {
		log.Error("server start failed", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	srv.Stop()
}

// buildStore selects the persistence backend: redis when an address is
// given, otherwise the in-memory store.
func buildStore(redisAddr string) (store.Store, error) {
	if redisAddr == "" {
		return store.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return store.NewRedisStore(client), nil
}
