package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/mahaj/vconnect/pkg/auth"
	"github.com/mahaj/vconnect/pkg/config"
	"github.com/mahaj/vconnect/pkg/db"
	"github.com/mahaj/vconnect/pkg/engine"
	"github.com/mahaj/vconnect/pkg/notify"
	"github.com/mahaj/vconnect/pkg/presence"
	"github.com/mahaj/vconnect/pkg/snowflake"
	"github.com/mahaj/vconnect/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(log)

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
	if err != nil {
		log.Error("scylla connect failed", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		log.Error("snowflake init failed", "error", err)
		os.Exit(1)
	}

	repo := store.New(session, log)
	presenceStore := presence.NewStore(cfg.RedisAddr)
	defer presenceStore.Close()
	notifier := notify.NewProducer(cfg.KafkaBrokers, cfg.KafkaNotifyTopic)
	defer notifier.Close()

	eng := engine.New(engine.Options{
		Repo:          repo,
		IDs:           node,
		PresenceStore: presenceStore,
		Notifier:      notifier,
		TypingTimeout: cfg.TypingTimeout,
		Log:           log,
	})

	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)
	http.HandleFunc("/ws", serveWs(eng, presenceStore, tokens, cfg.SendBuffer, log))

	log.Info("gateway service starting", "addr", cfg.GatewayAddr)
	if err := http.ListenAndServe(cfg.GatewayAddr, nil); err != nil {
		log.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}
