package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/mahaj/vconnect/pkg/auth"
	"github.com/mahaj/vconnect/pkg/config"
	"github.com/mahaj/vconnect/pkg/db"
	"github.com/mahaj/vconnect/pkg/presence"
	"github.com/mahaj/vconnect/pkg/store"
)

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*") // Allow all for dev, or specific origin
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware verifies the bearer token and stores the claims in the
// request context.
func AuthMiddleware(tokens *auth.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r)
		if token == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		claims, err := tokens.ValidateToken(token)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), auth.UserKey, claims)))
	})
}

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

	repo := store.New(session, log)
	presenceStore := presence.NewStore(cfg.RedisAddr)
	defer presenceStore.Close()
	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL)

	protected := func(h http.Handler) http.Handler {
		return CORSMiddleware(AuthMiddleware(tokens, h))
	}

	http.Handle("/login", CORSMiddleware(LoginHandler(tokens)))
	http.Handle("/history", protected(HistoryHandler(repo)))
	http.Handle("/conversations", protected(ConversationsHandler(repo)))
	http.Handle("/conversations/read", protected(ReadHandler(repo, log)))
	http.Handle("/channels/", protected(ChannelUsersHandler(presenceStore)))
	http.Handle("/users/online", protected(OnlineUsersHandler(presenceStore)))
	http.Handle("/users/", protected(UserPresenceHandler(presenceStore)))

	log.Info("api service starting", "addr", cfg.APIAddr)
	if err := http.ListenAndServe(cfg.APIAddr, nil); err != nil {
		log.Error("api stopped", "error", err)
		os.Exit(1)
	}
}
