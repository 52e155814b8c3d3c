// Creates the keyspace and all tables. Run once before starting the services.
package main

import (
	"log"
	"log/slog"

	"github.com/mahaj/vconnect/pkg/config"
	"github.com/mahaj/vconnect/pkg/db"
	"github.com/mahaj/vconnect/pkg/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}

	if err := store.EnsureKeyspace(cfg.ScyllaHosts, cfg.ScyllaKeyspace); err != nil {
		log.Fatal("create keyspace: ", err)
	}
	log.Printf("keyspace %q ready", cfg.ScyllaKeyspace)

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
	if err != nil {
		log.Fatal("connect: ", err)
	}
	defer session.Close()

	s := store.New(session, slog.Default())
	if err := s.EnsureTables(); err != nil {
		log.Fatal("create tables: ", err)
	}
	log.Println("tables ready")
}
