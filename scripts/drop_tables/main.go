// Drops every table in the chat keyspace. Destructive; meant for local
// development resets only.
package main

import (
	"log"

	"github.com/mahaj/vconnect/pkg/config"
	"github.com/mahaj/vconnect/pkg/db"
)

var tables = []string{
	"messages",
	"conversations",
	"conversation_lookup",
	"user_conversations",
	"conversation_counters",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}

	session, err := db.NewSession(cfg.ScyllaHosts, cfg.ScyllaKeyspace)
	if err != nil {
		log.Fatal("connect: ", err)
	}
	defer session.Close()

	for _, table := range tables {
		if err := session.Query("DROP TABLE IF EXISTS " + table).Exec(); err != nil {
			log.Fatalf("drop %s: %v", table, err)
		}
		log.Printf("dropped %s", table)
	}
}
