package store

import (
	"fmt"

	"github.com/mahaj/vconnect/pkg/db"
)

// Schema creation is handled here for the MVP; production deployments
// should run migrations instead.

const createKeyspaceFmt = `CREATE KEYSPACE IF NOT EXISTS %s
	WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`

var tables = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		channel_id text,
		id bigint,
		sender_id text,
		kind text,
		content text,
		ts timestamp,
		read_by map<text, timestamp>,
		delivered boolean,
		edited boolean,
		edited_at timestamp,
		PRIMARY KEY (channel_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,

	`CREATE TABLE IF NOT EXISTS conversations (
		id text PRIMARY KEY,
		participants set<text>,
		created_at timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_lookup (
		user_pair text PRIMARY KEY,
		conversation_id text
	)`,

	`CREATE TABLE IF NOT EXISTS user_conversations (
		user_id text,
		conversation_id text,
		other_user_id text,
		last_updated timestamp,
		last_sender text,
		last_content text,
		PRIMARY KEY (user_id, conversation_id)
	)`,

	`CREATE TABLE IF NOT EXISTS conversation_counters (
		conversation_id text,
		user_id text,
		unread_count counter,
		PRIMARY KEY (conversation_id, user_id)
	)`,
}

// EnsureKeyspace creates the chat keyspace through a session bound to the
// system keyspace.
func EnsureKeyspace(hosts []string, keyspace string) error {
	sys, err := db.NewSession(hosts, "system")
	if err != nil {
		return fmt.Errorf("connect system keyspace: %w", err)
	}
	defer sys.Close()

	if err := sys.Query(fmt.Sprintf(createKeyspaceFmt, keyspace)).Exec(); err != nil {
		return fmt.Errorf("create keyspace %s: %w", keyspace, err)
	}
	return nil
}

// EnsureTables creates the chat tables in the store's keyspace.
func (s *Store) EnsureTables() error {
	for _, ddl := range tables {
		if err := s.session.Query(ddl).Exec(); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}
