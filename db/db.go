package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	_ "modernc.org/sqlite" // driver: sqlite
)

const pingTimeout = 5 * time.Second

// InitDB initializes the PostgreSQL database connection pool
func InitDB(connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Ping the database to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL database!")
	return pool, nil
}

// CreateSchema sets up the papers table. The paper aggregate lives in the
// doc column; the columns beside it exist for filtering, ordering and the
// atomic statistics updates.
// In a production environment, use a proper migration tool (e.g., golang-migrate).
func CreateSchema(pool *pgxpool.Pool) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS papers (
		id TEXT PRIMARY KEY,
		doc JSONB NOT NULL,
		exam VARCHAR(20) NOT NULL,
		year INT NOT NULL,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		is_published BOOLEAN NOT NULL DEFAULT FALSE,
		views INT NOT NULL DEFAULT 0,
		attempts INT NOT NULL DEFAULT 0,
		average_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS papers_listing_idx ON papers (is_published, year DESC, created_at DESC);
	CREATE INDEX IF NOT EXISTS papers_identity_idx ON papers (exam, year, title);
	`
	_, err := pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}
	return nil
}

// InitMongo connects to MongoDB and returns the named database.
func InitMongo(uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("Successfully connected to MongoDB!")
	return client, client.Database(database), nil
}

// InitSQLite opens (or creates) the SQLite file at path and makes sure the
// papers table exists. ":memory:" is accepted for tests.
func InitSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// One writer keeps the read-modify-write of the stats columns serialised
	// and keeps ":memory:" databases from splitting across connections.
	conn.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := conn.ExecContext(ctx, sqliteSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Printf("SQLite database ready at %s", path)
	return conn, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS papers (
  id TEXT PRIMARY KEY,
  doc TEXT NOT NULL,
  is_published INTEGER NOT NULL DEFAULT 0,
  views INTEGER NOT NULL DEFAULT 0,
  attempts INTEGER NOT NULL DEFAULT 0,
  average_score REAL NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL
);
`

// InitRedis connects to Redis. The client is returned even when the ping
// fails so the caller can decide whether to run without the cache.
func InitRedis(addr, password string, dbIndex int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       dbIndex,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}

	log.Printf("Successfully connected to Redis at %s", addr)
	return client, nil
}
