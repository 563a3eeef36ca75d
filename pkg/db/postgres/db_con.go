package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ademnea/beehive-pipeline/internal/config"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"
)

const (
	maxOpenConns    = 10
	connMaxLifetime = 120 * time.Second
	maxIdleConns    = 5
	connMaxIdleTime = 20 * time.Second
)

func DataSourceName(c *config.Config) string {
	sslMode := c.Postgres.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s password=%s",
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.User,
		c.Postgres.Name,
		sslMode,
		c.Postgres.Password,
	)
}

func NewPsqlDB(ctx context.Context, c *config.Config) (*sqlx.DB, error) {
	driver := c.Postgres.PgDriver
	if driver == "" {
		driver = "pgx"
	}

	db, err := sqlx.ConnectContext(ctx, driver, DataSourceName(c))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}
