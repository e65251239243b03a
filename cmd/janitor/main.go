package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/jackc/pgx/v5/pgxpool"
)

func handler(ctx context.Context) (string, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return "no DATABASE_URL", nil
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return fmt.Sprintf("parse: %v", err), nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Sprintf("pool: %v", err), nil
	}
	defer pool.Close()

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, _ = pool.Exec(cctx, `DELETE FROM sessions WHERE expires_at < now();`)

	// games de hace más de un año que no se repiten: nadie los vuelve a mirar
	_, _ = pool.Exec(cctx, `
DELETE FROM games
WHERE to_timestamp(timestamp_ms / 1000.0) < now() - INTERVAL '365 days'
  AND frequency = 0;`)

	return "ok", nil
}

func main() { lambda.Start(handler) }
