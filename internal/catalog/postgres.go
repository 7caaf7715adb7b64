package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kou050223/duelclient/internal/models"
)

// Connect opens a pgx pool against url and verifies it with a ping.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return pool, nil
}

// LoadPostgres reads the catalog from the cards table. effects is a jsonb
// array of {type,value,target}; image may be NULL.
func LoadPostgres(ctx context.Context, pool *pgxpool.Pool) (*Catalog, error) {
	q := `
	SELECT id, name, cost, attack, defense, description, type, rarity,
	       COALESCE(image, ''), COALESCE(effects, '[]'::jsonb)
	FROM cards
	ORDER BY id
	`
	rows, err := pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []models.Card
	for rows.Next() {
		var (
			c       models.Card
			effects []byte
		)
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Cost, &c.Attack, &c.Defense, &c.Description,
			&c.Type, &c.Rarity, &c.Image, &effects,
		); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		if err := json.Unmarshal(effects, &c.Effects); err != nil {
			return nil, fmt.Errorf("card %s has invalid effects: %w", c.ID, err)
		}
		if len(c.Effects) == 0 {
			c.Effects = nil
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cards: %w", err)
	}
	return New(cards), nil
}
