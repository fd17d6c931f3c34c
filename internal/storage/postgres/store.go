package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"launchKit/internal/model"
)

// Store provides Postgres persistence for deployment and reward-claim
// records.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the record tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS deployments (
			token TEXT PRIMARY KEY,
			position_id BIGINT NOT NULL,
			deployer TEXT NOT NULL,
			requester_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			symbol TEXT NOT NULL,
			supply NUMERIC NOT NULL,
			locker TEXT NOT NULL,
			provenance_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS reward_claims (
			id BIGSERIAL PRIMARY KEY,
			position_id BIGINT NOT NULL,
			recipient TEXT NOT NULL,
			asset0 TEXT NOT NULL,
			asset1 TEXT NOT NULL,
			recipient_amount0 NUMERIC NOT NULL,
			recipient_amount1 NUMERIC NOT NULL,
			total_amount0 NUMERIC NOT NULL,
			total_amount1 NUMERIC NOT NULL,
			claimed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, statement := range statements {
		if _, err := s.pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// InsertDeployment upserts a token-created record keyed by token address.
func (s *Store) InsertDeployment(ctx context.Context, record model.TokenCreatedRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO deployments (
			token, position_id, deployer, requester_id, name, symbol, supply, locker, provenance_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (token)
		DO UPDATE SET
			position_id = EXCLUDED.position_id,
			deployer = EXCLUDED.deployer,
			requester_id = EXCLUDED.requester_id,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			supply = EXCLUDED.supply,
			locker = EXCLUDED.locker,
			provenance_hash = EXCLUDED.provenance_hash
	`,
		record.Token,
		int64(record.PositionID),
		record.Deployer,
		int64(record.RequesterID),
		record.Name,
		record.Symbol,
		record.Supply,
		record.Locker,
		record.ProvenanceHash,
	)
	return err
}

// InsertRewardClaim appends a reward-claim record.
func (s *Store) InsertRewardClaim(ctx context.Context, record model.RewardClaimRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reward_claims (
			position_id, recipient, asset0, asset1,
			recipient_amount0, recipient_amount1, total_amount0, total_amount1
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		int64(record.PositionID),
		record.Recipient,
		record.Asset0,
		record.Asset1,
		record.RecipientAmount0,
		record.RecipientAmount1,
		record.TotalAmount0,
		record.TotalAmount1,
	)
	return err
}

// Recorder adapts the store to the storage.Recorder interface with a fixed
// context.
type Recorder struct {
	store *Store
	ctx   context.Context
}

func (s *Store) Recorder(ctx context.Context) *Recorder {
	return &Recorder{store: s, ctx: ctx}
}

func (r *Recorder) RecordDeployment(record model.TokenCreatedRecord) error {
	return r.store.InsertDeployment(r.ctx, record)
}

func (r *Recorder) RecordRewardClaim(record model.RewardClaimRecord) error {
	return r.store.InsertRewardClaim(r.ctx, record)
}
