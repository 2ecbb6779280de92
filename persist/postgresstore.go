package persist

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	_ "github.com/jackc/pgx/v4/stdlib"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// maxAppendRetries bounds how many times AppendMutation/SaveSnapshot
// retry after a serialization failure (pgerrcode.SerializationFailure)
// before giving up, the way a client of lnd's postgres-backed kvdb must
// itself retry a conflicting SERIALIZABLE transaction.
const maxAppendRetries = 3

// PostgresStore is the shared-database persist.Store backend: an
// operator running several meshnoded processes against one failure
// domain can point them all at the same Postgres instance instead of a
// per-node bbolt file (SPEC_FULL.md's DOMAIN STACK). Schema changes are
// tracked with golang-migrate, and pgerrcode recognizes a
// serialization_failure so the mutation-append transaction can retry
// instead of surfacing a spurious error to the funder under
// concurrent writers.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres runs pending migrations against dsn and returns a
// connected PostgresStore.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func runMigrations(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// LoadSnapshot implements Store.
func (s *PostgresStore) LoadSnapshot() (*NodeSnapshot, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM node_snapshot WHERE id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	snap, err := decodeSnapshot(raw)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

// SaveSnapshot implements Store.
func (s *PostgresStore) SaveSnapshot(snap *NodeSnapshot) error {
	raw, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	return s.withRetry(func(ctx context.Context) error {
		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		_, err = tx.Exec(ctx, `
			INSERT INTO node_snapshot (id, payload) VALUES (1, $1)
			ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`, raw)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM mutations WHERE seq <= $1`, snap.Sequence); err != nil {
			return err
		}
		return tx.Commit(ctx)
	})
}

// AppendMutation implements Store.
func (s *PostgresStore) AppendMutation(m Mutation) (uint64, error) {
	raw, err := EncodedMutationBytes(m)
	if err != nil {
		return 0, err
	}
	var seq uint64
	err = s.withRetry(func(ctx context.Context) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO mutations (payload) VALUES ($1) RETURNING seq`, raw).Scan(&seq)
	})
	return seq, err
}

// ReplayMutations implements Store.
func (s *PostgresStore) ReplayMutations(fromSeq uint64, fn func(seq uint64, m Mutation) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx,
		`SELECT seq, payload FROM mutations WHERE seq > $1 ORDER BY seq ASC`, fromSeq)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var seq uint64
		var raw []byte
		if err := rows.Scan(&seq, &raw); err != nil {
			return err
		}
		m, err := decodeMutationBytes(raw)
		if err != nil {
			return err
		}
		if err := fn(seq, m); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Wipe implements Store.
func (s *PostgresStore) Wipe() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `TRUNCATE node_snapshot, mutations`)
	return err
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// withRetry runs fn up to maxAppendRetries times, retrying only on a
// Postgres serialization_failure (pgerrcode.SerializationFailure), the
// expected conflict when two writers race the same mutation log.
func (s *PostgresStore) withRetry(fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = fn(ctx)
		cancel()
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.SerializationFailure {
			return err
		}
		log.Warnf("persist: retrying after serialization failure (attempt %d/%d)", attempt+1, maxAppendRetries)
	}
	return err
}

func decodeMutationBytes(b []byte) (Mutation, error) {
	return DecodeMutation(bytes.NewReader(b))
}
