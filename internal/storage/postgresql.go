// Package storage хранит в PostgreSQL то, что должно пережить перезагрузку
// страницы и смену сессии: ID незавершённого платежа каждого браузера.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Storage соединение с PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New открывает соединение и проверяет его.
func New(ctx context.Context, storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{DB: db}, nil
}

// Close закрывает пул соединений.
func (s *Storage) Close() error {
	return s.DB.Close()
}

// CheckDatabaseReady проверяет, что миграции применены.
func CheckDatabaseReady(ctx context.Context, storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'pending_payments'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("storage.CheckDatabaseReady: %w", err)
	}
	if !exists {
		return errors.New("storage.CheckDatabaseReady: required table pending_payments missing")
	}
	return nil
}

// PendingPayments ID незавершённого платежа одного браузера.
type PendingPayments struct {
	db       *sql.DB
	clientID string
}

// PendingPayments возвращает хранилище браузера clientID.
func (s *Storage) PendingPayments(clientID string) *PendingPayments {
	return &PendingPayments{db: s.DB, clientID: clientID}
}

// Save запоминает paymentID, заменяя предыдущий.
func (p *PendingPayments) Save(ctx context.Context, paymentID string) error {
	const op = "storage.PendingPayments.Save"

	query := `INSERT INTO pending_payments (client_id, payment_id, updated_at)
			  VALUES ($1, $2, NOW())
			  ON CONFLICT (client_id) DO UPDATE
			  SET payment_id = EXCLUDED.payment_id, updated_at = EXCLUDED.updated_at`
	if _, err := p.db.ExecContext(ctx, query, p.clientID, paymentID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Load возвращает сохранённый ID или пустую строку.
func (p *PendingPayments) Load(ctx context.Context) (string, error) {
	const op = "storage.PendingPayments.Load"

	var paymentID string
	err := p.db.QueryRowContext(ctx,
		`SELECT payment_id FROM pending_payments WHERE client_id = $1`, p.clientID,
	).Scan(&paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return paymentID, nil
}

// Clear удаляет сохранённый ID. Отсутствие записи не ошибка.
func (p *PendingPayments) Clear(ctx context.Context) error {
	const op = "storage.PendingPayments.Clear"

	if _, err := p.db.ExecContext(ctx, `DELETE FROM pending_payments WHERE client_id = $1`, p.clientID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteStale удаляет записи, не обновлявшиеся дольше olderThan,
// и возвращает их число.
func (s *Storage) DeleteStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	const op = "storage.DeleteStale"

	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM pending_payments WHERE updated_at < $1`, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}
