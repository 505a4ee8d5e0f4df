package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// collectLockKey は収集サイクル排他ロックのアドバイザリロックキー。
const collectLockKey = 0x73776c67

// PostgresAdvisoryLock はPostgreSQLのセッションレベルアドバイザリロック。
// cronの重複起動や手動実行の衝突時に、後発の収集サイクルを即座に退出させる。
//
// アドバイザリロックはセッションに紐づくため、プールから専用コネクションを
// 確保してTryLockからUnlockまで同一コネクションを保持する。
type PostgresAdvisoryLock struct {
	db   *sql.DB
	conn *sql.Conn
}

// NewPostgresAdvisoryLock はPostgresAdvisoryLockを生成する。
func NewPostgresAdvisoryLock(db *sql.DB) *PostgresAdvisoryLock {
	return &PostgresAdvisoryLock{db: db}
}

// TryLock はロック取得を試みる。取得できなかった場合はfalseを返す（待機しない）。
func (l *PostgresAdvisoryLock) TryLock(ctx context.Context) (bool, error) {
	if l.conn != nil {
		return false, fmt.Errorf("ロックは既に取得済みです")
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("ロック用コネクションの確保に失敗しました: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx,
		`SELECT pg_try_advisory_lock($1)`, collectLockKey,
	).Scan(&acquired); err != nil {
		conn.Close()
		return false, fmt.Errorf("アドバイザリロックの取得に失敗しました: %w", err)
	}

	if !acquired {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Unlock はロックを解放し、保持していたコネクションをプールに返す。
func (l *PostgresAdvisoryLock) Unlock(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}

	_, err := l.conn.ExecContext(ctx, `SELECT pg_advisory_unlock($1)`, collectLockKey)
	closeErr := l.conn.Close()
	l.conn = nil

	if err != nil {
		return fmt.Errorf("アドバイザリロックの解放に失敗しました: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("ロック用コネクションのクローズに失敗しました: %w", closeErr)
	}
	return nil
}

// compile-time interface check
var _ AdvisoryLocker = (*PostgresAdvisoryLock)(nil)
