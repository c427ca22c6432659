// Package store は通知サービスのSQLite永続化層を提供する。
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nao1215/swish/internal/notification"
	"github.com/nao1215/swish/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore はnotification.Storeとnotification.UserDirectoryをSQLiteで実装する。
type SQLiteStore struct {
	db *sqlx.DB
}

// Open はSQLiteデータベースを開き、未適用のマイグレーションを適用する。
// dsnに ":memory:" を渡すとインメモリデータベースになる。
func Open(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// SQLiteへの書き込みは単一接続に直列化する。インメモリDBの場合は接続ごとに別DBになるため必須。
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースへの疎通確認に失敗: %w", err)
	}

	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close はデータベース接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// notificationRow はnotificationsテーブルの1行。
type notificationRow struct {
	ID          string         `db:"id"`
	RecipientID string         `db:"recipient_id"`
	SenderID    string         `db:"sender_id"`
	Type        string         `db:"type"`
	SubjectID   sql.NullString `db:"subject_id"`
	Message     string         `db:"message"`
	IsRead      int64          `db:"is_read"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r notificationRow) toNotification() notification.Notification {
	n := notification.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		SenderID:    r.SenderID,
		Type:        notification.Type(r.Type),
		Message:     r.Message,
		Read:        r.IsRead != 0,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.SubjectID.Valid {
		subject := r.SubjectID.String
		n.SubjectID = &subject
	}
	return n
}

// InsertNotification は通知を保存し、新しく割り当てたUUIDを返す。
// 引数のIDとReadは無視し、常に未読として保存する。
func (s *SQLiteStore) InsertNotification(ctx context.Context, n notification.Notification) (string, error) {
	id := uuid.New().String()

	var subject sql.NullString
	if n.SubjectID != nil {
		subject = sql.NullString{String: *n.SubjectID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, sender_id, type, subject_id, message, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		id, n.RecipientID, n.SenderID, string(n.Type), subject, n.Message, n.CreatedAt.UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("通知の挿入に失敗: %w", err)
	}
	return id, nil
}

// FindByRecipient は受信者宛ての通知を作成日時の降順で返す。
// 作成日時が同じ場合は後から挿入したものを先に返す。
func (s *SQLiteStore) FindByRecipient(ctx context.Context, userID string, page notification.Page) ([]notification.Notification, error) {
	limit := -1
	if page.Limit > 0 {
		limit = page.Limit
	}
	offset := max(page.Offset, 0)

	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, recipient_id, sender_id, type, subject_id, message, is_read, created_at
		FROM notifications
		WHERE recipient_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("通知の検索に失敗: %w", err)
	}

	ns := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		ns = append(ns, r.toNotification())
	}
	return ns, nil
}

// CountUnread は受信者宛ての未読通知の件数を返す。
func (s *SQLiteStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE recipient_id = ? AND is_read = 0", userID,
	); err != nil {
		return 0, fmt.Errorf("未読件数の集計に失敗: %w", err)
	}
	return count, nil
}

// MarkRead は受信者が一致する通知を既読にする。該当しない場合は何もしない。
func (s *SQLiteStore) MarkRead(ctx context.Context, id, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE id = ? AND recipient_id = ? AND is_read = 0",
		id, userID,
	); err != nil {
		return fmt.Errorf("通知 %s の既読化に失敗: %w", id, err)
	}
	return nil
}

// MarkAllRead は受信者宛ての未読通知を1つのUPDATE文で既読にする。
func (s *SQLiteStore) MarkAllRead(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = 1 WHERE recipient_id = ? AND is_read = 0",
		userID,
	); err != nil {
		return fmt.Errorf("全通知の既読化に失敗: %w", err)
	}
	return nil
}

// userRow はusersテーブルの1行。
type userRow struct {
	ID        string         `db:"id"`
	Name      string         `db:"name"`
	AvatarURL sql.NullString `db:"avatar_url"`
}

// FindUser はユーザーの表示情報を返す。存在しない場合はnotification.ErrUserNotFoundを返す。
func (s *SQLiteStore) FindUser(ctx context.Context, id string) (*notification.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, "SELECT id, name, avatar_url FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notification.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー %s の取得に失敗: %w", id, err)
	}

	u := &notification.User{ID: row.ID, Name: row.Name}
	if row.AvatarURL.Valid && row.AvatarURL.String != "" {
		avatar := row.AvatarURL.String
		u.AvatarURL = &avatar
	}
	return u, nil
}

// UpsertUser はユーザーの表示情報を作成または更新する。
func (s *SQLiteStore) UpsertUser(ctx context.Context, u notification.User) error {
	var avatar sql.NullString
	if u.AvatarURL != nil {
		avatar = sql.NullString{String: *u.AvatarURL, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, avatar_url, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`,
		u.ID, u.Name, avatar, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ユーザー %s の保存に失敗: %w", u.ID, err)
	}
	return nil
}
