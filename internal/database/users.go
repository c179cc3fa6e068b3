package database

import (
	"context"
	"database/sql"
	"time"

	"massagebot/internal/models"
)

// GetUserByID returns a user by internal id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.getUser(ctx, "id = ?", id)
}

// GetUserByTelegramID returns a user by their Telegram account id.
func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	return db.getUser(ctx, "telegram_user_id = ?", telegramID)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, telegram_user_id, username, first_name, last_name, phone, created_at
		FROM users WHERE `+where, arg)

	var u models.User
	var username, first, last, phone sql.NullString
	err := row.Scan(&u.ID, &u.TelegramUserID, &username, &first, &last, &phone, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.FirstName = first.String
	u.LastName = last.String
	u.PhoneNumber = phone.String
	return &u, nil
}

// CreateOrUpdateUser upserts a user on first contact and refreshes their
// profile fields on later contacts. Returns the stored user.
func (db *DB) CreateOrUpdateUser(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (telegram_user_id, username, first_name, last_name, phone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(telegram_user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE users.phone END,
			updated_at = excluded.updated_at`,
		u.TelegramUserID, u.Username, u.FirstName, u.LastName, u.PhoneNumber, now, now)
	if err != nil {
		return nil, err
	}
	return db.GetUserByTelegramID(ctx, u.TelegramUserID)
}
