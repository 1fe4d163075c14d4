package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository abstracts user persistence.
type UserRepository interface {
	ResolveOrCreate(ctx context.Context, ident models.Identity) (models.User, error)
	GetBySubject(ctx context.Context, subject string) (models.User, error)
	GetByID(ctx context.Context, userID int) (models.User, error)
	GetByIDs(ctx context.Context, userIDs []int) ([]models.User, error)
	SetOnlineStatus(ctx context.Context, userID int, isOnline bool) error
	Search(ctx context.Context, meID int, term string) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, external_subject, display_name, email, avatar_url, is_online, last_seen_at`

// ResolveOrCreate looks the subject up and inserts a profile on first sight.
// When the provider's attributes drifted it patches only those fields;
// repeated calls with an unchanged identity perform no write.
func (r *UserRepo) ResolveOrCreate(ctx context.Context, ident models.Identity) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE external_subject=$1`, ident.Subject)
	if err == nil {
		if user.DisplayName == ident.DisplayName && user.Email == ident.Email && user.AvatarURL == ident.AvatarURL {
			return user, nil
		}
		err = r.db.GetContext(ctx, &user, `UPDATE users SET display_name=$2, email=$3, avatar_url=$4
            WHERE external_subject=$1 RETURNING `+userColumns, ident.Subject, ident.DisplayName, ident.Email, ident.AvatarURL)
		return user, err
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, err
	}

	err = r.db.GetContext(ctx, &user, `INSERT INTO users (external_subject, display_name, email, avatar_url, is_online, last_seen_at)
        VALUES ($1, $2, $3, $4, TRUE, NOW())
        ON CONFLICT (external_subject) DO NOTHING
        RETURNING `+userColumns, ident.Subject, ident.DisplayName, ident.Email, ident.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost a concurrent first-sight race; the winner's row serves.
		err = r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE external_subject=$1`, ident.Subject)
	}
	return user, err
}

// GetBySubject fetches the profile for an identity-provider subject.
func (r *UserRepo) GetBySubject(ctx context.Context, subject string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE external_subject=$1`, subject)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetByIDs fetches multiple users in one round trip.
func (r *UserRepo) GetByIDs(ctx context.Context, userIDs []int) ([]models.User, error) {
	if len(userIDs) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, pq.Array(userIDs))
	return users, err
}

// SetOnlineStatus patches presence and the last-seen timestamp.
func (r *UserRepo) SetOnlineStatus(ctx context.Context, userID int, isOnline bool) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET is_online=$2, last_seen_at=NOW() WHERE id=$1`, userID, isOnline)
	return err
}

// Search matches display name or email case-insensitively, excluding the caller.
func (r *UserRepo) Search(ctx context.Context, meID int, term string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users
        WHERE id<>$1 AND (display_name ILIKE '%' || $2 || '%' OR email ILIKE '%' || $2 || '%')
        ORDER BY display_name`, meID, term)
	return users, err
}
