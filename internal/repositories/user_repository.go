package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"trustchat/internal/models"
)

const userColumns = `id, email, full_name, profile_pic, bio, created_at`

// UserRepository reads the user directory. Accounts are owned elsewhere.
type UserRepository interface {
	Resolve(ctx context.Context, userIDs []string) (map[string]models.Sender, error)
	ListExcept(ctx context.Context, userID string) ([]models.User, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Resolve loads sender projections for ids. Unknown ids are absent from the result.
func (r *UserRepo) Resolve(ctx context.Context, userIDs []string) (map[string]models.Sender, error) {
	out := make(map[string]models.Sender, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var senders []models.Sender
	if err := r.db.SelectContext(ctx, &senders, `SELECT id, full_name, profile_pic FROM users WHERE id = ANY($1)`, pq.Array(userIDs)); err != nil {
		return nil, err
	}
	for _, s := range senders {
		out[s.ID] = s
	}
	return out, nil
}

// ListExcept returns every user other than userID, by name.
func (r *UserRepo) ListExcept(ctx context.Context, userID string) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users WHERE id <> $1 ORDER BY full_name ASC`, userID)
	return users, err
}
