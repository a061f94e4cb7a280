package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"trustchat/internal/models"
)

var (
	ErrGroupNotFound = errors.New("group not found")
	ErrAlreadyMember = errors.New("user already in group")
)

const groupColumns = `id, name, admin_id, group_pic, created_at, updated_at`

// GroupRepository abstracts group persistence.
type GroupRepository interface {
	Create(ctx context.Context, group models.ChatGroup) (models.ChatGroup, error)
	Get(ctx context.Context, groupID string) (models.ChatGroup, error)
	AddMember(ctx context.Context, groupID, userID string) error
	Update(ctx context.Context, groupID string, name, groupPic *string) (models.ChatGroup, error)
	ListForUser(ctx context.Context, userID string) ([]models.ChatGroup, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// Create inserts the group and its members atomically. The caller has already
// folded the admin into Members.
func (r *GroupRepo) Create(ctx context.Context, group models.ChatGroup) (models.ChatGroup, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ChatGroup{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var created models.ChatGroup
	if err = tx.QueryRowxContext(ctx, `INSERT INTO groups (name, admin_id) VALUES ($1, $2) RETURNING `+groupColumns, group.Name, group.Admin).
		StructScan(&created); err != nil {
		return models.ChatGroup{}, err
	}

	for _, id := range group.Members {
		if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, created.ID, id); err != nil {
			return models.ChatGroup{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.ChatGroup{}, err
	}
	created.Members = append([]string(nil), group.Members...)
	return created, nil
}

// Get fetches a group with its member ids in join order.
func (r *GroupRepo) Get(ctx context.Context, groupID string) (models.ChatGroup, error) {
	if !validID(groupID) {
		return models.ChatGroup{}, ErrGroupNotFound
	}
	var group models.ChatGroup
	err := r.db.GetContext(ctx, &group, `SELECT `+groupColumns+` FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatGroup{}, ErrGroupNotFound
	}
	if err != nil {
		return models.ChatGroup{}, err
	}
	if err := r.db.SelectContext(ctx, &group.Members, `SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY joined_at ASC, user_id ASC`, groupID); err != nil {
		return models.ChatGroup{}, err
	}
	return group, nil
}

// AddMember appends userID to the member set. ErrAlreadyMember is returned when
// the row already exists, so concurrent joins cannot duplicate membership.
func (r *GroupRepo) AddMember(ctx context.Context, groupID, userID string) error {
	if !validID(groupID) {
		return ErrGroupNotFound
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, groupID, userID)
	if err != nil {
		return err
	}
	if err = expectAffected(res, ErrAlreadyMember); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE groups SET updated_at = NOW() WHERE id=$1`, groupID); err != nil {
		return err
	}
	return tx.Commit()
}

// Update sets the non-nil fields and bumps updated_at.
func (r *GroupRepo) Update(ctx context.Context, groupID string, name, groupPic *string) (models.ChatGroup, error) {
	if !validID(groupID) {
		return models.ChatGroup{}, ErrGroupNotFound
	}
	var group models.ChatGroup
	err := r.db.QueryRowxContext(ctx, `UPDATE groups SET name = COALESCE($2, name), group_pic = COALESCE($3, group_pic), updated_at = NOW()
        WHERE id=$1 RETURNING `+groupColumns, groupID, name, groupPic).StructScan(&group)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatGroup{}, ErrGroupNotFound
	}
	if err != nil {
		return models.ChatGroup{}, err
	}
	if err := r.db.SelectContext(ctx, &group.Members, `SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY joined_at ASC, user_id ASC`, groupID); err != nil {
		return models.ChatGroup{}, err
	}
	return group, nil
}

// ListForUser returns groups that include the user, most recently updated first.
func (r *GroupRepo) ListForUser(ctx context.Context, userID string) ([]models.ChatGroup, error) {
	var groups []models.ChatGroup
	err := r.db.SelectContext(ctx, &groups, `SELECT g.id, g.name, g.admin_id, g.group_pic, g.created_at, g.updated_at FROM groups g
        INNER JOIN group_members gm ON gm.group_id = g.id WHERE gm.user_id=$1 ORDER BY g.updated_at DESC`, userID)
	if err != nil || len(groups) == 0 {
		return groups, err
	}

	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	var rows []struct {
		GroupID string `db:"group_id"`
		UserID  string `db:"user_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT group_id, user_id FROM group_members WHERE group_id = ANY($1) ORDER BY joined_at ASC, user_id ASC`, pq.Array(ids)); err != nil {
		return nil, err
	}
	byGroup := make(map[string][]string, len(groups))
	for _, row := range rows {
		byGroup[row.GroupID] = append(byGroup[row.GroupID], row.UserID)
	}
	for i := range groups {
		groups[i].Members = byGroup[groups[i].ID]
	}
	return groups, nil
}

// IsMember checks membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	if !validID(groupID) || !validID(userID) {
		return false, nil
	}
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID)
	return exists, err
}
