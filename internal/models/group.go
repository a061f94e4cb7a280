package models

import "time"

// ChatGroup represents a persisted chat group. Members always contain Admin.
type ChatGroup struct {
	ID        string    `db:"id" json:"_id"`
	Name      string    `db:"name" json:"name"`
	Admin     string    `db:"admin_id" json:"admin"`
	Members   []string  `db:"-" json:"-"`
	GroupPic  string    `db:"group_pic" json:"groupPic,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsMember reports whether userID belongs to the group.
func (g ChatGroup) IsMember(userID string) bool {
	for _, id := range g.Members {
		if id == userID {
			return true
		}
	}
	return false
}

// ResolvedGroup is a group with member projections, as sent to clients.
type ResolvedGroup struct {
	ChatGroup
	Members []Sender `json:"members"`
}

// GroupPatch carries the optional fields of a group update.
type GroupPatch struct {
	Name     *string
	GroupPic *string
}
