package models

import "time"

// User is the directory record of a user. The core only reads it.
type User struct {
	ID         string    `db:"id" json:"_id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"fullName"`
	ProfilePic string    `db:"profile_pic" json:"profilePic"`
	Bio        string    `db:"bio" json:"bio"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// Projection returns the sender view of the user.
func (u User) Projection() Sender {
	return Sender{ID: u.ID, FullName: u.FullName, ProfilePic: u.ProfilePic}
}

// Contacts is the sidebar view: every other user plus unseen direct message counts keyed by sender.
type Contacts struct {
	Users          []User         `json:"users"`
	UnseenMessages map[string]int `json:"unseenMessages"`
}
