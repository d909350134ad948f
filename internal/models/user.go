package models

import "time"

// User is an identity owned by the external auth service. The report
// service reads it but never writes it outside of seeding.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text"`
	Name      string    `json:"name"`
	Email     string    `json:"email" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
}

// Owner is the public projection of a User attached to listed reports.
type Owner struct {
	ID    string `json:"-"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (Owner) TableName() string { return "users" }
