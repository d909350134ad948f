package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("entity not found")

// Status is the lifecycle state of a flood report.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusResolved Status = "RESOLVED"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusResolved
}

// Report is a user-submitted flood observation.
type Report struct {
	ID          string                          `json:"id" gorm:"primaryKey;type:text"`
	Location    string                          `json:"location" gorm:"not null"`
	Coordinates datatypes.JSONType[Coordinates] `json:"coordinates" gorm:"not null"`
	WaterLevel  float64                         `json:"waterLevel" gorm:"not null"`
	Description string                          `json:"description" gorm:"not null"`
	ImageURL    *string                         `json:"imageUrl"`
	Status      Status                          `json:"status" gorm:"type:text;not null"`
	UserID      string                          `json:"userId" gorm:"type:text;not null;index"`
	CreatedAt   time.Time                       `json:"createdAt" gorm:"index"`

	// Owner is only populated by listings.
	Owner *Owner `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

// ReportChanges holds the fields an update may touch. Status is applied only
// when non-nil; UserID and CreatedAt are never part of an update.
type ReportChanges struct {
	Location    string
	Coordinates Coordinates
	WaterLevel  float64
	Description string
	ImageURL    *string
	Status      *Status
}

// Apply copies the changes onto r.
func (c ReportChanges) Apply(r *Report) {
	r.Location = c.Location
	r.Coordinates = datatypes.NewJSONType(c.Coordinates)
	r.WaterLevel = c.WaterLevel
	r.Description = c.Description
	r.ImageURL = c.ImageURL
	if c.Status != nil {
		r.Status = *c.Status
	}
}
