package models

import (
	"fmt"
	"slices"
	"time"
)

// Event is a community event persisted in the "events" collection.
type Event struct {
	ID                    string    `bson:"_id" json:"id"`
	Title                 string    `bson:"title" json:"title"`
	Description           string    `bson:"description" json:"description"`
	StartDate             time.Time `bson:"startDate" json:"startDate"`
	EndDate               time.Time `bson:"endDate" json:"endDate"`
	Location              string    `bson:"location" json:"location"`
	Category              string    `bson:"category" json:"category"`
	ImageURL              string    `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Capacity              *int      `bson:"capacity,omitempty" json:"capacity,omitempty"`
	Organizer             string    `bson:"organizer" json:"organizer"`
	Attendees             []string  `bson:"attendees" json:"attendees"`
	GoogleCalendarEventID string    `bson:"googleCalendarEventId,omitempty" json:"googleCalendarEventId,omitempty"`
	CreatedAt             time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasAttendee reports whether userID is registered for the event.
func (e *Event) HasAttendee(userID string) bool {
	return slices.Contains(e.Attendees, userID)
}

// Full reports whether a capacity is set and already reached.
func (e *Event) Full() bool {
	return e.Capacity != nil && len(e.Attendees) >= *e.Capacity
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (e *Event) Clone() *Event {
	c := *e
	c.Attendees = slices.Clone(e.Attendees)
	if e.Capacity != nil {
		v := *e.Capacity
		c.Capacity = &v
	}
	return &c
}

// EventInput is the payload accepted when creating an event.
type EventInput struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	StartDate   time.Time `json:"startDate" validate:"required"`
	EndDate     time.Time `json:"endDate" validate:"required,gtefield=StartDate"`
	Location    string    `json:"location"`
	Category    string    `json:"category"`
	ImageURL    string    `json:"imageUrl" validate:"omitempty,url"`
	Capacity    *int      `json:"capacity" validate:"omitempty,min=1"`
}

// EventPatch is a partial update; nil fields are left unchanged.
// Organizer and attendees are not patchable.
type EventPatch struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	Location    *string    `json:"location"`
	Category    *string    `json:"category"`
	ImageURL    *string    `json:"imageUrl" validate:"omitempty,url"`
	Capacity    *int       `json:"capacity" validate:"omitempty,min=1"`
}

// Apply merges the patch into e, rejecting results that break event invariants.
func (p *EventPatch) Apply(e *Event) error {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartDate != nil {
		e.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		e.EndDate = *p.EndDate
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.Category != nil {
		e.Category = *p.Category
	}
	if p.ImageURL != nil {
		e.ImageURL = *p.ImageURL
	}
	if p.Capacity != nil {
		if *p.Capacity < len(e.Attendees) {
			return fmt.Errorf("%w: capacity %d is below the %d registered attendees", ErrInvalid, *p.Capacity, len(e.Attendees))
		}
		c := *p.Capacity
		e.Capacity = &c
	}
	if e.EndDate.Before(e.StartDate) {
		return fmt.Errorf("%w: endDate is before startDate", ErrInvalid)
	}
	return nil
}
