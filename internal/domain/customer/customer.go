package customer

import (
	"strings"
	"time"
)

type Customer struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	Name      string    `json:"name" bson:"name"`
	Mobile    string    `json:"mobile" bson:"mobile"`
	Email     string    `json:"email" bson:"email"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Changes holds a partial edit. Nil fields are left as they are.
type Changes struct {
	Name   *string
	Mobile *string
	Email  *string
}

func NewCustomer(id, userID, name, mobile, email string, now time.Time) *Customer {
	return &Customer{
		ID:        id,
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		Mobile:    strings.TrimSpace(mobile),
		Email:     strings.TrimSpace(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply reports whether any field changed.
func (c *Customer) Apply(changes Changes, now time.Time) bool {
	changed := false
	set := func(dst *string, src *string) {
		if src == nil {
			return
		}
		v := strings.TrimSpace(*src)
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&c.Name, changes.Name)
	set(&c.Mobile, changes.Mobile)
	set(&c.Email, changes.Email)
	if changed {
		c.UpdatedAt = now
	}
	return changed
}
