package models

import (
	"strings"
	"time"
)

// Location is a shared registry entry for a venue. Once an operator has
// verified it, re-scraping may add aliases but never overwrites its fields.
type Location struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Aliases    []string  `json:"aliases,omitempty"`
	Street     string    `json:"street,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	City       string    `json:"city,omitempty"`
	Latitude   float64   `json:"latitude,omitempty"`
	Longitude  float64   `json:"longitude,omitempty"`
	Verified   bool      `json:"verified"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasCoordinates reports whether the location carries usable coordinates.
func (l *Location) HasCoordinates() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// MatchNames returns the canonical name plus all aliases.
func (l *Location) MatchNames() []string {
	return append([]string{l.Name}, l.Aliases...)
}

// AddAlias records an alternate spelling unless it is already known.
func (l *Location) AddAlias(alias string) {
	alias = strings.TrimSpace(alias)
	if alias == "" || strings.EqualFold(alias, l.Name) {
		return
	}
	for _, a := range l.Aliases {
		if strings.EqualFold(a, alias) {
			return
		}
	}
	l.Aliases = append(l.Aliases, alias)
}

// Organizer is a shared registry entry for an event organizer.
type Organizer struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Aliases   []string  `json:"aliases,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Website   string    `json:"website,omitempty"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchNames returns the canonical name plus all aliases.
func (o *Organizer) MatchNames() []string {
	return append([]string{o.Name}, o.Aliases...)
}

// AddAlias records an alternate spelling unless it is already known.
func (o *Organizer) AddAlias(alias string) {
	alias = strings.TrimSpace(alias)
	if alias == "" || strings.EqualFold(alias, o.Name) {
		return
	}
	for _, a := range o.Aliases {
		if strings.EqualFold(a, alias) {
			return
		}
	}
	o.Aliases = append(o.Aliases, alias)
}
