package main

import "time"

// Attendee status values. The public confirmation links only ever carry
// attending or declined; invited is applied when invitations go out.
const (
	StatusInvited   = "invited"
	StatusAttending = "attending"
	StatusDeclined  = "declined"
)

// Neighbor represents a registered household in the directory.
// Email and phone are optional; a neighbor without an email is simply
// skipped when invitations are sent.
type Neighbor struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// MenuItem is a dish on a party's menu. BroughtBy stays nil until an
// attending neighbor claims the dish; at most one item per party may
// carry a given neighbor id.
type MenuItem struct {
	Name      string  `json:"name"`
	BroughtBy *string `json:"broughtBy"`
}

// Attendee is the RSVP relationship between one neighbor and one party.
// A party holds at most one attendee record per neighbor.
type Attendee struct {
	NeighborID string `json:"neighborId"`
	Status     string `json:"status"`
}

// Party is the core event model. Menu and attendees are always replaced
// as whole arrays on write, never patched element by element.
type Party struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	Place       string     `json:"place"`
	Comments    string     `json:"comments,omitempty"`
	Menu        []MenuItem `json:"menu"`
	Attendees   []Attendee `json:"attendees"`
}
