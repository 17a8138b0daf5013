package entities

import "time"

// Contact is the last-known profile of one participant, keyed by the
// normalized phone-like part of their JID. Group JIDs never become contacts.
type Contact struct {
	Phone        string    `json:"phone"`
	DisplayName  string    `json:"displayName,omitempty"`
	NotifyName   string    `json:"notifyName,omitempty"`
	VerifiedName string    `json:"verifiedName,omitempty"`
	IsKnown      bool      `json:"isKnownContact"`
	OriginalJID  string    `json:"originalJid"`
	LastSeen     time.Time `json:"lastSeen"`
}

// ContactUpdate carries one observation of a participant. Empty fields are
// treated as "not observed" and never clobber stored values on merge.
type ContactUpdate struct {
	JID          string
	DisplayName  string
	NotifyName   string
	VerifiedName string
	IsKnown      bool
}
