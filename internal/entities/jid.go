package entities

import "strings"

// JID server suffixes as they appear on the wire.
const (
	userServer   = "s.whatsapp.net"
	hiddenServer = "lid"
	groupServer  = "g.us"
)

// NormalizeContactID reduces any accepted JID variant to its bare
// phone-like key: "972501234567:12@s.whatsapp.net" -> "972501234567".
// Group and broadcast JIDs are rejected (ok = false); they never produce
// a Contact.
func NormalizeContactID(jid string) (string, bool) {
	user := jid
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		server := jid[i+1:]
		switch server {
		case userServer, hiddenServer:
		default:
			return "", false
		}
		user = jid[:i]
	}
	// Strip the device part of an AD-JID (user:device@server).
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	if user == "" {
		return "", false
	}
	return user, true
}

// CanonicalUserJID expands a bare number to a full user JID; full JIDs pass
// through unchanged. Used by the query surface, which accepts both forms.
func CanonicalUserJID(id string) string {
	if strings.IndexByte(id, '@') >= 0 {
		return id
	}
	return id + "@" + userServer
}
