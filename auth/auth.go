package auth

import (
	"crypto/sha256"
	"net/http"

	"automarket/config"
	"automarket/models"

	"github.com/gorilla/sessions"
)

var Store *sessions.CookieStore

func InitStore() {
	// Derive two 32-byte keys from the session key to ensure secure encryption
	// Auth key for signing (HMAC)
	authKey := sha256.Sum256([]byte(config.AppConfig.SessionKey + "auth"))
	// Encryption key for content encryption (AES)
	encKey := sha256.Sum256([]byte(config.AppConfig.SessionKey + "encryption"))

	Store = sessions.NewCookieStore(authKey[:], encKey[:])

	Store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 days
		HttpOnly: true,
		Secure:   config.AppConfig.ListenPort != 8080, // Default to true unless dev port
		SameSite: http.SameSiteLaxMode,
	}
}

const SessionName = "automarket-session"

// Current returns the identity snapshot held by the request's session
// cookie, or nil for anonymous visitors. Never fails on absent data.
func Current(r *http.Request) *models.Session {
	session, _ := Store.Get(r, SessionName)
	id, ok := session.Values["accountID"].(string)
	if !ok || id == "" {
		return nil
	}
	name, _ := session.Values["name"].(string)
	role, _ := session.Values["role"].(string)
	return &models.Session{AccountID: id, Name: name, Role: role}
}

// SetSession persists the {id, name, role} snapshot of an authenticated
// account. The snapshot is trusted as-is on later requests; there is no
// server-side session record.
func SetSession(w http.ResponseWriter, r *http.Request, account models.Account) {
	session, _ := Store.Get(r, SessionName)
	session.Values["accountID"] = account.ID
	session.Values["name"] = account.Name
	session.Values["role"] = account.Role
	session.Save(r, w)
}

func ClearSession(w http.ResponseWriter, r *http.Request) {
	session, _ := Store.Get(r, SessionName)
	session.Options.MaxAge = -1
	session.Save(r, w)
}
