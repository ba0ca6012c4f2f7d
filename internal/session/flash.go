package session

import (
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
)

// FlashCookieName is the cookie carrying the flash-message session.
const FlashCookieName = "flash"

// NewFlashManager creates the session manager used only for one-shot UI
// messages. Authentication state never goes through it.
func NewFlashManager(secure bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = memstore.NewWithCleanupInterval(5 * time.Minute)

	sm.Lifetime = time.Hour
	sm.IdleTimeout = 20 * time.Minute
	sm.Cookie.Name = FlashCookieName
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	sm.Cookie.Path = "/"

	return sm
}
