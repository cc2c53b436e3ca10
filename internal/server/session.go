package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie carries the id that keys a browser's latest result.
const SessionCookie = "medipredict_session"

// session returns the caller's session id. With create set, a missing or
// malformed cookie is replaced by a fresh one.
func (h *handlers) session(c *gin.Context, create bool) string {
	if v, err := c.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(v); err == nil {
			return v
		}
	}
	if !create {
		return ""
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, int(h.sessionTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
	return id
}
