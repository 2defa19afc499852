package gateway

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CSRF cookie and token carriers.
const (
	DefaultCSRFCookie = "csrftoken"
	CSRFHeader        = "X-CSRFToken"
	CSRFFormField     = "csrfmiddlewaretoken"

	csrfCookieMaxAge = 365 * 24 * 60 * 60
)

// CSRF rejects unsafe requests whose token does not match the cookie named
// cookieName. The token is read from the X-CSRFToken header, then from the
// csrfmiddlewaretoken form field.
func CSRF(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			c.Next()
			return
		}

		cookie, err := c.Cookie(cookieName)
		token := c.GetHeader(CSRFHeader)
		if token == "" {
			token = c.PostForm(CSRFFormField)
		}
		if err != nil || cookie == "" || token == "" ||
			subtle.ConstantTimeCompare([]byte(cookie), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CSRF verification failed"})
			return
		}
		c.Next()
	}
}

// ensureCSRFCookie sets a fresh token cookie unless the request already
// carries one.
func ensureCSRFCookie(c *gin.Context, name string) {
	if v, err := c.Cookie(name); err == nil && v != "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	// Readable by the frontend, which echoes it in X-CSRFToken.
	c.SetCookie(name, uuid.NewString(), csrfCookieMaxAge, "/", "", false, false)
}
