package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/quizcoach/internal/model"
)

// ContextKeySession is the Gin context key for the raw session token.
const ContextKeySession = "quiz_session"

// QuizSession picks up the session token from the X-Quiz-Session header,
// falling back to the quiz_session cookie. A missing token is not an error:
// the first submission of a quiz opens the session.
func QuizSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(model.SessionHeader)
		if token == "" {
			if cookie, err := c.Cookie(model.SessionCookie); err == nil {
				token = cookie
			}
		}
		if token != "" {
			c.Set(ContextKeySession, token)
		}
		c.Next()
	}
}

// GetSessionToken returns the token stored by QuizSession, or "".
func GetSessionToken(c *gin.Context) string {
	return c.GetString(ContextKeySession)
}

// WriteSessionToken hands a newly issued token back in both the header and
// the cookie.
func WriteSessionToken(c *gin.Context, token string, maxAge time.Duration) {
	c.Set(ContextKeySession, token)
	c.Header(model.SessionHeader, token)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(model.SessionCookie, token, int(maxAge.Seconds()), "/", "", false, true)
}
