package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Credentials holds the single account the server accepts.
// PasswordHash is an optional bcrypt hash; when set it is checked
// instead of the plaintext Password.
type Credentials struct {
	Username     string
	Password     string
	PasswordHash string
}

// BasicAuth guards a route group with HTTP Basic Auth.
// Username and password are always both compared so a mismatch in one
// does not short-circuit the timing of the other.
func BasicAuth(creds Credentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			unauthorized(c)
			return
		}

		validUser := subtle.ConstantTimeCompare([]byte(username), []byte(creds.Username)) == 1

		var validPass bool
		if creds.PasswordHash != "" {
			validPass = CheckPassword(password, creds.PasswordHash)
		} else {
			validPass = subtle.ConstantTimeCompare([]byte(password), []byte(creds.Password)) == 1
		}

		if !validUser || !validPass {
			unauthorized(c)
			return
		}

		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Basic realm="Login Required"`)
	c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	c.Abort()
}
