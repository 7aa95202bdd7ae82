package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/zenazn/goji/web"

	"github.com/lwansbrough/craft2/craft"
)

// authConfig is the [auth] section.  With no secret key every request is allowed.
type authConfig struct {
	AuthFile  string `toml:"auth_file"`
	SecretKey string `toml:"secret_key"`
}

// GenerateJWT returns an HS256 token carrying the user claim.
func GenerateJWT(secret, user string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("no secret key configured for JWT signing")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user": user})
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("error with JWT signing: %v", err)
	}
	return tokenString, nil
}

// loadAuthFile reads a JSON object mapping users to "read", "write" or "readwrite".
func loadAuthFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var users map[string]string
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("bad auth file %q: %v", path, err)
	}
	return users, nil
}

func readRequest(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// permitted returns true if the user may make a request with the given method.  Without an
// auth file any authenticated user may write.
func (s *Server) permitted(user, method string) bool {
	if s.users == nil {
		return true
	}
	priv, found := s.users[user]
	if !found {
		if priv, found = s.users["*"]; !found {
			return false
		}
	}
	read := readRequest(method)
	switch priv {
	case "readwrite":
		return true
	case "read":
		return read
	case "write":
		return !read
	default:
		craft.Errorf("Authorized user %q has unparsable privilege %q\n", user, priv)
		return false
	}
}

// isAuthorized is middleware that validates a JWT on write requests and sets c.Env["user"]
// to the authenticated user.
func (s *Server) isAuthorized(c *web.C, h http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		if s.config.Auth.SecretKey == "" || readRequest(r.Method) {
			h.ServeHTTP(w, r)
			return
		}
		reqToken := r.Header.Get("Authorization")
		if reqToken == "" {
			Unauthorized(w, r, "JWT required via Authorization in request header")
			return
		}
		splitToken := strings.Split(reqToken, "Bearer")
		if len(splitToken) != 2 || strings.TrimSpace(splitToken[1]) == "" {
			Unauthorized(w, r, "bearer not in proper format")
			return
		}
		token, err := jwt.Parse(strings.TrimSpace(splitToken[1]), func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("error signing method: %v", token.Header["alg"])
			}
			return []byte(s.config.Auth.SecretKey), nil
		})
		if err != nil {
			Unauthorized(w, r, "error parsing JWT: %v", err)
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || !token.Valid {
			Unauthorized(w, r, "failed authorization")
			return
		}
		user, ok := claims["user"].(string)
		if !ok {
			Unauthorized(w, r, "user %v is not a simple string", claims["user"])
			return
		}
		if !s.permitted(user, r.Method) {
			Forbidden(w, r, "user %q is not authorized", user)
			return
		}
		if c.Env != nil {
			c.Env["user"] = user
		}
		h.ServeHTTP(w, r)
	}
	return http.HandlerFunc(fn)
}
