package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// UserIDKey carries the authenticated marketplace user id through the request
// context.
const UserIDKey contextKey = "user_id"

// SessionClaims is the session token payload minted by the marketplace auth
// service. Settlement only consumes the user id.
type SessionClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// RequireAuth rejects requests without a valid HMAC-signed session token.
// Settlement endpoints never act on behalf of an anonymous caller.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := resolveSession(r, jwtSecret)
			if err != nil {
				writeAuthError(w, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveSession(r *http.Request, jwtSecret string) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("authorization header is not a bearer token")
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid session token")
	}
	if claims.UserID == "" {
		return "", fmt.Errorf("session token carries no user id")
	}
	return claims.UserID, nil
}

// GetUserID returns the authenticated user id placed in the context by
// RequireAuth.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  "unauthorized",
	})
}
