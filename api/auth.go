/*
auth.go - Token issuance and authentication middleware

PURPOSE:
  Resolves the acting employee for every API call. Login exchanges
  email+password for a signed JWT; the middleware validates the token and
  puts the actor id on the request context. Authorization itself (who may
  approve what) stays in the leave package - this file only answers "who
  is calling".

TOKENS:
  HS256-signed JWT carrying the employee id and role, with standard
  issued-at/expiry claims. Stateless: no server-side session store, so
  revocation before expiry is out of scope.
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/leave-engine/leave"
)

type contextKey string

const actorKey contextKey = "actor_id"

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for emp valid for ttl.
func IssueToken(secret []byte, emp *leave.Employee, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		EmployeeID: emp.ID,
		Role:       string(emp.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   emp.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a token string and returns its claims.
func ParseToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.EmployeeID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// authenticate is the Bearer-token middleware for all protected routes.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "missing or malformed Authorization header", nil)
			return
		}

		claims, err := ParseToken(h.jwtSecret, parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, claims.EmployeeID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorID returns the authenticated employee id, or "" outside the
// authenticate middleware.
func actorID(r *http.Request) string {
	id, _ := r.Context().Value(actorKey).(string)
	return id
}
