package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"shop-api/models"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type contextKey string

const UserContextKey contextKey = "user"

// Claims is the payload of an access token.
type Claims struct {
	UserID uint   `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 access tokens and loads the user
// they belong to.
type Authenticator struct {
	DB     *gorm.DB
	Secret []byte
	TTL    time.Duration
}

// IssueToken signs a token for user valid for a.TTL.
func (a *Authenticator) IssueToken(user *models.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// ParseToken verifies a token and returns its claims.
func (a *Authenticator) ParseToken(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// resolve loads the active user for the request's bearer token. The status
// and code describe the failure when err is not nil.
func (a *Authenticator) resolve(r *http.Request) (user *models.User, status int, code string, err error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, http.StatusUnauthorized, "NO_TOKEN", errors.New("Authentication required")
	}

	claims, err := a.ParseToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, http.StatusUnauthorized, "INVALID_TOKEN", errors.New("Invalid token")
	}

	var u models.User
	result := a.DB.WithContext(r.Context()).First(&u, claims.UserID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, http.StatusUnauthorized, "USER_NOT_FOUND", errors.New("User not found")
	}
	if result.Error != nil {
		return nil, http.StatusInternalServerError, "SERVER_ERROR", errors.New("DB Error")
	}
	if !u.IsActive {
		return nil, http.StatusForbidden, "ACCOUNT_DISABLED", errors.New("Account is disabled")
	}
	return &u, 0, "", nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// user in the request context.
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, status, code, err := a.resolve(r)
		if err != nil {
			WriteError(w, status, code, err.Error(), nil)
			return
		}
		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalUser attaches the user when a valid token is present and lets
// anonymous requests through unchanged.
func (a *Authenticator) OptionalUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			if user, _, _, err := a.resolve(r); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), UserContextKey, user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Authorize allows only users whose role is listed. It must run after
// Authenticate.
func Authorize(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				WriteError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "Authentication required", nil)
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteError(w, http.StatusForbidden, "FORBIDDEN", "Access denied. Insufficient permissions", nil)
		})
	}
}

// CurrentUser returns the user stored by Authenticate or OptionalUser.
func CurrentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(UserContextKey).(*models.User)
	return user
}
