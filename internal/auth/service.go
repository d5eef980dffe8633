// Package auth resolves API requests to configured users and answers the
// edit-privilege check the progression engine consumes.
package auth

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/DianeXD/BetterQuesting/internal/config"
)

type ctxKey string

const userContextKey ctxKey = "betterquesting.auth.user"

// User is an authenticated player.
type User struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Editor bool      `json:"editor"`
}

type Service struct {
	byToken map[string]User
	editors map[uuid.UUID]bool
	logger  *log.Logger
}

// NewService builds the token table from configured users. Users with an
// unparseable ID are skipped with a warning rather than failing startup.
func NewService(users []config.User, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		byToken: map[string]User{},
		editors: map[uuid.UUID]bool{},
	}
	for _, cu := range users {
		id, err := uuid.Parse(cu.ID)
		if err != nil {
			logger.Printf("warn: auth: user %q has invalid id %q, skipped", cu.Name, cu.ID)
			continue
		}
		u := User{ID: id, Name: cu.Name, Editor: cu.Editor}
		if cu.Token != "" {
			s.byToken[cu.Token] = u
		}
		if cu.Editor {
			s.editors[id] = true
		}
	}
	s.logger = logger
	return s
}

// CanUserEdit is the privilege check consumed by the progression engine.
func (s *Service) CanUserEdit(userID uuid.UUID) bool {
	return s.editors[userID]
}

// AuthenticateRequest resolves the request's bearer token to a user.
func (s *Service) AuthenticateRequest(r *http.Request) (User, bool) {
	token := strings.TrimSpace(r.Header.Get("X-Api-Token"))
	if token == "" {
		h := r.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	if token == "" {
		return User{}, false
	}
	u, ok := s.byToken[token]
	return u, ok
}

// RequireAPI guards an API handler, putting the resolved user on the
// request context.
func (s *Service) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.AuthenticateRequest(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserContext(r.Context(), u)))
	})
}

func withUserContext(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userContextKey).(User)
	return u, ok
}
