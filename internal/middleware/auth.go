// Package middleware содержит HTTP middleware сервиса маркетплейса.
package middleware

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mmeshcher/marketplace-installments/internal/authz"
	"github.com/mmeshcher/marketplace-installments/internal/model"
)

type contextKey string

const actorKey contextKey = "actor"

const (
	defaultTokenTTL = 24 * time.Hour
	tokenIssuer     = "marketplace-installments"
)

var signingMethod = jwt.SigningMethodHS256

// Claims — содержимое токена доступа.
type Claims struct {
	AccountID   uuid.UUID  `json:"account_id"`
	Role        model.Role `json:"role"`
	Permissions []string   `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware выпускает и проверяет JWT, передаваемые в заголовке Authorization.
type AuthMiddleware struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthMiddleware создаёт AuthMiddleware. Пустой секрет заменяется случайным ключом,
// тогда токены перестают действовать после перезапуска.
func NewAuthMiddleware(secret string, ttl time.Duration) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	return &AuthMiddleware{
		secretKey: key,
		ttl:       ttl,
		now:       time.Now,
	}
}

// IssueToken подписывает токен для учётной записи и возвращает его вместе со сроком действия.
func (a *AuthMiddleware) IssueToken(account *model.Account) (string, time.Time, error) {
	now := a.now()
	expiresAt := now.Add(a.ttl)

	claims := Claims{
		AccountID:   account.ID,
		Role:        account.Role,
		Permissions: account.Permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   account.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(a.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (a *AuthMiddleware) parseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(token *jwt.Token) (any, error) {
			return a.secretKey, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.AccountID == uuid.Nil || !claims.Role.IsValid() {
		return nil, errors.New("token has no account")
	}
	return claims, nil
}

// Middleware проверяет Bearer-токен и кладёт участника запроса в контекст.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, http.StatusUnauthorized, "authorization token is required")
			return
		}

		claims, err := a.parseToken(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		actor := authz.Actor{ID: claims.AccountID, Role: claims.Role, Permissions: claims.Permissions}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole пропускает только участников с одной из указанных ролей.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := GetActorFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authorization token is required")
				return
			}
			if !slices.Contains(roles, actor.Role) {
				writeError(w, http.StatusForbidden, "access denied for role "+string(actor.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithActor возвращает контекст с участником запроса.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// GetActorFromContext извлекает участника запроса из контекста.
func GetActorFromContext(ctx context.Context) (authz.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(authz.Actor)
	return actor, ok
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": message,
	})
}
