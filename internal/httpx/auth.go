package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	identityContextKey contextKey = "identity"
	tokenErrContextKey contextKey = "token_error"
)

// Roles carried in the token's role claim. A missing claim means RoleUser.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AuthConfig configures bearer-token verification.
type AuthConfig struct {
	Secret []byte
	Issuer string // checked when set
}

// Identity is the verified caller behind a bearer token.
type Identity struct {
	Owner uuid.UUID
	Role  string
}

// IsAdmin reports whether the caller may use the moderation endpoints.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Claims are the JWT claims issued and accepted by the API.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Authenticate verifies an optional HS256 bearer token and attaches the
// caller's identity to the request. It never rejects: a token that does not
// verify leaves the request anonymous, and RequireOwner or RequireAdmin
// decide whether that matters.
func Authenticate(cfg AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := ParseToken(cfg, header)
			if err != nil {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenErrContextKey, err)))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireOwner rejects requests that did not authenticate.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			writeUnauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous callers with 401 and non-admins with 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeUnauthenticated(w, r)
			return
		}
		if !id.IsAdmin() {
			WriteError(w, http.StatusForbidden, "forbidden", "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthenticated(w http.ResponseWriter, r *http.Request) {
	msg := "authentication required"
	if _, bad := r.Context().Value(tokenErrContextKey).(error); bad {
		msg = "invalid or expired token"
	}
	WriteError(w, http.StatusUnauthorized, "unauthorized", msg, nil)
}

// ParseToken verifies a "Bearer <jwt>" header value and returns the caller.
func ParseToken(cfg AuthConfig, header string) (Identity, error) {
	if len(cfg.Secret) == 0 {
		return Identity{}, errors.New("authentication is not configured")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return Identity{}, errors.New("authorization header must be a bearer token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...); err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	owner, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("token subject is not a UUID: %w", err)
	}

	role := claims.Role
	switch role {
	case "":
		role = RoleUser
	case RoleUser, RoleAdmin:
	default:
		return Identity{}, fmt.Errorf("unknown role %q", role)
	}
	return Identity{Owner: owner, Role: role}, nil
}

// SignToken issues an HS256 token for id valid for ttl.
func SignToken(cfg AuthConfig, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Owner.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
}

// IdentityFrom returns the authenticated caller, if any.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// WithIdentity marks ctx as authenticated for id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// OwnerID returns the authenticated owner, if any.
func OwnerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := IdentityFrom(ctx)
	return id.Owner, ok
}

// WithOwnerID marks ctx as authenticated for owner with the user role.
func WithOwnerID(ctx context.Context, owner uuid.UUID) context.Context {
	return WithIdentity(ctx, Identity{Owner: owner, Role: RoleUser})
}
