package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testAuth = AuthConfig{Secret: []byte("0123456789abcdef0123456789abcdef"), Issuer: "linkshield"}

func TestAuthenticate(t *testing.T) {
	owner := uuid.New()
	user := Identity{Owner: owner, Role: RoleUser}
	valid, err := SignToken(testAuth, user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := SignToken(testAuth, user, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	otherIssuer, err := SignToken(AuthConfig{Secret: testAuth.Secret, Issuer: "someone-else"}, user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	wrongKey, err := SignToken(AuthConfig{Secret: []byte("another-secret-another-secret-xx"), Issuer: "linkshield"}, user, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   owner.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	// a bad token never blocks the request; it only leaves it anonymous
	tests := []struct {
		name      string
		header    string
		wantOwner bool
	}{
		{"no header passes anonymous", "", false},
		{"valid token", "Bearer " + valid, true},
		{"expired token", "Bearer " + expired, false},
		{"wrong issuer", "Bearer " + otherIssuer, false},
		{"wrong key", "Bearer " + wrongKey, false},
		{"alg none", "Bearer " + none, false},
		{"not bearer", "Basic dXNlcjpwYXNz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotOwner uuid.UUID
			var hasOwner bool
			h := Authenticate(testAuth)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				gotOwner, hasOwner = OwnerID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rr.Code)
			}
			if hasOwner != tt.wantOwner {
				t.Errorf("has owner = %v, want %v", hasOwner, tt.wantOwner)
			}
			if tt.wantOwner && gotOwner != owner {
				t.Errorf("owner = %v, want %v", gotOwner, owner)
			}
		})
	}
}

func TestParseToken_Unconfigured(t *testing.T) {
	if _, err := ParseToken(AuthConfig{}, "Bearer x.y.z"); err == nil {
		t.Error("expected error without a secret")
	}
}

func TestParseToken_SubjectMustBeUUID(t *testing.T) {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		Issuer:    testAuth.Issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(testAuth.Secret)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(testAuth, "Bearer "+tok); err == nil {
		t.Error("expected error for non-UUID subject")
	}
}

func TestRequireOwner(t *testing.T) {
	h := RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/links", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
	req = req.WithContext(WithOwnerID(req.Context(), uuid.New()))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("owner status = %d, want 204", rr.Code)
	}
}

func TestRequireOwner_RejectedTokenMessage(t *testing.T) {
	expired, err := SignToken(testAuth, Identity{Owner: uuid.New()}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	h := Authenticate(testAuth)(RequireOwner(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{"no token", "", "authentication required"},
		{"expired token", "Bearer " + expired, "invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rr.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", body.Message, tt.wantMsg)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		id         *Identity
		wantStatus int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"user", &Identity{Owner: uuid.New(), Role: RoleUser}, http.StatusForbidden},
		{"admin", &Identity{Owner: uuid.New(), Role: RoleAdmin}, http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/links", nil)
			if tt.id != nil {
				req = req.WithContext(WithIdentity(req.Context(), *tt.id))
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestParseToken_Role(t *testing.T) {
	owner := uuid.New()

	t.Run("round trips admin", func(t *testing.T) {
		tok, err := SignToken(testAuth, Identity{Owner: owner, Role: RoleAdmin}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		id, err := ParseToken(testAuth, "Bearer "+tok)
		if err != nil {
			t.Fatalf("ParseToken() error = %v", err)
		}
		if id.Owner != owner || !id.IsAdmin() {
			t.Errorf("identity = %+v", id)
		}
	})

	t.Run("missing role defaults to user", func(t *testing.T) {
		tok, err := SignToken(testAuth, Identity{Owner: owner}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		id, err := ParseToken(testAuth, "Bearer "+tok)
		if err != nil {
			t.Fatalf("ParseToken() error = %v", err)
		}
		if id.Role != RoleUser {
			t.Errorf("Role = %q, want %q", id.Role, RoleUser)
		}
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		tok, err := SignToken(testAuth, Identity{Owner: owner, Role: "superuser"}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := ParseToken(testAuth, "Bearer "+tok); err == nil {
			t.Error("expected error for unknown role")
		}
	})
}
