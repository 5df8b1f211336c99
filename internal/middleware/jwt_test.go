package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTokenRoundTrip(t *testing.T) {
	SetSigningKey("test-secret")

	userID := uuid.New()
	token, err := GenerateToken(userID)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	SetSigningKey("test-secret")

	token, err := GenerateToken(uuid.New())
	assert.NoError(t, err)

	_, err = ValidateToken(token + "x")
	assert.Error(t, err)

	// Tokens signed with a different key fail validation.
	SetSigningKey("other-secret")
	_, err = ValidateToken(token)
	assert.Error(t, err)
}

func TestJWTMiddlewareGatesProtectedRoutes(t *testing.T) {
	SetSigningKey("test-secret")

	var seenUserID uuid.UUID
	handler := ApplyJWTMiddleware(func(w http.ResponseWriter, r *http.Request) {
		seenUserID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}, "/conversation")

	// No header: rejected.
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/conversation", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid bearer token: passes and the context carries the user.
	userID := uuid.New()
	token, err := GenerateToken(userID)
	assert.NoError(t, err)

	req := httptest.NewRequest("GET", "/conversation", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, seenUserID)

	// Unprotected routes skip validation entirely.
	open := ApplyJWTMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, "/user/login")
	w = httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest("POST", "/user/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
