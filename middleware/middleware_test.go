package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func whoAmI(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserIDFromContext(r.Context())
		require.NoError(t, err)
		role, err := GetUserRoleFromContext(r.Context())
		require.NoError(t, err)
		w.Header().Set("X-User", string(role))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, strconv.Itoa(id))
	})
}

func request(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	h := Authenticate(testSecret, discardLogger())(whoAmI(t))

	token, err := IssueToken(testSecret, 7, RoleOrganizer)
	require.NoError(t, err)
	rec := request(t, h, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "organizer", rec.Header().Get("X-User"))
	assert.Equal(t, "7", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, request(t, h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, h, "garbage").Code)

	forged, err := IssueToken("other-secret", 7, RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(t, h, forged).Code)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": 7, "role": "admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, request(t, h, unsigned).Code)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Authenticate(testSecret, discardLogger())(RequireRole(RoleOrganizer, RoleAdmin)(ok))

	tests := []struct {
		role Role
		want int
	}{
		{RoleOrganizer, http.StatusNoContent},
		{RoleAdmin, http.StatusNoContent},
		{RolePlayer, http.StatusForbidden},
		{Role("janitor"), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			token, err := IssueToken(testSecret, 3, tt.role)
			require.NoError(t, err)
			assert.Equal(t, tt.want, request(t, h, token).Code)
		})
	}
}

func TestCanRecordResults(t *testing.T) {
	assert.True(t, CanRecordResults(RoleInstructor))
	assert.True(t, CanRecordResults(RoleOrganizer))
	assert.False(t, CanRecordResults(RolePlayer))
}

func TestRateLimiterKeysByUser(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 0.001, BurstSize: 2, CleanupInterval: time.Hour}, discardLogger())
	defer rl.Stop()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Authenticate(testSecret, discardLogger())(rl.HTTPMiddleware(ok))

	alice, err := IssueToken(testSecret, 1, RolePlayer)
	require.NoError(t, err)
	bob, err := IssueToken(testSecret, 2, RolePlayer)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, request(t, h, alice).Code)
	assert.Equal(t, http.StatusOK, request(t, h, alice).Code)
	rec := request(t, h, alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, request(t, h, bob).Code)
	assert.Equal(t, 2, rl.LimiterCount())
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{CleanupInterval: time.Hour}, discardLogger())
	defer rl.Stop()

	rl.Allow("ip:10.0.0.1")
	rl.cleanup(time.Now().Add(time.Minute))
	assert.Zero(t, rl.LimiterCount())
}
