package broker

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hihaowen/easysso/internal/platform/logger"
	"github.com/hihaowen/easysso/internal/token"
)

func newSyncRouter(gateway string) http.Handler {
	b := New(gateway, testBrokerID, testSecret, testLoginURL)
	r := chi.NewRouter()
	NewHandler(b, logger.Discard()).Register(r)
	return r
}

func signedSyncURL(command, tok string) string {
	q := url.Values{}
	q.Set("command", command)
	q.Set("broker_id", testBrokerID)
	q.Set("token", tok)
	q.Set("check_sum", token.Sign(testBrokerID, []byte(testSecret), tok))
	return "/sync?" + q.Encode()
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSyncLoginSetsCookie(t *testing.T) {
	router := newSyncRouter("http://unused.example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, signedSyncURL("login", "tok-1"), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	c := findCookie(t, rec, "sso_user_b1")
	require.NotNil(t, c)
	assert.Equal(t, "tok-1", c.Value)
}

func TestSyncLogoutClearsCookie(t *testing.T) {
	router := newSyncRouter("http://unused.example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, signedSyncURL("logout", "tok-1"), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	c := findCookie(t, rec, "sso_user_b1")
	require.NotNil(t, c)
	assert.Empty(t, c.Value)
	assert.Negative(t, c.MaxAge)
}

func TestSyncRejectsTamperedChecksumAndLeavesCookieUnset(t *testing.T) {
	router := newSyncRouter("http://unused.example.com")

	sum := token.Sign(testBrokerID, []byte(testSecret), "tok-1")
	tampered := []byte(sum)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	q := url.Values{}
	q.Set("command", "login")
	q.Set("broker_id", testBrokerID)
	q.Set("token", "tok-1")
	q.Set("check_sum", string(tampered))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sync?"+q.Encode(), nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Nil(t, findCookie(t, rec, "sso_user_b1"), "forged callback must not touch the cookie")
}

func TestSyncRejectsUnknownCommand(t *testing.T) {
	router := newSyncRouter("http://unused.example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, signedSyncURL("user", "tok-1"), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, findCookie(t, rec, "sso_user_b1"))
}

func TestHandleUserRedirectHintWithoutCookie(t *testing.T) {
	router := newSyncRouter("http://unused.example.com")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/user", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), testLoginURL)
}

func TestHandleLogoutClearsCookie(t *testing.T) {
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errno":0,"error":"","data":{"script_src":[]}}`))
	}))
	defer gateway.Close()

	router := newSyncRouter(gateway.URL)

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: "sso_user_b1", Value: "tok-1"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	c := findCookie(t, rec, "sso_user_b1")
	require.NotNil(t, c)
	assert.Negative(t, c.MaxAge)
}
