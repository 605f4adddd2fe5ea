package flash

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-at-least-32-characters"

func findCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func serve(s *Store, h http.HandlerFunc, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	s.Middleware(h).ServeHTTP(w, req)
	return w
}

func TestFlash_SurvivesRedirect(t *testing.T) {
	store := NewStore(testSecret, false)

	w := serve(store, func(w http.ResponseWriter, r *http.Request) {
		Success(r.Context(), "Ihr Konto wurde erstellt, Sie können sich jetzt anmelden")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}, nil)

	cookie := findCookie(w)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	var got []Message
	w = serve(store, func(w http.ResponseWriter, r *http.Request) {
		got = Consume(r.Context())
		w.Write([]byte("ok"))
	}, cookie)

	assert.Equal(t, []Message{{Level: LevelSuccess, Text: "Ihr Konto wurde erstellt, Sie können sich jetzt anmelden"}}, got)

	cleared := findCookie(w)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestFlash_ConsumedInSameRequest(t *testing.T) {
	store := NewStore(testSecret, false)

	var got []Message
	w := serve(store, func(w http.ResponseWriter, r *http.Request) {
		Info(r.Context(), "Benutzer ist nicht aktiv")
		got = Consume(r.Context())
		w.Write([]byte("form"))
	}, nil)

	assert.Len(t, got, 1)
	assert.Nil(t, findCookie(w), "nothing left to carry over")
}

func TestFlash_UnreadMessagesStay(t *testing.T) {
	store := NewStore(testSecret, false)

	w := serve(store, func(w http.ResponseWriter, r *http.Request) {
		Error(r.Context(), "erste")
		w.WriteHeader(http.StatusSeeOther)
	}, nil)
	cookie := findCookie(w)
	require.NotNil(t, cookie)

	// a request that does not render messages leaves the cookie alone
	w = serve(store, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("static"))
	}, cookie)
	assert.Nil(t, findCookie(w))
}

func TestFlash_RejectsTamperedOrExpiredCookies(t *testing.T) {
	store := NewStore(testSecret, false)
	other := NewStore("another-secret-with-at-least-32-chars", false)

	forged, err := other.encode([]Message{{Level: LevelSuccess, Text: "gefälscht"}})
	require.NoError(t, err)

	expiredStore := NewStore(testSecret, false)
	expiredStore.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := expiredStore.encode([]Message{{Level: LevelInfo, Text: "alt"}})
	require.NoError(t, err)

	for name, value := range map[string]string{
		"wrong key": forged,
		"expired":   expired,
		"garbage":   "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			var got []Message
			w := serve(store, func(w http.ResponseWriter, r *http.Request) {
				got = Consume(r.Context())
			}, &http.Cookie{Name: CookieName, Value: value})

			assert.Empty(t, got)
			cleared := findCookie(w)
			require.NotNil(t, cleared)
			assert.Equal(t, -1, cleared.MaxAge)
		})
	}
}

func TestFlash_WithoutBag(t *testing.T) {
	ctx := context.Background()
	Info(ctx, "ignored")
	assert.Nil(t, Consume(ctx))

	ctx = NewContext(ctx)
	Info(ctx, "kept")
	assert.Equal(t, []Message{{Level: LevelInfo, Text: "kept"}}, Consume(ctx))
	assert.Nil(t, Consume(ctx))
}

func TestStore_EncodeDecode(t *testing.T) {
	store := NewStore(testSecret, true)
	msgs := []Message{
		{Level: LevelInfo, Text: "Bitte überprüfen Sie Ihre Anmeldedaten"},
		{Level: LevelSuccess, Text: "Willkommen"},
	}

	value, err := store.encode(msgs)
	require.NoError(t, err)

	got, err := store.decode(value)
	require.NoError(t, err)
	assert.Equal(t, msgs, got)
}
