//go:build integration
// +build integration

package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"babyshop/api"
	"babyshop/internal/flash"
	"babyshop/internal/handler"
	"babyshop/internal/messaging"
	"babyshop/internal/middleware"
	"babyshop/internal/migrations"
	"babyshop/internal/repository/postgres"
	"babyshop/internal/security"
	"babyshop/internal/service"
	"babyshop/internal/web"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

func setupDatabase(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "babyshop",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
				wait.ForListeningPort("5432/tcp"),
			).WithDeadline(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	db, err := sql.Open("postgres", fmt.Sprintf("postgres://test:test@%s:%s/babyshop?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.Eventually(t, func() bool { return db.PingContext(ctx) == nil }, 30*time.Second, 500*time.Millisecond)
	require.NoError(t, migrations.Up(ctx, db))
	return db
}

func TestAccountFlowIntegration(t *testing.T) {
	db := setupDatabase(t)

	accounts, err := postgres.NewAccountRepository(db)
	require.NoError(t, err)
	sessions, err := postgres.NewSessionRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		accounts.Close()
		sessions.Close()
	})

	tokens := security.NewTokenManager()
	svc := service.NewAccountService(accounts, sessions, messaging.NopPublisher{}, tokens,
		service.WithBcryptCost(bcrypt.MinCost))

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	h, err := NewRouter(Deps{
		Accounts: handler.NewAccountHandler(svc, svc, renderer, false),
		Sessions: svc,
		Tokens:   tokens,
		Flash:    flash.NewStore(testSecret, false),
		DB:       db,
		OpenAPI:  middleware.OpenAPIValidatorConfig{Enabled: true, Spec: api.OpenAPI},
	})
	require.NoError(t, err)

	b := newBrowser(t, h)
	b.get("/register")

	registration := url.Values{
		"first_name": {"Anna"},
		"last_name":  {"Schmidt"},
		"username":   {"anna"},
		"email":      {"anna@example.de"},
		"password1":  {"Kinderwagen#2024"},
		"password2":  {"Kinderwagen#2024"},
	}

	resp, _ := b.post("/register", registration)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM accounts WHERE username = 'anna'`).Scan(&count))
	assert.Equal(t, 1, count)

	resp, body := b.post("/register", registration)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Ein Benutzer mit diesem Benutzernamen existiert bereits.")

	resp, _ = b.post("/login", url.Values{"username": {"anna"}, "password": {"Kinderwagen#2024"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.NotEmpty(t, b.cookie(middleware.SessionCookieName))

	var lastLogin sql.NullTime
	require.NoError(t, db.QueryRow(`SELECT last_login FROM accounts WHERE username = 'anna'`).Scan(&lastLogin))
	assert.True(t, lastLogin.Valid)

	_, body = b.get("/")
	assert.Contains(t, body, "Hallo, Anna Schmidt")

	resp, _ = b.post("/logout", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count))
	assert.Equal(t, 0, count)

	_, err = db.Exec(`UPDATE accounts SET is_active = false WHERE username = 'anna'`)
	require.NoError(t, err)

	resp, body = b.post("/login", url.Values{"username": {"anna"}, "password": {"Kinderwagen#2024"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, handler.MsgAccountInactive)
	assert.Empty(t, b.cookie(middleware.SessionCookieName))
}
