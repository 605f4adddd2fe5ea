// Package flash carries one-time notices across a redirect in a signed cookie.
package flash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieName = "flash"
	DefaultTTL = 5 * time.Minute
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

type claims struct {
	jwt.RegisteredClaims
	Messages []Message `json:"msgs"`
}

type contextKey struct{}

// bag is the request-scoped message list.
type bag struct {
	mu        sync.Mutex
	messages  []Message
	hadCookie bool
	dirty     bool
}

// NewContext installs an empty message bag. Middleware does this for every
// request; tests can call it directly.
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, &bag{})
}

func fromContext(ctx context.Context) *bag {
	b, _ := ctx.Value(contextKey{}).(*bag)
	return b
}

// Add queues a notice for the next render. It is dropped when the request has
// no bag.
func Add(ctx context.Context, level Level, text string) {
	b := fromContext(ctx)
	if b == nil {
		slog.Warn("flash message dropped, no bag in context", slog.String("text", text))
		return
	}
	b.mu.Lock()
	b.messages = append(b.messages, Message{Level: level, Text: text})
	b.dirty = true
	b.mu.Unlock()
}

func Info(ctx context.Context, text string)    { Add(ctx, LevelInfo, text) }
func Success(ctx context.Context, text string) { Add(ctx, LevelSuccess, text) }
func Error(ctx context.Context, text string)   { Add(ctx, LevelError, text) }

// Consume returns and removes all pending notices.
func Consume(ctx context.Context) []Message {
	b := fromContext(ctx)
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	msgs := b.messages
	if len(msgs) > 0 {
		b.messages = nil
		b.dirty = true
	}
	return msgs
}

// Store signs and verifies the flash cookie.
type Store struct {
	secret []byte
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(secret string, secure bool) *Store {
	return &Store{
		secret: []byte(secret),
		secure: secure,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

func (s *Store) encode(msgs []Message) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Messages: msgs,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign flash cookie: %w", err)
	}
	return signed, nil
}

func (s *Store) decode(value string) ([]Message, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(value, c, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid flash token")
	}
	return c.Messages, nil
}

// Middleware loads pending notices from the cookie and writes back whatever
// is still unread when the response header goes out.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := &bag{}
		if cookie, err := r.Cookie(CookieName); err == nil {
			b.hadCookie = true
			msgs, err := s.decode(cookie.Value)
			if err != nil {
				slog.Debug("ignoring flash cookie", slog.String("error", err.Error()))
				// stale or tampered, expire it
				b.dirty = true
			} else {
				b.messages = msgs
			}
		}

		ctx := context.WithValue(r.Context(), contextKey{}, b)
		fw := &flashWriter{ResponseWriter: w, store: s, bag: b}
		next.ServeHTTP(fw, r.WithContext(ctx))
		fw.commit()
	})
}

func (s *Store) writeCookie(w http.ResponseWriter, b *bag) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.dirty {
		return
	}
	b.dirty = false

	if len(b.messages) == 0 {
		if b.hadCookie {
			http.SetCookie(w, &http.Cookie{
				Name:     CookieName,
				Value:    "",
				Path:     "/",
				MaxAge:   -1,
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		return
	}

	value, err := s.encode(b.messages)
	if err != nil {
		slog.Error("failed to persist flash messages", slog.String("error", err.Error()))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// flashWriter sets the cookie just before the status line is written.
type flashWriter struct {
	http.ResponseWriter
	store       *Store
	bag         *bag
	wroteHeader bool
}

func (fw *flashWriter) WriteHeader(statusCode int) {
	if !fw.wroteHeader {
		fw.wroteHeader = true
		fw.store.writeCookie(fw.ResponseWriter, fw.bag)
	}
	fw.ResponseWriter.WriteHeader(statusCode)
}

func (fw *flashWriter) Write(b []byte) (int, error) {
	if !fw.wroteHeader {
		fw.WriteHeader(http.StatusOK)
	}
	return fw.ResponseWriter.Write(b)
}

// commit covers handlers that never write a body or status.
func (fw *flashWriter) commit() {
	if !fw.wroteHeader {
		fw.WriteHeader(http.StatusOK)
	}
}

func (fw *flashWriter) Unwrap() http.ResponseWriter {
	return fw.ResponseWriter
}
