package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"babyshop/internal/domain"
	"babyshop/internal/flash"
	"babyshop/internal/forms"
	"babyshop/internal/middleware"
	"babyshop/internal/observability"
	"babyshop/internal/web"
)

// Notices shown to visitors
const (
	MsgAccountCreated     = "Ihr Konto wurde erstellt, Sie können sich jetzt anmelden"
	MsgAccountInactive    = "Benutzer ist nicht aktiv"
	MsgInvalidCredentials = "Bitte überprüfen Sie Ihre Anmeldedaten"
	MsgInternalError      = "Ein interner Fehler ist aufgetreten"
)

// Authenticator is the login and session collaborator of the account pages.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*domain.Account, error)
	StartSession(ctx context.Context, account *domain.Account) (*domain.Session, error)
	EndSession(ctx context.Context, token string) error
}

// AccountHandler serves the registration, login and logout pages
type AccountHandler struct {
	creator       forms.AccountCreator
	auth          Authenticator
	renderer      *web.Renderer
	secureCookies bool
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(creator forms.AccountCreator, auth Authenticator, renderer *web.Renderer, secureCookies bool) *AccountHandler {
	return &AccountHandler{
		creator:       creator,
		auth:          auth,
		renderer:      renderer,
		secureCookies: secureCookies,
	}
}

// Home renders the storefront landing page
func (h *AccountHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, web.PageHome, "Startseite", nil)
}

// RegisterForm renders an empty registration form
func (h *AccountHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, web.PageRegister, "Registrieren", forms.NewRegistrationForm())
}

// Register handles the registration form submission
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ungültige Anfrage", http.StatusBadRequest)
		return
	}

	form := forms.NewRegistrationForm()
	form.Bind(r.PostForm)

	if form.Validate() {
		_, err := form.Save(r.Context(), h.creator)
		switch {
		case err == nil:
			flash.Success(r.Context(), MsgAccountCreated)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		case !errors.Is(err, forms.ErrInvalid):
			h.fail(w, r, web.PageRegister, "Registrieren", form, "registration failed", err)
			return
		}
	}

	observability.FromContext(r.Context()).Info("registration rejected",
		slog.Any("fields", fieldNames(form.Errors())))
	h.render(w, r, http.StatusOK, web.PageRegister, "Registrieren", form)
}

// LoginForm renders an empty login form
func (h *AccountHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, web.PageLogin, "Anmelden", forms.NewLoginForm())
}

// Login handles the login form submission
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Ungültige Anfrage", http.StatusBadRequest)
		return
	}

	form := forms.NewLoginForm()
	form.Bind(r.PostForm)

	if !form.Validate() {
		h.render(w, r, http.StatusOK, web.PageLogin, "Anmelden", form)
		return
	}

	account, err := h.auth.Authenticate(r.Context(), form.Username(), form.Password())
	if errors.Is(err, domain.ErrInvalidCredentials) {
		flash.Info(r.Context(), MsgInvalidCredentials)
		h.render(w, r, http.StatusOK, web.PageLogin, "Anmelden", form)
		return
	}
	if err != nil {
		h.fail(w, r, web.PageLogin, "Anmelden", form, "authentication failed", err)
		return
	}

	session, err := h.auth.StartSession(r.Context(), account)
	if errors.Is(err, domain.ErrAccountInactive) {
		flash.Info(r.Context(), MsgAccountInactive)
		h.render(w, r, http.StatusOK, web.PageLogin, "Anmelden", form)
		return
	}
	if err != nil {
		h.fail(w, r, web.PageLogin, "Anmelden", form, "failed to start session", err)
		return
	}

	// Rotate: the session the visitor arrived with must not outlive the login.
	if previous, ok := middleware.GetSession(r.Context()); ok {
		if err := h.auth.EndSession(r.Context(), previous.Token); err != nil {
			observability.FromContext(r.Context()).Warn("failed to end previous session",
				slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout ends the current session, if any, and always redirects home
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil {
		if err := h.auth.EndSession(r.Context(), cookie.Value); err != nil {
			observability.FromContext(r.Context()).Error("failed to end session",
				slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AccountHandler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, form web.FieldSet) {
	ctx := r.Context()
	data := web.PageData{
		Title:     title,
		Messages:  flash.Consume(ctx),
		CSRFToken: middleware.CSRFToken(ctx),
		Form:      form,
	}
	if account, ok := middleware.GetAccount(ctx); ok {
		data.Account = account
	}

	if err := h.renderer.Render(w, status, page, data); err != nil {
		h.serverError(w, r, "failed to render page", err)
	}
}

// fail shows the page again with a generic error notice.
func (h *AccountHandler) fail(w http.ResponseWriter, r *http.Request, page, title string, form web.FieldSet, msg string, err error) {
	logError(r, msg, err)
	flash.Error(r.Context(), MsgInternalError)
	h.render(w, r, http.StatusInternalServerError, page, title, form)
}

func (h *AccountHandler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logError(r, msg, err)
	http.Error(w, MsgInternalError, http.StatusInternalServerError)
}

func logError(r *http.Request, msg string, err error) {
	observability.FromContext(r.Context()).Error(msg,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()))
}

func fieldNames(errs map[string][]string) []string {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
