package forms

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"babyshop/internal/domain"
)

const (
	msgPasswordMismatch = "Die beiden Passwörter sind nicht identisch."
	msgInvalidEmail     = "Bitte gültige E-Mail-Adresse eingeben."
	msgInvalidUsername  = "Bitte einen gültigen Benutzernamen eingeben, der nur Buchstaben, Ziffern und @/./+/-/_ enthält."
	msgUsernameTaken    = "Ein Benutzer mit diesem Benutzernamen existiert bereits."
	msgEmailTaken       = "Ein Benutzer mit dieser E-Mail-Adresse existiert bereits."
)

var (
	usernameRegex = regexp.MustCompile(`^[\p{L}\p{N}_.@+\-]+$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_{|}~\-]+@[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)+$`)
)

// AccountCreator persists a validated registration.
type AccountCreator interface {
	Register(ctx context.Context, input domain.NewAccount) (*domain.Account, error)
}

// RegistrationForm collects the sign-up fields of the storefront.
type RegistrationForm struct {
	form
}

// NewRegistrationForm creates an unbound registration form
func NewRegistrationForm() *RegistrationForm {
	return &RegistrationForm{
		form: newForm(
			&Field{Name: "first_name", Label: "Vorname", Type: TypeText, MaxLength: 150},
			&Field{Name: "last_name", Label: "Nachname", Type: TypeText, MaxLength: 150},
			&Field{Name: "username", Label: "Benutzername", Type: TypeText, MaxLength: 150},
			&Field{Name: "email", Label: "E-Mail-Adresse", Type: TypeEmail, MaxLength: 254},
			&Field{Name: "password1", Label: "Passwort", Type: TypePassword},
			&Field{Name: "password2", Label: "Passwort wiederholen", Type: TypePassword},
		),
	}
}

// Validate runs every rule and reports whether the form is clean. The email
// value is normalised in place.
func (f *RegistrationForm) Validate() bool {
	f.checkBasics()

	if !f.hasError("username") && !usernameRegex.MatchString(f.value("username")) {
		f.AddError("username", msgInvalidUsername)
	}

	if !f.hasError("email") {
		email, ok := NormalizeEmail(f.value("email"))
		if ok {
			f.setValue("email", email)
		} else {
			f.AddError("email", msgInvalidEmail)
		}
	}

	p1, p2 := f.value("password1"), f.value("password2")
	if p1 != "" && p2 != "" {
		if p1 != p2 {
			f.AddError("password2", msgPasswordMismatch)
		} else {
			for _, msg := range ValidatePassword(p2, f.similarityAttributes()...) {
				f.AddError("password2", msg)
			}
		}
	}

	return f.valid()
}

func (f *RegistrationForm) similarityAttributes() []UserAttribute {
	attrs := make([]UserAttribute, 0, 4)
	for _, name := range []string{"username", "first_name", "last_name", "email"} {
		fd := f.Field(name)
		attrs = append(attrs, UserAttribute{Label: fd.Label, Value: fd.value})
	}
	return attrs
}

// Input returns the cleaned registration data. Only meaningful after a
// successful Validate.
func (f *RegistrationForm) Input() domain.NewAccount {
	return domain.NewAccount{
		FirstName: f.value("first_name"),
		LastName:  f.value("last_name"),
		Username:  f.value("username"),
		Email:     f.value("email"),
		Password:  f.value("password1"),
	}
}

// Save hands the cleaned data to creator. Duplicate usernames or emails
// become field errors and ErrInvalid is returned.
func (f *RegistrationForm) Save(ctx context.Context, creator AccountCreator) (*domain.Account, error) {
	if !f.valid() {
		return nil, ErrInvalid
	}

	account, err := creator.Register(ctx, f.Input())
	switch {
	case errors.Is(err, domain.ErrUsernameExists):
		f.AddError("username", msgUsernameTaken)
		return nil, ErrInvalid
	case errors.Is(err, domain.ErrEmailExists):
		f.AddError("email", msgEmailTaken)
		return nil, ErrInvalid
	case err != nil:
		return nil, fmt.Errorf("failed to register account: %w", err)
	}

	return account, nil
}

// NormalizeEmail checks the address syntax and lower-cases the domain part.
func NormalizeEmail(email string) (string, bool) {
	email = strings.TrimSpace(email)
	if !emailRegex.MatchString(email) {
		return "", false
	}
	at := strings.LastIndex(email, "@")
	return email[:at] + "@" + strings.ToLower(email[at+1:]), true
}
