package forms

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"babyshop/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type creatorFunc func(ctx context.Context, input domain.NewAccount) (*domain.Account, error)

func (f creatorFunc) Register(ctx context.Context, input domain.NewAccount) (*domain.Account, error) {
	return f(ctx, input)
}

func validRegistration() url.Values {
	return url.Values{
		"first_name": {"Anna"},
		"last_name":  {"Schmidt"},
		"username":   {"anna.s"},
		"email":      {"anna@Example.DE"},
		"password1":  {"Kinderwagen#2024"},
		"password2":  {"Kinderwagen#2024"},
	}
}

func boundRegistration(mutate func(url.Values)) *RegistrationForm {
	values := validRegistration()
	if mutate != nil {
		mutate(values)
	}
	f := NewRegistrationForm()
	f.Bind(values)
	return f
}

func TestRegistrationForm_FieldOrderAndLabels(t *testing.T) {
	f := NewRegistrationForm()

	var names, labels []string
	for _, fd := range f.Fields() {
		names = append(names, fd.Name)
		labels = append(labels, fd.Label)
	}

	assert.Equal(t, []string{"first_name", "last_name", "username", "email", "password1", "password2"}, names)
	assert.Equal(t, []string{"Vorname", "Nachname", "Benutzername", "E-Mail-Adresse", "Passwort", "Passwort wiederholen"}, labels)
}

func TestRegistrationForm_Valid(t *testing.T) {
	f := boundRegistration(func(v url.Values) {
		v.Set("first_name", "  Anna ")
	})

	require.True(t, f.Validate(), f.Errors())

	input := f.Input()
	assert.Equal(t, "Anna", input.FirstName)
	assert.Equal(t, "anna@example.de", input.Email)
	assert.Equal(t, "Kinderwagen#2024", input.Password)
}

func TestRegistrationForm_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(url.Values)
		field   string
		message string
	}{
		{
			name:    "missing first name",
			mutate:  func(v url.Values) { v.Del("first_name") },
			field:   "first_name",
			message: msgRequired,
		},
		{
			name:    "whitespace only last name",
			mutate:  func(v url.Values) { v.Set("last_name", "   ") },
			field:   "last_name",
			message: msgRequired,
		},
		{
			name:    "username with spaces",
			mutate:  func(v url.Values) { v.Set("username", "anna schmidt") },
			field:   "username",
			message: msgInvalidUsername,
		},
		{
			name:    "username too long",
			mutate:  func(v url.Values) { v.Set("username", strings.Repeat("a", 151)) },
			field:   "username",
			message: "Bitte sicherstellen, dass der Wert aus höchstens 150 Zeichen besteht. (Er besteht aus 151 Zeichen.)",
		},
		{
			name:    "invalid email",
			mutate:  func(v url.Values) { v.Set("email", "anna-at-example") },
			field:   "email",
			message: msgInvalidEmail,
		},
		{
			name: "passwords differ",
			mutate: func(v url.Values) {
				v.Set("password2", "Kinderwagen#2025")
			},
			field:   "password2",
			message: msgPasswordMismatch,
		},
		{
			name: "password too short",
			mutate: func(v url.Values) {
				v.Set("password1", "Kw#1")
				v.Set("password2", "Kw#1")
			},
			field:   "password2",
			message: "Dieses Passwort ist zu kurz. Es muss mindestens 8 Zeichen enthalten.",
		},
		{
			name: "numeric password",
			mutate: func(v url.Values) {
				v.Set("password1", "48151623429")
				v.Set("password2", "48151623429")
			},
			field:   "password2",
			message: msgPasswordNumeric,
		},
		{
			name: "common password",
			mutate: func(v url.Values) {
				v.Set("password1", "password123")
				v.Set("password2", "password123")
			},
			field:   "password2",
			message: msgPasswordCommon,
		},
		{
			name: "password similar to username",
			mutate: func(v url.Values) {
				v.Set("password1", "anna.s.24")
				v.Set("password2", "anna.s.24")
			},
			field:   "password2",
			message: "Das Passwort ist zu ähnlich zu „Benutzername“.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := boundRegistration(tt.mutate)

			assert.False(t, f.Validate())
			assert.Contains(t, f.Errors()[tt.field], tt.message)
		})
	}
}

func TestRegistrationForm_PasswordsNeverEchoed(t *testing.T) {
	f := boundRegistration(func(v url.Values) {
		v.Set("password2", "something else")
	})
	require.False(t, f.Validate())

	assert.Equal(t, "", f.Field("password1").Value())
	assert.Equal(t, "", f.Field("password2").Value())
	assert.Equal(t, "anna.s", f.Field("username").Value())
}

func TestRegistrationForm_Save(t *testing.T) {
	f := boundRegistration(nil)
	require.True(t, f.Validate())

	var got domain.NewAccount
	account, err := f.Save(context.Background(), creatorFunc(func(_ context.Context, in domain.NewAccount) (*domain.Account, error) {
		got = in
		return &domain.Account{ID: "acc-1", Username: in.Username}, nil
	}))

	require.NoError(t, err)
	assert.Equal(t, "acc-1", account.ID)
	assert.Equal(t, "anna.s", got.Username)
}

func TestRegistrationForm_SaveRefusesInvalidForm(t *testing.T) {
	f := boundRegistration(func(v url.Values) { v.Del("email") })
	require.False(t, f.Validate())

	_, err := f.Save(context.Background(), creatorFunc(func(context.Context, domain.NewAccount) (*domain.Account, error) {
		t.Fatal("creator must not be called for an invalid form")
		return nil, nil
	}))
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRegistrationForm_SaveDuplicates(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		field   string
		message string
	}{
		{"username taken", domain.ErrUsernameExists, "username", msgUsernameTaken},
		{"email taken", domain.ErrEmailExists, "email", msgEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := boundRegistration(nil)
			require.True(t, f.Validate())

			_, err := f.Save(context.Background(), creatorFunc(func(context.Context, domain.NewAccount) (*domain.Account, error) {
				return nil, tt.err
			}))

			assert.ErrorIs(t, err, ErrInvalid)
			assert.Equal(t, []string{tt.message}, f.Errors()[tt.field])
		})
	}
}

func TestRegistrationForm_SaveInfrastructureError(t *testing.T) {
	f := boundRegistration(nil)
	require.True(t, f.Validate())

	dbErr := errors.New("connection refused")
	_, err := f.Save(context.Background(), creatorFunc(func(context.Context, domain.NewAccount) (*domain.Account, error) {
		return nil, dbErr
	}))

	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrInvalid)
	assert.Empty(t, f.Errors())
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Anna@Example.DE", "Anna@example.de", true},
		{" kunde@babyshop.de ", "kunde@babyshop.de", true},
		{"kunde+newsletter@mail.babyshop.de", "kunde+newsletter@mail.babyshop.de", true},
		{"kunde@localhost", "", false},
		{"@babyshop.de", "", false},
		{"kunde@@babyshop.de", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := NormalizeEmail(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
