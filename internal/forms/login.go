package forms

// LoginForm only checks that both credentials were supplied.
type LoginForm struct {
	form
}

// NewLoginForm creates an unbound login form
func NewLoginForm() *LoginForm {
	return &LoginForm{
		form: newForm(
			&Field{Name: "username", Label: "Benutzername", Type: TypeText},
			&Field{Name: "password", Label: "Passwort", Type: TypePassword},
		),
	}
}

// Validate reports whether both fields were filled in
func (f *LoginForm) Validate() bool {
	f.checkBasics()
	return f.valid()
}

// Username returns the trimmed username
func (f *LoginForm) Username() string {
	return f.value("username")
}

// Password returns the password as submitted
func (f *LoginForm) Password() string {
	return f.value("password")
}
