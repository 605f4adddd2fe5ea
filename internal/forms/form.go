// Package forms binds, cleans and validates the storefront's HTML forms.
package forms

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ErrInvalid is returned by Save when the form carries field errors.
var ErrInvalid = errors.New("form is invalid")

const (
	msgRequired = "Dieses Feld ist zwingend erforderlich."
	msgMaxLen   = "Bitte sicherstellen, dass der Wert aus höchstens %d Zeichen besteht. (Er besteht aus %d Zeichen.)"
)

// Input types understood by the templates
const (
	TypeText     = "text"
	TypeEmail    = "email"
	TypePassword = "password"
)

// Field is one rendered form input with its bound value and errors.
type Field struct {
	Name      string
	Label     string
	Type      string
	MaxLength int
	Errors    []string

	value string
}

// Value is what the template puts back into the input. Password inputs are
// never echoed.
func (f *Field) Value() string {
	if f.Type == TypePassword {
		return ""
	}
	return f.value
}

// HasErrors is used by templates to flag the input.
func (f *Field) HasErrors() bool {
	return len(f.Errors) > 0
}

// form keeps fields in render order.
type form struct {
	fields []*Field
	byName map[string]*Field
}

func newForm(fields ...*Field) form {
	f := form{
		fields: fields,
		byName: make(map[string]*Field, len(fields)),
	}
	for _, fd := range fields {
		f.byName[fd.Name] = fd
	}
	return f
}

// Bind copies submitted values into the fields. Text inputs are trimmed,
// passwords are kept verbatim.
func (f *form) Bind(values url.Values) {
	for _, fd := range f.fields {
		v := values.Get(fd.Name)
		if fd.Type != TypePassword {
			v = strings.TrimSpace(v)
		}
		fd.value = v
		fd.Errors = nil
	}
}

// Fields returns the inputs in display order.
func (f *form) Fields() []*Field {
	return f.fields
}

// Field looks up an input by name, nil if the form has none.
func (f *form) Field(name string) *Field {
	return f.byName[name]
}

// AddError attaches a message to the named field.
func (f *form) AddError(name, msg string) {
	if fd, ok := f.byName[name]; ok {
		fd.Errors = append(fd.Errors, msg)
	}
}

// Errors maps field names to their messages; empty when the form is clean.
func (f *form) Errors() map[string][]string {
	errs := make(map[string][]string)
	for _, fd := range f.fields {
		if len(fd.Errors) > 0 {
			errs[fd.Name] = fd.Errors
		}
	}
	return errs
}

func (f *form) value(name string) string {
	if fd, ok := f.byName[name]; ok {
		return fd.value
	}
	return ""
}

func (f *form) setValue(name, v string) {
	if fd, ok := f.byName[name]; ok {
		fd.value = v
	}
}

func (f *form) hasError(name string) bool {
	fd, ok := f.byName[name]
	return ok && len(fd.Errors) > 0
}

// checkBasics applies the required and max length rules to every field.
func (f *form) checkBasics() {
	for _, fd := range f.fields {
		if fd.value == "" {
			fd.Errors = append(fd.Errors, msgRequired)
			continue
		}
		if fd.MaxLength > 0 {
			if n := utf8.RuneCountInString(fd.value); n > fd.MaxLength {
				fd.Errors = append(fd.Errors, fmt.Sprintf(msgMaxLen, fd.MaxLength, n))
			}
		}
	}
}

func (f *form) valid() bool {
	for _, fd := range f.fields {
		if len(fd.Errors) > 0 {
			return false
		}
	}
	return true
}
