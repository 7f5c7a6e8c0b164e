package services

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/recipevault/apiserver/types"
)

const (
	maxTitleLength    = 255
	minUsernameLength = 3
	maxUsernameLength = 50
	maxNameLength     = 50
	maxEmailLength    = 100
	minPasswordLength = 6
)

// fieldErrors collects the first problem found for each field.
type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, exists := f[field]; !exists {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func (in RegisterInput) validate() error {
	errs := fieldErrors{}

	username := strings.TrimSpace(in.Username)
	switch n := utf8.RuneCountInString(username); {
	case n == 0:
		errs.add("username", "Username is required")
	case n < minUsernameLength || n > maxUsernameLength:
		errs.add("username", "Username must be between 3 and 50 characters")
	}

	email := strings.TrimSpace(in.Email)
	switch {
	case email == "":
		errs.add("email", "Email is required")
	case utf8.RuneCountInString(email) > maxEmailLength || !validEmail(email):
		errs.add("email", "Email must be valid")
	}

	switch {
	case in.Password == "":
		errs.add("password", "Password is required")
	case utf8.RuneCountInString(in.Password) < minPasswordLength:
		errs.add("password", "Password must be at least 6 characters")
	}

	if isBlank(in.FirstName) {
		errs.add("firstName", "First name is required")
	} else if utf8.RuneCountInString(strings.TrimSpace(in.FirstName)) > maxNameLength {
		errs.add("firstName", "First name must be at most 50 characters")
	}
	if isBlank(in.LastName) {
		errs.add("lastName", "Last name is required")
	} else if utf8.RuneCountInString(strings.TrimSpace(in.LastName)) > maxNameLength {
		errs.add("lastName", "Last name must be at most 50 characters")
	}

	return errs.err()
}

func (in RecipeInput) validate() error {
	errs := fieldErrors{}
	validateTitle(errs, in.Title)
	validateDifficulty(errs, in.Difficulty)
	if isBlank(in.Instructions) {
		errs.add("instructions", "Instructions are required")
	}
	return errs.err()
}

func (in RecipeUpdate) validate() error {
	errs := fieldErrors{}
	if in.Title != nil {
		validateTitle(errs, *in.Title)
	}
	if in.Difficulty != nil {
		validateDifficulty(errs, *in.Difficulty)
	}
	if in.Instructions != nil && isBlank(*in.Instructions) {
		errs.add("instructions", "Instructions cannot be blank")
	}
	return errs.err()
}

func validateTitle(errs fieldErrors, title string) {
	if isBlank(title) {
		errs.add("title", "Title is required")
		return
	}
	if utf8.RuneCountInString(strings.TrimSpace(title)) > maxTitleLength {
		errs.add("title", "Title must be less than 255 characters")
	}
}

func validateDifficulty(errs fieldErrors, difficulty string) {
	if difficulty == "" {
		errs.add("difficulty", "Difficulty is required")
		return
	}
	if !types.Difficulty(difficulty).Valid() {
		errs.add("difficulty", "Difficulty must be EASY, MEDIUM, or HARD")
	}
}
