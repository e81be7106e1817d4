package domain

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type SignupRequest struct {
	Name            string `json:"name" validate:"required,max=80"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

func (r *SignupRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = NormalizeEmail(r.Email)
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

type UpdatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" validate:"required"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdateMeRequest carries only the fields a user may change on themself.
// The password and role fields exist so the handler can reject them.
type UpdateMeRequest struct {
	Name            *string `json:"name" validate:"omitnil,min=1,max=80"`
	Email           *string `json:"email" validate:"omitnil,email"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
	Role            *string `json:"role"`
}

var fieldMessages = map[string]string{
	"Name.required":            "Please, tell us your name!",
	"Email.required":           "Please, provide your email",
	"Email.email":              "Please, provide a valid email",
	"Password.required":        "Please, provide a password",
	"Password.min":             "Password must have at least 8 characters",
	"PasswordConfirm.required": "Please, confirm your password",
	"PasswordConfirm.eqfield":  "Passwords are not the same!",
	"PasswordCurrent.required": "Please, provide your current password",
}

// Validate runs struct tags and folds every failure into one ValidationFailed
// error, in the "Invalid input data. a. b" shape clients already parse.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindValidation, Message: "Invalid input data.", Err: err}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if m, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
			msgs = append(msgs, m)
			continue
		}
		msgs = append(msgs, "Invalid value for "+fe.Field())
	}
	return Validation("Invalid input data. " + strings.Join(msgs, ". "))
}

func IsValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}
