package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/shulehub/shule/core"
)

type User struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         core.Role   `json:"role"`
	SchoolID     null.String `json:"school_id"`
	ProfileImage null.String `json:"profile_image"`
	PasswordHash []byte      `json:"-"`
	LastLogin    time.Time   `json:"last_login"` // UTC
	CreatedAt    time.Time   `json:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool   { return u.Role.IsAdminTier() }
func (u *User) IsTeacher() bool { return u.Role == core.RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == core.RoleStudent }

// Principal derives the tenancy scope all service operations are checked
// against.
func (u *User) Principal() core.Principal {
	return core.Principal{UserID: u.ID, Role: u.Role, SchoolID: u.SchoolID.String}
}

// NewUser contains information needed to create a new User.
// Users are created by an admin and start with the configured default
// password; they set their own password on first login.
type NewUser struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role" validate:"required,role"`
	SchoolID string `json:"school_id" validate:"omitempty,uuid4"`
}

func (nu *NewUser) Validate(validate *validator.Validate, svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.SchoolID = core.CleanString(nu.SchoolID)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Role and SchoolID are immutable; password changes go through the dedicated
// password endpoints.
type UpdateUser struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate, svc *Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(uu.Email, origUsr)
}

// SetUserPassword is the first-time password setup / login payload.
type SetUserPassword struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (sp *SetUserPassword) Validate(validate *validator.Validate) error {
	sp.Email = core.CleanString(sp.Email, true /* lower */)
	return validate.Struct(sp)
}

// AdminResetPassword resets a user's password to the provided value, or the
// configured default when empty.
type AdminResetPassword struct {
	NewPassword string `json:"new_password"`
}

// ResetUserPassword confirms an emailed password-reset token.
type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

type QueryFilter struct {
	Search   string   `query:"search"`
	Role     string   `query:"role"`
	SchoolID string   `query:"school_id"`
	IDs      []string `query:"-"` // internal use, never bound from requests
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == "" && qf.SchoolID == "" && len(qf.IDs) == 0
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.SchoolID = core.CleanString(qf.SchoolID)
}
