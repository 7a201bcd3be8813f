package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/shulehub/shule/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type (
	// GetFilter fetches a single User by one of its unique attributes.
	GetFilter struct {
		ID    string
		Email string
	}

	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)
	}

	Service struct {
		db        core.DB
		repo      Repository
		mailSvc   core.EmailService
		fileStore core.FileStorage
		conf      *core.Config
	}
)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, fileStore core.FileStorage, conf *core.Config) *Service {
	return &Service{db: db, repo: repo, mailSvc: mailSvc, fileStore: fileStore, conf: conf}
}

func (svc *Service) CheckEmailUniqueness(email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(context.Background(), email, exclUsers); err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return err
	}
	return nil
}

// Create registers a new user with the default password and emails them
// first-login instructions.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		Role:      core.Role(nu.Role),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nu.SchoolID != "" {
		usr.SchoolID.SetValid(nu.SchoolID)
	}
	if err := usr.SetPassword(svc.conf.DefaultUserPassword); err != nil {
		return User{}, errors.Wrap(err, "hashing default password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct{ Name, Email, DefaultPassword string }{usr.Name, usr.Email, svc.conf.DefaultUserPassword},
	})
	return usr, nil
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// SchoolStudents lists all students of the caller's school, teachers only.
func (svc *Service) SchoolStudents(ctx context.Context, prin core.Principal, search string) ([]User, error) {
	if !prin.IsTeacher() || prin.SchoolID == "" {
		return nil, ErrNotFound
	}
	filter := &QueryFilter{
		Search:   core.CleanString(search),
		Role:     core.RoleStudent.String(),
		SchoolID: prin.SchoolID,
	}
	return svc.repo.QueryUsers(ctx, filter, []core.DBOrdering{{Field: "name", Ascending: true}})
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Email:     uu.Email,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	usr.UpdatedAt = usr.LastLogin
	return svc.repo.UpdateUser(ctx, usr)
}

// Authenticate performs the combined first-time-setup / login flow: a user
// still on the default password gets sp.Password set as their own; otherwise
// sp.Password must match their current password.
func (svc *Service) Authenticate(ctx context.Context, sp SetUserPassword) (User, error) {
	usr, err := svc.GetByEmail(ctx, sp.Email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}

	if usr.CheckPassword(svc.conf.DefaultUserPassword) == nil {
		// first-time setup: replace the default password
		if err = usr.SetPassword(sp.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		usr.UpdatedAt = time.Now().UTC()
		if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
			return User{}, errors.Wrap(err, "saving password")
		}
	} else if err = usr.CheckPassword(sp.Password); err != nil {
		return User{}, ErrInvalidCredentials
	}

	return svc.SetLastLogin(ctx, usr)
}

// ResetPassword sets the user's password to newPwd, or back to the default
// when newPwd is empty. Admin only (gated at the API boundary).
func (svc *Service) ResetPassword(ctx context.Context, id, newPwd string) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if newPwd == "" {
		newPwd = svc.conf.DefaultUserPassword
	}
	if err = usr.SetPassword(newPwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// RequestPasswordReset emails the user a signed reset token.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	token, err := MakeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password-reset",
		TemplateData: struct{ Name, UID, Token string }{usr.Name, EncodeUID(usr), token},
	})
	return nil
}

// ConfirmPasswordReset verifies the emailed token and applies the new password.
func (svc *Service) ConfirmPasswordReset(ctx context.Context, rp ResetUserPassword) error {
	uid, err := decodeUID(rp.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return core.NewValidationError(err)
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// UploadProfileImage stores the new image, points the user at it and
// best-effort deletes the previous one.
func (svc *Service) UploadProfileImage(ctx context.Context, id string, file core.UploadedFile) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	url, err := svc.fileStore.Store(ctx, file, "profile-images")
	if err != nil {
		return User{}, errors.Wrap(err, "storing profile image")
	}

	oldURL := usr.ProfileImage.String
	usr.ProfileImage.SetValid(url)
	usr.UpdatedAt = time.Now().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}

	if oldURL != "" {
		// best-effort: an orphaned object is just storage noise
		_ = svc.fileStore.Delete(ctx, oldURL)
	}
	return usr, nil
}
