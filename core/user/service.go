package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/coffee3333/erudite/core"
	"github.com/coffee3333/erudite/core/otp"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrSlugExists     = errors.New("a user with this slug already exists")

	errCodeInvalidText = "invalid or expired code"

	// email templates
	passwordResetTmpl = "password-reset"
	emailVerifyTmpl   = "email-verify"
)

// bounded retries when a concurrent creation wins the slug uniqueness race
const slugWriteRetries = 3

type (
	Repository interface {
		CheckUsernameUniqueness(username, email string, excludedUsers ...User) error
		UserSlugExists(slug string) (bool, error)
		CreateUser(user User) (User, error)
		QueryAllUsers() ([]User, error)
		GetUserByID(id string) (User, error)
		GetUserByUsername(username string) (User, error)
		GetUserByEmail(email string) (User, error)
		GetUserByUsernameOrEmail(username string) (User, error)
		GetUserBySlug(slug string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(filter QueryFilter, orderings ...core.DBOrdering) ([]User, error)
		UpdateUser(user User, isActive *bool) (User, error)
		SetUserEmailVerified(id string) (User, error)
		DeleteUsersByID(ids ...string) error
	}

	Service interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(nu NewUser) (User, error)
		Query(filter *QueryFilter, orderings []core.DBOrdering) ([]User, error)
		GetByID(id string) (User, error)
		GetByUsername(uname string) (User, error)
		GetByEmail(email string) (User, error)
		GetByUsernameOrEmail(uname string) (User, error)
		GetBySlug(slug string) (User, error)
		Update(id string, uu UpdateUser) (User, error)
		SetLastLogin(usr User) (User, error)
		Delete(ids ...string) error
		RequestPasswordReset(email string) error
		ResetPassword(data ResetUserPassword) error
		RequestEmailVerification(email string) error
		ConfirmEmail(data ConfirmEmail) (User, error)
		OAuthAuthenticate(profile OAuthProfile) (User, error)
	}

	service struct {
		repo    Repository
		codeSvc otp.Service
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, codeSvc otp.Service, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		codeSvc: codeSvc,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(nu NewUser) (User, error) {
	now := time.Now().UTC()
	active := true
	roles := nu.Roles
	if len(roles) == 0 {
		roles = []string{RoleStudent}
	}
	usr := User{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  &active,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.createWithSlug(usr)
}

// createWithSlug assigns a unique slug then persists the user, retrying a
// bounded number of times when a concurrent creation wins the uniqueness race.
func (svc *service) createWithSlug(usr User) (User, error) {
	for attempt := 0; ; attempt++ {
		slug, err := svc.assignSlug(usr)
		if err != nil {
			return User{}, err
		}
		usr.Slug = slug

		created, err := svc.repo.CreateUser(usr)
		if errors.Cause(err) == ErrSlugExists && attempt < slugWriteRetries {
			continue
		}
		return created, err
	}
}

func (svc *service) assignSlug(usr User) (string, error) {
	var checkErr error
	exists := func(candidate string) bool {
		taken, err := svc.repo.UserSlugExists(candidate)
		if err != nil {
			checkErr = err
			return false
		}
		return taken
	}

	title := usr.Username
	if title == "" {
		title = strings.SplitN(usr.Email, "@", 2)[0]
	}
	slug, err := core.AssignSlug(title, "user", slugMaxLen, exists)
	if checkErr != nil {
		return "", errors.Wrap(checkErr, "checking user slug")
	}
	return slug, err
}

func (svc *service) Query(filter *QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.FilterUsers(*filter, orderings...)
}

func (svc *service) GetByID(id string) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *service) GetByUsername(uname string) (User, error) {
	return svc.repo.GetUserByUsername(core.CleanString(uname, true /* lower */))
}

func (svc *service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *service) GetByUsernameOrEmail(uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(core.CleanString(uname, true /* lower */))
}

func (svc *service) GetBySlug(slug string) (User, error) {
	return svc.repo.GetUserBySlug(core.CleanString(slug, true /* lower */))
}

func (svc *service) Update(id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Bio:       uu.Bio,
		PhotoURL:  uu.PhotoURL,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	// the slug is assigned once at creation; renames never recompute it
	return svc.repo.UpdateUser(usr, uu.IsActive)
}

func (svc *service) SetLastLogin(usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(User{ID: usr.ID, LastLogin: usr.LastLogin}, nil)
}

func (svc *service) Delete(ids ...string) error {
	return svc.repo.DeleteUsersByID(ids...)
}

// RequestPasswordReset mints a reset code and emails it to the account owner.
// Delivery is best-effort: the code is persisted and the call succeeds even if
// the email cannot be sent; email services log their own failures.
func (svc *service) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	code, err := svc.codeSvc.Mint(usr.ID, otp.PurposePasswordReset)
	if err != nil {
		return errors.Wrap(err, "minting password reset code")
	}
	svc.sendCodeMail(usr, "Your password reset code", passwordResetTmpl, code.Value)
	return nil
}

func (svc *service) ResetPassword(data ResetUserPassword) error {
	usr, err := svc.GetByEmail(data.Email)
	if err != nil {
		return err
	}
	if err := svc.consumeCode(usr.ID, otp.PurposePasswordReset, data.Code); err != nil {
		return err
	}
	if err := usr.SetPassword(data.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(usr, nil)
	return errors.Wrap(err, "saving new password")
}

func (svc *service) RequestEmailVerification(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	code, err := svc.codeSvc.Mint(usr.ID, otp.PurposeEmailVerify)
	if err != nil {
		return errors.Wrap(err, "minting email verification code")
	}
	svc.sendCodeMail(usr, "Your email verification code", emailVerifyTmpl, code.Value)
	return nil
}

func (svc *service) ConfirmEmail(data ConfirmEmail) (User, error) {
	usr, err := svc.GetByEmail(data.Email)
	if err != nil {
		return User{}, err
	}
	if err := svc.consumeCode(usr.ID, otp.PurposeEmailVerify, data.Code); err != nil {
		return User{}, err
	}
	return svc.repo.SetUserEmailVerified(usr.ID)
}

// OAuthAuthenticate returns the account matching an externally asserted
// identity, provisioning a verified student account on first login.
func (svc *service) OAuthAuthenticate(profile OAuthProfile) (User, error) {
	email := core.CleanString(profile.Email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}

	usr, err := svc.repo.GetUserByEmail(email)
	if err == nil {
		return usr, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return User{}, err
	}

	now := time.Now().UTC()
	active := true
	usr = User{
		ID:            uuid.New().String(),
		Name:          core.CleanString(profile.Name),
		Email:         email,
		IsActive:      &active,
		EmailVerified: true, // the provider already verified the address
		Roles:         []string{RoleStudent},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	// unusable password; the account authenticates via the provider
	if err := usr.SetPassword(uuid.New().String()); err != nil {
		return User{}, err
	}
	return svc.createWithSlug(usr)
}

// consumeCode collapses invalid and expired codes into one user-facing failure.
func (svc *service) consumeCode(userID string, purpose otp.Purpose, value string) error {
	if err := svc.codeSvc.Consume(userID, purpose, value); err != nil {
		switch errors.Cause(err) {
		case otp.ErrCodeInvalid, otp.ErrCodeExpired:
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: errCodeInvalidText})
		}
		return err
	}
	return nil
}

// CodeEmailData is the template context for code-delivery emails.
type CodeEmailData struct {
	Name string
	Code string
}

func (svc *service) sendCodeMail(usr User, subject, tmpl, code string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: CodeEmailData{Name: usr.Name, Code: code},
	})
}
