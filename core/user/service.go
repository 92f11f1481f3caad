package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/klassenbuch/core"
)

var (
	// errors
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrAccountDeactivated   = errors.New("account deactivated")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrWrongPassword        = errors.New("wrong password")
	ErrInvalidResetToken    = errors.New("invalid or expired password reset link")
)

type Service struct {
	users    core.Table[User]
	mailSvc  core.EmailService
	validate *validator.Validate
	tokens   passwordResetTokens
}

func NewService(users core.Table[User], mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{
		users:    users,
		mailSvc:  mailSvc,
		validate: validate,
		tokens: passwordResetTokens{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.PasswordResetTimeout,
		},
	}
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	usr, err := svc.users.Load(ctx, id)
	return usr, errors.Wrap(err, "loading user")
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	usrs, err := svc.users.Find(ctx, core.Query{Where: core.Eq("email", core.CleanString(email, true /* lower */)), Limit: 1})
	if err != nil {
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if len(usrs) == 0 {
		return User{}, core.ErrNotFound
	}
	return usrs[0], nil
}

// List returns the active users ordered by name.
func (svc *Service) List(ctx context.Context) ([]User, error) {
	usrs, err := svc.users.Find(ctx, core.Query{
		Where: core.Eq("is_active", true),
		Order: []core.DBOrdering{{Field: "name", Ascending: true}},
	})
	return usrs, errors.Wrap(err, "listing users")
}

// TokenByUserID returns the auth token of an active user.
func (svc *Service) TokenByUserID(ctx context.Context, id int64) (string, error) {
	usr, err := svc.users.Load(ctx, id)
	if err != nil {
		return "", err
	}
	if !usr.IsActive {
		return "", core.ErrNotFound
	}
	return usr.Token, nil
}

// Actor loads the user acting with the given id.
func (svc *Service) Actor(ctx context.Context, id int64) (core.Actor, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return core.Actor{}, err
	}
	return usr.Actor(), nil
}

// Recipients returns the addresses of all active users.
func (svc *Service) Recipients(ctx context.Context) ([]mail.Address, error) {
	usrs, err := svc.List(ctx)
	if err != nil {
		return nil, err
	}
	addrs := make([]mail.Address, 0, len(usrs))
	for _, usr := range usrs {
		addrs = append(addrs, mail.Address{Name: usr.Name, Address: usr.Email})
	}
	return addrs, nil
}

// Authenticate checks the credentials and records the login.
// Users get an auth token on their first login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	if usr.Token == "" {
		usr.RotateToken()
	}
	usr.LastLogin = null.TimeFrom(time.Now().UTC())
	if err = svc.users.Store(ctx, &usr); err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func (svc *Service) checkEmailUniqueness(ctx context.Context, email string, exclID int64) error {
	usrs, err := svc.users.Find(ctx, core.Query{Where: core.Eq("email", email)})
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	for _, usr := range usrs {
		if usr.ID != exclID {
			return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkEmailUniqueness(ctx, nu.Email, 0); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Email:     nu.Email,
		IsAdmin:   nu.IsAdmin,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.RotateToken()
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	if err := svc.users.Store(ctx, &usr); err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) UpdateProfile(ctx context.Context, id int64, up UpdateProfile) (User, error) {
	up.clean()
	if err := svc.validate.Struct(up); err != nil {
		return User{}, err
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if up.Email != "" && up.Email != usr.Email {
		if err = svc.checkEmailUniqueness(ctx, up.Email, usr.ID); err != nil {
			return User{}, err
		}
		usr.Email = up.Email
	}
	if up.Name != "" {
		usr.Name = up.Name
	}
	usr.UpdatedAt = time.Now().UTC()
	if err = svc.users.Store(ctx, &usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

// ChangePassword sets a new password and rotates the auth token.
func (svc *Service) ChangePassword(ctx context.Context, id int64, cp ChangePassword) (User, error) {
	if err := svc.validate.Struct(cp); err != nil {
		return User{}, err
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err = usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, core.NewValidationError(ErrWrongPassword, core.FieldError{Field: "old_password", Error: ErrWrongPassword.Error()})
	}
	return svc.setPassword(ctx, usr, cp.Password)
}

// SetPassword sets the password of the user with the given email, bypassing the policy.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	return svc.setPassword(ctx, usr, pwd)
}

func (svc *Service) setPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.RotateToken()
	usr.UpdatedAt = time.Now().UTC()
	if err := svc.users.Store(ctx, &usr); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	return usr, nil
}

// RequestPasswordReset mails a reset link. Unknown or inactive emails are silently ignored.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	if !usr.IsActive {
		return nil
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": svc.tokens.makeToken(usr),
		},
	})
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetPassword) (User, error) {
	if err := svc.validate.Struct(rp); err != nil {
		return User{}, err
	}
	invalid := core.NewValidationError(ErrInvalidResetToken, core.FieldError{Field: "token", Error: ErrInvalidResetToken.Error()})

	id, err := decodeUID(rp.UID)
	if err != nil {
		return User{}, invalid
	}
	usr, err := svc.users.Load(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return User{}, invalid
		}
		return User{}, errors.Wrap(err, "loading user")
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		return User{}, invalid
	}
	return svc.setPassword(ctx, usr, rp.Password)
}
