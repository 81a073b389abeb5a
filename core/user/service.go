package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/pkl/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidSupervisor  = errors.New("supervisor must be an active teacher")
	ErrInvalidCredentials = errors.New("invalid credentials")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, user User) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, user User) (User, error)
		DeleteUsers(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
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

// checkSupervisor verifies that a non-empty supervisor id points to an active teacher.
func (svc *Service) checkSupervisor(id string) error {
	if id == "" {
		return nil
	}
	sup, err := svc.repo.GetUser(context.Background(), GetFilter{ID: id})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(ErrInvalidSupervisor, core.FieldError{
				Field: "supervisor_id",
				Error: ErrInvalidSupervisor.Error(),
			})
		}
		return err
	}
	if !sup.IsActive || !sup.IsTeacher() {
		return core.NewValidationError(ErrInvalidSupervisor, core.FieldError{
			Field: "supervisor_id",
			Error: ErrInvalidSupervisor.Error(),
		})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:         nu.Name,
		Username:     nu.Username,
		Email:        nu.Email,
		IsActive:     true,
		Roles:        nu.Roles,
		SupervisorID: nu.SupervisorID,
		Company:      nu.Company,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "user.Service.Create")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering...)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: core.CleanString(id, true /* lower */)})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

// Authenticate returns the active user matching the given credentials.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !usr.IsActive {
		return User{}, ErrInvalidCredentials
	}
	if err := usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return usr, nil
}

func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Roles = uu.Roles
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.SupervisorID != nil {
		usr.SupervisorID = *uu.SupervisorID
	}
	if uu.Company != nil {
		usr.Company = *uu.Company
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "user.Service.Update")
		}
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsers(ctx, ids...)
}

// ListRoster returns every active student. It is read fresh on each call.
func (svc *Service) ListRoster(ctx context.Context) ([]User, error) {
	active := true
	return svc.repo.QueryUsers(ctx, &QueryFilter{Roles: StudentRoles, IsActive: &active}, core.DBOrdering{Field: "name", Ascending: true})
}

// Supervisees returns the active students supervised by the given teacher.
func (svc *Service) Supervisees(ctx context.Context, teacherID string) ([]User, error) {
	active := true
	return svc.repo.QueryUsers(ctx, &QueryFilter{
		Roles:        StudentRoles,
		IsActive:     &active,
		SupervisorID: teacherID,
	}, core.DBOrdering{Field: "name", Ascending: true})
}
