package service

import (
	"context"
	"fmt"

	"github.com/aitrends/backend/internal/models"
	"github.com/aitrends/backend/internal/repository"
)

type UserService struct {
	users  *repository.UserRepository
	admins *repository.AdminRepository
}

func NewUserService(users *repository.UserRepository, admins *repository.AdminRepository) *UserService {
	return &UserService{users: users, admins: admins}
}

// Ensure returns the user with the given telegram id, creating the row on
// first contact. The second return reports whether the row was created.
func (s *UserService) Ensure(ctx context.Context, tgid int64) (*models.User, bool, error) {
	user, created, err := s.users.Ensure(ctx, tgid)
	if err != nil {
		return nil, false, fmt.Errorf("ensure user: %w", err)
	}
	return user, created, nil
}

func (s *UserService) Get(ctx context.Context, tgid int64) (*models.User, error) {
	user, err := s.users.GetByTGID(ctx, tgid)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, models.ErrNotFound
	}
	return user, nil
}

// AdjustBalance applies a signed delta to the user's balance. A debit that
// would push the balance negative is rejected with ErrInsufficientFunds.
func (s *UserService) AdjustBalance(ctx context.Context, tgid int64, delta float64) (*models.User, error) {
	return s.users.AdjustBalance(ctx, tgid, delta)
}

// LinkReferral attaches a referrer to the user by referral code. The link is
// write-once; self-referral, unknown codes and already-linked users are
// rejected with distinct errors.
func (s *UserService) LinkReferral(ctx context.Context, tgid int64, code string) error {
	referrer, err := s.users.FindByReferralCode(ctx, code)
	if err != nil {
		return fmt.Errorf("find referrer: %w", err)
	}
	if referrer == nil {
		return models.ErrUnknownReferrer
	}
	return s.users.LinkReferral(ctx, tgid, referrer.TGID)
}

// EnsureReferralCode returns the user's referral code, generating one if the
// user does not have one yet.
func (s *UserService) EnsureReferralCode(ctx context.Context, tgid int64) (string, error) {
	return s.users.EnsureReferralCode(ctx, tgid)
}

func (s *UserService) CountReferrals(ctx context.Context, tgid int64) (int, error) {
	return s.users.CountReferrals(ctx, tgid)
}

func (s *UserService) SetBanned(ctx context.Context, tgid int64, banned bool) error {
	return s.users.SetBanned(ctx, tgid, banned)
}

func (s *UserService) SetEmail(ctx context.Context, tgid int64, email string) error {
	return s.users.SetEmail(ctx, tgid, email)
}

func (s *UserService) IsAdmin(ctx context.Context, tgid int64) (bool, error) {
	return s.admins.IsAdmin(ctx, tgid)
}
