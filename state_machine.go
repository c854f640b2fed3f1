package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	textCodeInvalidTransition = "INVALID_USER_STATE_TRANSITION"
)

// ErrInvalidTransition is returned when a requested status change is not allowed.
var ErrInvalidTransition = goerrors.New("invalid user state transition", goerrors.CategoryValidation).
	WithTextCode(textCodeInvalidTransition)

// statusUpdater is the slice of the Users repository the machine needs.
type statusUpdater interface {
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
}

// UserStateMachine defines lifecycle operations for users.
type UserStateMachine interface {
	Transition(ctx context.Context, tx bun.IDB, user *User, target UserStatus) (*User, error)
	CurrentStatus(user *User) UserStatus
}

// allowedTransitions is the closed transition graph: accounts activate
// exactly once and never go back.
var allowedTransitions = map[UserStatus][]UserStatus{
	UserStatusInactive: {UserStatusActive},
	UserStatusActive:   {},
}

type userStateMachine struct {
	store statusUpdater
	now   func() time.Time
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*userStateMachine)

// WithStateMachineClock injects a custom clock (useful for tests).
func WithStateMachineClock(clock func() time.Time) StateMachineOption {
	return func(sm *userStateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// NewUserStateMachine builds the lifecycle machine on top of the Users store.
func NewUserStateMachine(store statusUpdater, opts ...StateMachineOption) UserStateMachine {
	sm := &userStateMachine{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	return sm
}

func (sm *userStateMachine) CurrentStatus(user *User) UserStatus {
	if user == nil {
		return ""
	}
	if user.Status == "" {
		return UserStatusInactive
	}
	return user.Status
}

// Transition validates the move against the transition graph and persists
// the new status. Soft deleted users never transition.
func (sm *userStateMachine) Transition(ctx context.Context, tx bun.IDB, user *User, target UserStatus) (*User, error) {
	if user == nil {
		return nil, ErrIdentityNotFound
	}

	if user.DeletedAt != nil {
		return nil, goerrors.New("invalid user state transition", goerrors.CategoryValidation).
			WithTextCode(textCodeInvalidTransition).
			WithMetadata(map[string]any{"reason": "user is deleted"})
	}

	from := sm.CurrentStatus(user)
	if !transitionAllowed(from, target) {
		return nil, goerrors.New("invalid user state transition", goerrors.CategoryValidation).
			WithTextCode(textCodeInvalidTransition).
			WithMetadata(map[string]any{"from": from, "to": target})
	}

	opts := []StatusUpdateOption{}
	if target == UserStatusActive {
		activatedAt := sm.now()
		opts = append(opts, WithActivatedAt(activatedAt))
	}

	return sm.store.UpdateStatusTx(ctx, tx, user.ID, target, opts...)
}

func transitionAllowed(from, to UserStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
