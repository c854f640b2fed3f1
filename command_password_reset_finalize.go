package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// MinPasswordLength is the minimum accepted password size for resets and
// registrations.
const MinPasswordLength = 10

type FinalizePasswordResetMessage struct {
	Token      string `json:"token" example:"VqHJ9yYClUkZ1yGR8nHiTw" doc:"Reset token from the email link."`
	Password   string `json:"password" example:"some_secret_word" doc:"Replacement password."`
	OnResponse func(*FinalizePasswordResetResponse)
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

type FinalizePasswordResetResponse struct {
	UserID  string
	Success bool
}

// FinalizePasswordResetHandler redeems a reset token and replaces the
// password hash. Hash-and-persist and the token consumption share one
// transaction: a failure before consume leaves the token redeemable.
type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	resp := &FinalizePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if len(event.Password) < MinPasswordLength {
		return goerrors.New("password does not meet the minimum length policy", goerrors.CategoryValidation).
			WithTextCode("PASSWORD_TOO_WEAK")
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := h.repo.PasswordResetTokens().ValidateTx(ctx, tx, event.Token)
		if err != nil {
			return err
		}

		passwordHash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		// persist first; consuming last means a failed write leaves the
		// token redeemable for a retry within its TTL
		if err := h.repo.Users().ResetPasswordTx(ctx, tx, record.UserID, passwordHash); err != nil {
			if goerrors.IsNotFound(err) {
				return ErrActionTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		if err := h.repo.PasswordResetTokens().ConsumeTx(ctx, tx, record.Token); err != nil {
			return err
		}

		resp.UserID = record.UserID.String()
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
