package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Token   *ActionToken
	Success bool
}

// InitializePasswordResetHandler issues a reset token. Unknown emails get
// the exact same response shape as known ones so the endpoint cannot be
// used to enumerate accounts.
type InitializePasswordResetHandler struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, mailer Mailer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		mailer: mailer,
		logger: defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// respond identically to the success case, token never issued
			resp.Success = true
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	if !user.IsActive() {
		return goerrors.New("account must be activated before resetting the password", goerrors.CategoryBadInput).
			WithTextCode(TextCodeAccountInactive)
	}

	active, err := h.repo.PasswordResetTokens().HasActive(ctx, user.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for active tokens")
	}

	if active {
		return ErrActionTokenActive
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := h.repo.PasswordResetTokens().IssueTx(ctx, tx, user.ID, user.Email)
		if err != nil {
			return err
		}
		resp.Token = token
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue password reset token")
	}

	// dispatch runs after the commit; a delivery failure never rolls back
	// the issuance, the token stays valid but undelivered and the next
	// request supersedes it
	if err := h.mailer.SendPasswordResetEmail(ctx, user.Email, resp.Token.Token); err != nil {
		h.logger.Error("password reset email dispatch failed", "user_id", user.ID.String(), "error", err)
		return err
	}

	if err := h.repo.PasswordResetTokens().MarkDelivered(ctx, resp.Token.Token); err != nil {
		h.logger.Error("failed to record password reset delivery", "user_id", user.ID.String(), "error", err)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
