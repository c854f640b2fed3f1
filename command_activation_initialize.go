package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type StartActivationMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(*StartActivationResponse)
}

func (e StartActivationMessage) Type() string { return "user.activation_start" }

type StartActivationResponse struct {
	Token   *ActionToken
	Success bool
}

// StartActivationHandler issues an activation token and dispatches the
// notification. A delivered live token rate limits further requests; a token
// whose notification never went out is superseded by the next request.
type StartActivationHandler struct {
	repo   RepositoryManager
	mailer Mailer
	logger Logger
}

func NewStartActivationHandler(repo RepositoryManager, mailer Mailer) *StartActivationHandler {
	return &StartActivationHandler{
		repo:   repo,
		mailer: mailer,
		logger: defLogger{},
	}
}

func (h *StartActivationHandler) WithLogger(logger Logger) *StartActivationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *StartActivationHandler) Execute(ctx context.Context, event StartActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during activation start",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *StartActivationHandler) execute(ctx context.Context, event StartActivationMessage) error {
	resp := &StartActivationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			// activation send sits behind a surface where the account is
			// already known, so a 404 leaks nothing new
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for activation")
	}

	if user.IsActive() {
		return goerrors.New("account is already active", goerrors.CategoryBadInput).
			WithTextCode("ACCOUNT_ALREADY_ACTIVE")
	}

	active, err := h.repo.ActivationTokens().HasActive(ctx, user.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for active tokens")
	}

	if active {
		return ErrActionTokenActive
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := h.repo.ActivationTokens().IssueTx(ctx, tx, user.ID, user.Email)
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue activation token")
	}

	// dispatch is sequenced after the transaction commits; no connection is
	// held across the network call. A failed dispatch leaves the issued
	// token valid but undelivered, so a retry supersedes it instead of
	// hitting the rate limit gate.
	if err := h.mailer.SendActivationEmail(ctx, user.Email, resp.Token.Token); err != nil {
		h.logger.Error("activation email dispatch failed", "user_id", user.ID.String(), "error", err)
		return err
	}

	if err := h.repo.ActivationTokens().MarkDelivered(ctx, resp.Token.Token); err != nil {
		h.logger.Error("failed to record activation delivery", "user_id", user.ID.String(), "error", err)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
