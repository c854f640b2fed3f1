package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizeActivationMessage struct {
	Token      string `json:"token" example:"VqHJ9yYClUkZ1yGR8nHiTw" doc:"Activation token from the email link."`
	OnResponse func(*FinalizeActivationResponse)
}

func (e FinalizeActivationMessage) Type() string { return "user.activation_finalize" }

type FinalizeActivationResponse struct {
	User    *User
	Success bool
}

// FinalizeActivationHandler redeems an activation token. The status flip and
// the token consumption run in one transaction: if the flip fails the token
// stays redeemable, and concurrent redeemers serialize on the token row.
type FinalizeActivationHandler struct {
	repo         RepositoryManager
	stateMachine UserStateMachine
	logger       Logger
}

func NewFinalizeActivationHandler(repo RepositoryManager) *FinalizeActivationHandler {
	return &FinalizeActivationHandler{
		repo:         repo,
		stateMachine: NewUserStateMachine(repo.Users()),
		logger:       defLogger{},
	}
}

func (h *FinalizeActivationHandler) WithLogger(logger Logger) *FinalizeActivationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizeActivationHandler) WithStateMachine(sm UserStateMachine) *FinalizeActivationHandler {
	if sm != nil {
		h.stateMachine = sm
	}
	return h
}

func (h *FinalizeActivationHandler) Execute(ctx context.Context, event FinalizeActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during activation finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeActivationHandler) execute(ctx context.Context, event FinalizeActivationMessage) error {
	resp := &FinalizeActivationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := h.repo.ActivationTokens().ValidateTx(ctx, tx, event.Token)
		if err != nil {
			return err
		}

		user, err := h.repo.Users().GetByIDTx(ctx, tx, record.UserID.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				// account went away after issuance; token is worthless
				return ErrActionTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for activation")
		}

		// flip first: a failed transition aborts the tx and the token
		// remains redeemable for a retry within its TTL
		updated, err := h.stateMachine.Transition(ctx, tx, user, UserStatusActive)
		if err != nil {
			return err
		}

		if err := h.repo.ActivationTokens().ConsumeTx(ctx, tx, record.Token); err != nil {
			return err
		}

		resp.User = updated
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize activation")
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
