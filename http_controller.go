package accounts

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// AuthControllerRoutes are the mount points for the account endpoints.
type AuthControllerRoutes struct {
	Register            string
	Login               string
	Me                  string
	Activation          string
	ActivationRedeem    string
	PasswordReset       string
	PasswordResetRedeem string
}

// AuthController wires the flow handlers to the fiber app. Responses are
// JSON; outcomes map to status codes through the error category.
type AuthController struct {
	Debug  bool
	Logger Logger
	Repo   RepositoryManager
	Auther Authenticator
	Mailer Mailer
	Routes *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:            "/auth/register",
			Login:               "/auth/login",
			Me:                  "/auth/me",
			Activation:          "/auth/activation",
			ActivationRedeem:    "/auth/activation/redeem",
			PasswordReset:       "/auth/password-reset",
			PasswordResetRedeem: "/auth/password-reset/redeem",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Mailer == nil {
		panic("Missing Mailer in auth controller...")
	}

	return c
}

func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithControllerMailer(mailer Mailer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Mailer = mailer
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// RegisterAuthRoutes mounts the account endpoints on the app.
func RegisterAuthRoutes(app *fiber.App, protected fiber.Handler, opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost).Name("register.post")
	app.Post(controller.Routes.Login, controller.LoginPost).Name("sign-in.post")
	app.Get(controller.Routes.Me, protected, controller.MeGet).Name("me.get")

	app.Post(controller.Routes.Activation, controller.ActivationPost).Name("activation.post")
	app.Post(controller.Routes.ActivationRedeem, controller.ActivationRedeemPost).Name("activation-redeem.post")

	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).Name("pwd-reset.post")
	app.Post(controller.Routes.PasswordResetRedeem, controller.PasswordResetRedeemPost).Name("pwd-reset-redeem.post")

	return controller
}

// LoginPayload is the credential pair for password authentication.
type LoginPayload struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 100)),
	)
}

// RegistrationPayload is the signup body.
type RegistrationPayload struct {
	FirstName       string `form:"first_name" json:"first_name"`
	LastName        string `form:"last_name" json:"last_name"`
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(MinPasswordLength, 100),
			validation.By(validateStringEquals(r.Password)),
		),
	)
}

// EmailPayload carries the address for activation and reset requests.
type EmailPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r EmailPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
	)
}

// TokenPayload carries an opaque action token.
type TokenPayload struct {
	Token string `form:"token" json:"token"`
}

// Validate will validate the payload
func (r TokenPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, validation.Length(16, 128)),
	)
}

// ResetRedeemPayload carries the reset token plus the replacement password.
type ResetRedeemPayload struct {
	Token    string `form:"token" json:"token"`
	Password string `form:"password" json:"password"`
}

// Validate will validate the payload
func (r ResetRedeemPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, validation.Length(16, 128)),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
	)
}

func (a *AuthController) RegisterPost(ctx *fiber.Ctx) error {
	payload := new(RegistrationPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload", "error", err)
		return a.renderValidationError(ctx, err)
	}

	var resp *RegisterUserResponse
	handler := NewRegisterUserHandler(a.Repo)
	err := handler.Execute(ctx.UserContext(), RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Username:  payload.Username,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		OnResponse: func(r *RegisterUserResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	if a.Debug {
		fmt.Println(print.MaybePrettyJSON(resp))
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"identity": NewIdentityView(resp.User),
	})
}

func (a *AuthController) LoginPost(ctx *fiber.Ctx) error {
	payload := new(LoginPayload)

	if err := ctx.BodyParser(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	result, err := a.Auther.Login(ctx.UserContext(), payload.Email, payload.Password)
	if err != nil {
		return a.renderError(ctx, err)
	}

	// activation gating is policy layered above authentication: the
	// credentials were right, functional access still requires activation
	if result.Identity.Status() != UserStatusActive {
		return a.renderError(ctx, ErrAccountNotActive)
	}

	return ctx.JSON(fiber.Map{
		"token":    result.Token,
		"identity": identityMap(result.Identity),
	})
}

func (a *AuthController) MeGet(ctx *fiber.Ctx) error {
	identity, ok := IdentityFromContext(ctx.UserContext())
	if !ok {
		return a.renderError(ctx, ErrUnableToFindSession)
	}

	return ctx.JSON(fiber.Map{
		"identity": identityMap(identity),
	})
}

func (a *AuthController) ActivationPost(ctx *fiber.Ctx) error {
	payload := new(EmailPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	handler := NewStartActivationHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := handler.Execute(ctx.UserContext(), StartActivationMessage{Email: payload.Email}); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"success": true})
}

func (a *AuthController) ActivationRedeemPost(ctx *fiber.Ctx) error {
	payload := new(TokenPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if err := payload.Validate(); err != nil {
		// invalid token shape is indistinguishable from an unknown token
		return a.renderError(ctx, ErrActionTokenInvalid)
	}

	handler := NewFinalizeActivationHandler(a.Repo).WithLogger(a.Logger)
	if err := handler.Execute(ctx.UserContext(), FinalizeActivationMessage{Token: payload.Token}); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"success": true})
}

func (a *AuthController) PasswordResetPost(ctx *fiber.Ctx) error {
	payload := new(EmailPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	handler := NewInitializePasswordResetHandler(a.Repo, a.Mailer).WithLogger(a.Logger)
	if err := handler.Execute(ctx.UserContext(), InitializePasswordResetMessage{Email: payload.Email}); err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"success": true})
}

func (a *AuthController) PasswordResetRedeemPost(ctx *fiber.Ctx) error {
	payload := new(ResetRedeemPayload)

	if err := ctx.BodyParser(payload); err != nil {
		return a.renderError(ctx, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body"))
	}

	if err := payload.Validate(); err != nil {
		return a.renderValidationError(ctx, err)
	}

	handler := NewFinalizePasswordResetHandler(a.Repo).WithLogger(a.Logger)
	err := handler.Execute(ctx.UserContext(), FinalizePasswordResetMessage{
		Token:    payload.Token,
		Password: payload.Password,
	})
	if err != nil {
		return a.renderError(ctx, err)
	}

	return ctx.JSON(fiber.Map{"success": true})
}

// renderError translates domain errors into status-code-bearing JSON.
// Only expected outcomes surface detail; everything else is a generic 500.
func (a *AuthController) renderError(ctx *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred")
	}

	status := statusFromError(richErr)
	if status == fiber.StatusInternalServerError {
		a.Logger.Error("request failed",
			"category", richErr.Category,
			"error", richErr.Message,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		return ctx.Status(status).JSON(fiber.Map{
			"error": "An unexpected server error occurred",
		})
	}

	body := fiber.Map{"error": richErr.Message}
	if richErr.TextCode != "" {
		body["text_code"] = richErr.TextCode
	}

	return ctx.Status(status).JSON(body)
}

func (a *AuthController) renderValidationError(ctx *fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":      "validation failed",
		"validation": err.Error(),
	})
}

func statusFromError(richErr *goerrors.Error) int {
	switch richErr.Category {
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryRateLimit:
		return fiber.StatusTooManyRequests
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// IdentityView is the safe projection shipped in responses.
type IdentityView struct {
	ID       string     `json:"id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Status   UserStatus `json:"status"`
}

// NewIdentityView strips a user record down to its response shape.
func NewIdentityView(user *User) *IdentityView {
	if user == nil {
		return nil
	}
	return &IdentityView{
		ID:       user.ID.String(),
		Username: user.Username,
		Email:    user.Email,
		Status:   user.Status,
	}
}

func identityMap(identity Identity) *IdentityView {
	if identity == nil {
		return nil
	}
	return &IdentityView{
		ID:       identity.ID(),
		Username: identity.Username(),
		Email:    identity.Email(),
		Status:   identity.Status(),
	}
}

func validateStringEquals(expected string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != expected {
			return fmt.Errorf("value does not match")
		}
		return nil
	}
}
