package accounts

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
)

// RouteAuthenticator guards routes that require a live session. Every
// request re-validates the token signature and expiry, then re-fetches the
// account so status changes take effect immediately, not at token expiry.
type RouteAuthenticator struct {
	auth         Authenticator
	cfg          Config
	Logger       Logger
	ErrorHandler func(c *fiber.Ctx, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

// ProtectedRoute returns the middleware enforcing session validation.
func (a *RouteAuthenticator) ProtectedRoute() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		token, err := a.tokenFromRequest(ctx)
		if err != nil {
			return a.ErrorHandler(ctx, err)
		}

		session, err := a.auth.SessionFromToken(token)
		if err != nil {
			return a.ErrorHandler(ctx, a.classifyTokenError(err))
		}

		identity, err := a.auth.IdentityFromSession(ctx.UserContext(), session)
		if err != nil {
			return a.ErrorHandler(ctx, err)
		}

		// rejected here even though the token is cryptographically valid:
		// the account record is the authority on current standing
		if identity.Status() != UserStatusActive {
			return a.ErrorHandler(ctx, ErrAccountNotActive)
		}

		ctx.Locals(a.cfg.GetContextKey(), session)
		ctx.SetUserContext(WithIdentityContext(ctx.UserContext(), identity))

		return ctx.Next()
	}
}

// tokenFromRequest resolves the raw token using the configured lookup,
// "header:Authorization" or "cookie:<name>".
func (a *RouteAuthenticator) tokenFromRequest(ctx *fiber.Ctx) (string, error) {
	lookup := a.cfg.GetTokenLookup()
	if lookup == "" {
		lookup = "header:Authorization"
	}

	for _, source := range strings.Split(lookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(source), ":", 2)
		if len(parts) != 2 {
			continue
		}

		var raw string
		switch parts[0] {
		case "header":
			raw = ctx.Get(parts[1])
			if scheme := a.cfg.GetAuthScheme(); scheme != "" && raw != "" {
				prefix := scheme + " "
				if !strings.HasPrefix(raw, prefix) {
					continue
				}
				raw = strings.TrimPrefix(raw, prefix)
			}
		case "cookie":
			raw = ctx.Cookies(parts[1])
		}

		if raw != "" {
			return raw, nil
		}
	}

	return "", goerrors.New("missing or malformed authentication token", goerrors.CategoryAuth).
		WithTextCode(TextCodeSessionNotFound)
}

func (a *RouteAuthenticator) classifyTokenError(err error) error {
	if IsTokenExpiredError(err) {
		return ErrTokenExpired
	}
	if IsMalformedError(err) {
		return ErrTokenMalformed
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryAuth, "Invalid authentication token")
}

func (a *RouteAuthenticator) defaultErrHandler(c *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryAuth, "An unexpected authentication error")
	}

	a.Logger.Info(
		"Middleware rejected request",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	status := statusFromError(richErr)
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{
			"error": "An unexpected server error occurred",
		})
	}

	body := fiber.Map{"error": richErr.Message}
	if richErr.TextCode != "" {
		body["text_code"] = richErr.TextCode
	}

	return c.Status(status).JSON(body)
}
