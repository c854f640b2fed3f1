package accounts

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCreds is returned for any credential mismatch,
	// including unknown identifiers. Callers must not be able to tell
	// which part of the credential pair was wrong.
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeAccountInactive flags authenticated but not yet activated accounts.
	TextCodeAccountInactive = "ACCOUNT_NOT_ACTIVE"
	// TextCodeTokenInvalid covers missing, expired, and already-used action
	// tokens. Collapsed into one externally visible code on purpose.
	TextCodeTokenInvalid = "TOKEN_INVALID"
	// TextCodeTokenExpired flags expired session tokens.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed flags undecodable session tokens.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeTokenAlreadyIssued signals an unexpired unused token already
	// exists for the identity and purpose.
	TextCodeTokenAlreadyIssued = "TOKEN_ALREADY_ISSUED"
	// TextCodeTooManyAttempts signals the login attempt cooldown kicked in.
	TextCodeTooManyAttempts = "TOO_MANY_LOGIN_ATTEMPTS"
	// TextCodeSessionNotFound signals the request carried no usable session.
	TextCodeSessionNotFound = "SESSION_NOT_FOUND"
	// TextCodeDeliveryFailed signals outbound email dispatch failed. The
	// issued token stays valid; a resend supersedes it.
	TextCodeDeliveryFailed = "DELIVERY_FAILED"
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound)

// ErrMismatchedHashAndPassword is the single error for bad credentials
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrAccountNotActive blocks functional access until the account is activated
var ErrAccountNotActive = goerrors.New("account has not been activated", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountInactive)

// ErrActionTokenInvalid covers missing, expired, and consumed action tokens
var ErrActionTokenInvalid = goerrors.New("invalid or expired token", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenInvalid)

// ErrActionTokenActive is returned when issuance is rate limited by a live token
var ErrActionTokenActive = goerrors.New("an unexpired token was already issued", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTokenAlreadyIssued)

// ErrTooManyLoginAttempts enforces the login attempt cooldown
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrTokenExpired flags session tokens past their own expiry
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed flags undecodable session tokens
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// ErrUnableToFindSession is the error when our request has no credential
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound)

// ErrUnableToDecodeSession unable to decode JWT claims
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth)

// ErrUnableToParseData parse error
var ErrUnableToParseData = goerrors.New("unable to parse data", goerrors.CategoryAuth)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt
var ErrNoEmptyString = goerrors.New("value should not be empty", goerrors.CategoryValidation)

// ErrMailDelivery wraps outbound email failures
var ErrMailDelivery = goerrors.New("failed to deliver notification", goerrors.CategoryOperation).
	WithTextCode(TextCodeDeliveryFailed)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
