package accounts

// TokenValidator validates tokens and extracts claims without tying callers
// to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (AuthClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (AuthClaims, error) {
	if f == nil {
		return nil, ErrUnableToDecodeSession
	}
	return f(tokenString)
}

// MultiTokenValidator runs a chain of validators against a token. A
// malformed verdict (wrong key, undecodable payload) moves on to the next
// validator; any other verdict, expiry included, is definitive and stops
// the chain.
type MultiTokenValidator struct {
	chain []TokenValidator
}

// NewMultiTokenValidator builds the chain, skipping nil entries.
func NewMultiTokenValidator(validators ...TokenValidator) *MultiTokenValidator {
	chain := make([]TokenValidator, 0, len(validators))
	for _, v := range validators {
		if v != nil {
			chain = append(chain, v)
		}
	}
	return &MultiTokenValidator{chain: chain}
}

// Validate satisfies the TokenValidator interface. When every link rejects
// the token as malformed the last rejection is returned.
func (m *MultiTokenValidator) Validate(tokenString string) (AuthClaims, error) {
	var lastErr error
	for _, v := range m.chain {
		claims, err := v.Validate(tokenString)
		if err == nil {
			return claims, nil
		}
		if !IsMalformedError(err) {
			return nil, err
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrTokenMalformed
}

// NewKeyRotationValidator accepts sessions signed with the current key or
// any previous key still in its grace window. Issuance always uses the
// current key; the previous keys only keep old sessions alive until they
// expire on their own.
func NewKeyRotationValidator(cfg Config, previousKeys ...string) TokenValidator {
	validators := []TokenValidator{
		NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer(), cfg.GetAudience(), nil),
	}

	for _, key := range previousKeys {
		if key == "" {
			continue
		}
		validators = append(validators, NewTokenService([]byte(key), cfg.GetTokenExpiration(), cfg.GetIssuer(), cfg.GetAudience(), nil))
	}

	return NewMultiTokenValidator(validators...)
}
