package rpc

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"nftescrow/crypto"
)

// AuthConfig configures bearer token verification. Callers authenticate with an
// HS256 JWT whose subject is their bech32 account address.
type AuthConfig struct {
	HMACSecret     string
	Issuer         string
	Audience       string
	AllowAnonymous bool
	ClockSkew      time.Duration
}

type contextKey string

const contextKeyCaller contextKey = "rpc.caller"

var (
	errMissingToken   = errors.New("missing bearer token")
	errSecretMissing  = errors.New("auth secret not configured")
	errInvalidSubject = errors.New("token subject is not an account address")
)

type authenticator struct {
	cfg    AuthConfig
	secret []byte
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 2 * time.Minute
	}
	return &authenticator{cfg: cfg, secret: []byte(strings.TrimSpace(cfg.HMACSecret))}
}

// authenticate resolves the caller identity carried by r. It returns
// errMissingToken when no Authorization header is present.
func (a *authenticator) authenticate(r *http.Request) ([20]byte, error) {
	tokenString := extractBearer(r.Header.Get("Authorization"))
	if tokenString == "" {
		return [20]byte{}, errMissingToken
	}
	claims, err := a.parseToken(tokenString)
	if err != nil {
		return [20]byte{}, err
	}
	subject, err := claims.GetSubject()
	if err != nil {
		return [20]byte{}, err
	}
	caller, err := crypto.ParseAddress(crypto.AccountPrefix, strings.TrimSpace(subject))
	if err != nil {
		return [20]byte{}, errInvalidSubject
	}
	return caller, nil
}

func (a *authenticator) parseToken(tokenString string) (jwt.MapClaims, error) {
	if len(a.secret) == 0 {
		return nil, errSecretMissing
	}
	opts := []jwt.ParserOption{
		jwt.WithLeeway(a.cfg.ClockSkew),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.cfg.Issuer))
	}
	if a.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.cfg.Audience))
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("claims not map")
	}
	return claims, nil
}

// IssueToken signs a caller token for subject. The CLI and tests use it to
// mint credentials against a shared secret.
func IssueToken(secret string, subject [20]byte, issuer, audience string, ttl time.Duration) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errSecretMissing
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   crypto.FormatAccount(subject),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if issuer != "" {
		claims.Issuer = issuer
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func extractBearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func withCaller(ctx context.Context, caller [20]byte) context.Context {
	return context.WithValue(ctx, contextKeyCaller, caller)
}

func callerFrom(ctx context.Context) ([20]byte, bool) {
	caller, ok := ctx.Value(contextKeyCaller).([20]byte)
	return caller, ok
}
