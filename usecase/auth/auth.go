// Package auth issues the bearer tokens the API middleware accepts.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
)

// DefaultTTL applies when Issue is called with a non-positive ttl.
const DefaultTTL = 24 * time.Hour

var ErrNoSecret = domain.NewError(domain.ErrCodeInvalid, "JWT_SECRET is not set, the API is open")

type UseCase struct {
	secret []byte
	issuer string
	logger *zap.Logger
	now    func() time.Time
}

func New(secret, issuer string, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		secret: []byte(secret),
		issuer: issuer,
		logger: logger,
		now:    time.Now,
	}
}

// Token is a signed HS256 token and its expiry.
type Token struct {
	Value     string
	Subject   string
	ExpiresAt time.Time
}

// Issue signs a token for subject, usually a Lark user id.
func (uc *UseCase) Issue(subject string, ttl time.Duration) (Token, error) {
	if len(uc.secret) == 0 {
		return Token{}, ErrNoSecret
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Token{}, domain.NewError(domain.ErrCodeInvalid, "token subject is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := uc.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		Issuer:    uc.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(uc.secret)
	if err != nil {
		return Token{}, domain.WrapError(domain.ErrCodeInternal, "sign token", err)
	}

	uc.logger.Info("token issued", zap.String("subject", subject), zap.Time("expires_at", claims.ExpiresAt.Time))
	return Token{Value: signed, Subject: subject, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Verify parses a token issued by this use case and returns its subject.
func (uc *UseCase) Verify(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method " + t.Method.Alg())
		}
		return uc.secret, nil
	})
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}
	if uc.issuer != "" && !claims.VerifyIssuer(uc.issuer, true) {
		return "", domain.ErrUnauthorized
	}
	return claims.Subject, nil
}
