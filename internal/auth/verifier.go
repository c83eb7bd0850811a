package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lucashu/marketchat/internal/domain"
)

var (
	// ErrUnauthenticated: no credential was presented at all.
	ErrUnauthenticated = errors.New("missing credential")
	// ErrInvalidCredential: the credential failed signature or expiry checks.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrUnknownSubject: the credential is valid but no matching user record
	// exists (e.g. a deleted account).
	ErrUnknownSubject = errors.New("unknown subject")
)

// Identity is the resolved actor behind a credential.
type Identity struct {
	ID        string
	Username  string
	Email     string
	AvatarURL string
}

// Claims are the token claims this backend understands. Tokens are issued by
// the account service; user_id mirrors the subject for older issuers.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// UserResolver looks up the user record behind a token subject.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

// Verifier validates bearer credentials and resolves them to identities.
// It has no side effects and is shared by the REST middleware and the
// live-channel handshake.
type Verifier struct {
	secret []byte
	issuer string
	users  UserResolver
}

func NewVerifier(secret, issuer string, users UserResolver) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		users:  users,
	}
}

// Verify parses the credential and resolves the subject to a user record.
func (v *Verifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(credential, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidCredential
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	if subject == "" {
		return nil, ErrInvalidCredential
	}

	user, err := v.users.GetByID(ctx, subject)
	if err != nil {
		return nil, ErrUnknownSubject
	}

	return &Identity{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}, nil
}
