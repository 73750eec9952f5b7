// Package auth issues and verifies the signed session tokens and hashes staff passwords.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"go_trial/ordertaking/models"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// PasswordCost is the bcrypt work factor. Tests lower it.
var PasswordCost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	Type     string      `json:"type"`
	jwt.RegisteredClaims
}

// Principal is the signed-in user attached to a request.
type Principal struct {
	Username  string
	Role      models.Role
	TokenID   string
	ExpiresAt time.Time
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

type contextKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok
}

type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) IssueAccess(user *models.User) (string, *Claims, error) {
	return i.issue(user.Username, user.Role, TypeAccess, i.accessTTL)
}

func (i *Issuer) IssueRefresh(user *models.User) (string, *Claims, error) {
	return i.issue(user.Username, user.Role, TypeRefresh, i.refreshTTL)
}

func (i *Issuer) issue(username string, role models.Role, typ string, ttl time.Duration) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		Username: username,
		Role:     role,
		Type:     typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature and expiry and returns the claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Username == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) ParseAccess(tokenString string) (*Claims, error) {
	return i.parseType(tokenString, TypeAccess)
}

func (i *Issuer) ParseRefresh(tokenString string) (*Claims, error) {
	return i.parseType(tokenString, TypeRefresh)
}

func (i *Issuer) parseType(tokenString, typ string) (*Claims, error) {
	claims, err := i.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != typ {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Principal converts verified claims into the request principal.
func (c *Claims) Principal() Principal {
	p := Principal{Username: c.Username, Role: c.Role, TokenID: c.ID}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
