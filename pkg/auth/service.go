package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openbookcatalog/catalog/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// TokenExpiry is how long tokens minted by GenerateToken are valid.
const TokenExpiry = 24 * time.Hour

// JWTClaims are the claims carried by tokens issued by the auth bridge. The
// subject is the user id.
type JWTClaims struct {
	Username string   `json:"username"`
	Email    *string  `json:"email,omitempty"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Service verifies bridge tokens and keeps the local users table linked to
// the identities they carry.
type Service struct {
	db        *bun.DB
	jwtSecret []byte
}

func NewService(db *bun.DB, jwtSecret string) *Service {
	return &Service{
		db:        db,
		jwtSecret: []byte(jwtSecret),
	}
}

// GenerateToken signs a token for the user. The bridge does this in
// production; the catalog only needs it for tooling and tests.
func (s *Service) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		Username: user.Username,
		Email:    user.Email,
		Roles:    user.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}

	return signedToken, nil
}

// ValidateToken validates a token and returns its claims.
func (s *Service) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}

	return claims, nil
}

// LinkUser creates or refreshes the local user for the token's identity.
func (s *Service) LinkUser(ctx context.Context, claims *JWTClaims) (*models.User, error) {
	now := time.Now()
	user := &models.User{
		ID:        claims.Subject,
		CreatedAt: now,
		UpdatedAt: now,
		Username:  claims.Username,
		Email:     claims.Email,
	}
	if user.Username == "" {
		user.Username = claims.Subject
	}

	_, err := s.db.NewInsert().
		Model(user).
		On("CONFLICT (id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("email = EXCLUDED.email").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	user.Roles = claims.Roles
	return user, nil
}
