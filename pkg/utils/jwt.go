package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orderdesk-backend/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Operator and customer tokens are issued by the identity service and verified
// here with the shared HMAC secret. cmd/token mints the same shape locally.
var (
	secretKey []byte
	issuer    string
)

const clockSkew = 30 * time.Second

var (
	ErrNoToken     = errors.New("no token provided")
	ErrUnknownRole = errors.New("unknown role")
)

func SetSecret(key string) {
	secretKey = []byte(key)
}

// SetIssuer makes the iss claim mandatory. An empty issuer disables the check.
func SetIssuer(iss string) {
	issuer = iss
}

// TokenClaims is the token body: the registered claims plus who is acting.
type TokenClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for userID acting as role.
func IssueToken(userID, email, role string, ttl time.Duration) (string, error) {
	if len(secretKey) == 0 {
		return "", errors.New("jwt secret not set")
	}
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("token subject is required")
	}
	if !domain.KnownRole(role) {
		return "", fmt.Errorf("%w %q", ErrUnknownRole, role)
	}

	now := time.Now()
	claims := TokenClaims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secretKey)
}

// ParseToken verifies signature, expiry, issuer and role.
func ParseToken(tokenString string) (*TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !domain.KnownRole(claims.Role) {
		return nil, fmt.Errorf("%w %q", ErrUnknownRole, claims.Role)
	}
	return claims, nil
}

func GenerateUUID() string {
	return uuid.NewString()
}

type Claims struct {
	UserID string
	Email  string
	Role   string
}

// ExtractClaims reads the bearer token, falling back to the accessToken cookie.
func ExtractClaims(r *http.Request) (*Claims, error) {
	tokenString := ""
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		tokenString = strings.TrimSpace(auth[len("Bearer "):])
	} else if cookie, err := r.Cookie("accessToken"); err == nil {
		tokenString = cookie.Value
	}
	if tokenString == "" {
		return nil, ErrNoToken
	}

	tc, err := ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &Claims{
		UserID: tc.Subject,
		Email:  tc.Email,
		Role:   tc.Role,
	}, nil
}
