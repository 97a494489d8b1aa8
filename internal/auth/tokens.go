package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	errMissingToken = errors.New("missing bearer token")
	errBadToken     = errors.New("invalid token")
)

// Claims are the token claims. The user id travels as "user_id".
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func (s *Service) issueToken(userID string) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Service) parseToken(tokenStr string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	var claims Claims
	token, err := parser.ParseWithClaims(tokenStr, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.UserID == "" {
		return "", errBadToken
	}
	return claims.UserID, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", errMissingToken
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", errBadToken
	}
	return parts[1], nil
}
