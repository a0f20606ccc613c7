package utils

import (
	"errors"
	"strconv"
	"time"

	"payroute/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "payroute"

var (
	ErrMissingSecret = errors.New("JWT secret not configured")
	ErrInvalidToken  = errors.New("invalid token claims")
)

// IssueOperatorToken signs an access token for an operator or service.
// Permissions default to the role's set when empty.
func IssueOperatorToken(secret string, operatorID uint, role string, permissions []string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if len(permissions) == 0 {
		permissions = models.GetDefaultPermissions(role)
	}

	now := time.Now()
	claims := models.OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(uint64(operatorID), 10),
		},
		OperatorID:  operatorID,
		Role:        role,
		Permissions: permissions,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseOperatorToken validates signature, expiry and issuer.
func ParseOperatorToken(secret, tokenStr string) (*models.OperatorClaims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}

	token, err := jwt.ParseWithClaims(tokenStr, &models.OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*models.OperatorClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
