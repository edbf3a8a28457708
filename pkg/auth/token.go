package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/clearledger/subpay/pkg/config"
	"github.com/clearledger/subpay/pkg/types"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// CallerClaims binds an account address to a signed access token. The engine
// itself never sees tokens; transport identity stops at the API layer.
type CallerClaims struct {
	Address types.Address `json:"address"`
	jwt.RegisteredClaims
}

// MintCallerToken issues a signed JWT for the given account address.
func MintCallerToken(cfg config.JWTConfig, now time.Time, address types.Address) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if !address.Valid() {
		return "", fmt.Errorf("invalid caller address %q", address)
	}

	claims := CallerClaims{
		Address: address,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwtSigningMethod, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseCallerToken validates the JWT string and returns typed claims.
func ParseCallerToken(cfg config.JWTConfig, tokenString string) (*CallerClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	claims := &CallerClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt: %w", err)
	}
	if !claims.Address.Valid() {
		return nil, fmt.Errorf("token missing caller address")
	}
	return claims, nil
}
