// Package jwt emite y valida los tokens Bearer de la API de comprobantes.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret    = errors.New("jwt: secret vacío")
	ErrMissingIssuer  = errors.New("jwt: token sin RUC emisor")
	ErrInvalidClaims  = errors.New("jwt: claims inválidos")
	signingMethod     = jwt.SigningMethodHS256
	allowedAlgorithms = []string{signingMethod.Alg()}
)

// Claims claims estándar más el emisor electrónico (RUC) que opera el token.
// Las rutas de comprobantes sólo aceptan documentos cuyo RUC emisor coincide con IssuerRUC.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	IssuerRUC string `json:"issuer_ruc"`
	Role      string `json:"role"` // "admin" | "emisor" | "consulta"
}

// Generate firma un token HS256 para el usuario y su RUC emisor.
// expMinutes negativo produce un token ya vencido (tests).
func Generate(secret, userID, issuerRUC, role, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		UserID:    userID,
		IssuerRUC: issuerRUC,
		Role:      role,
	}
	return jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(secret))
}

// Parse valida firma, algoritmo y vencimiento. Un token sin RUC emisor no sirve para esta API.
func Parse(secret, tokenString string) (*Claims, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	if !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.IssuerRUC == "" {
		return nil, ErrMissingIssuer
	}
	return claims, nil
}
