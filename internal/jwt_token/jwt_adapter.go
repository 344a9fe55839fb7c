package jwttoken

import (
	"sproutmarket/internal/platform/middleware"
)

// JWTServiceAdapter bridges the token service to the middleware's
// TokenValidator interface.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.Claims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		ActorID: claims.ActorID,
		Role:    claims.Role,
		FarmID:  claims.FarmID,
	}, nil
}
