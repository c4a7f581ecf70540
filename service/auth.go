package service

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/zlnvch/sketchroom/models"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Tokens are issued by the identity provider; this side only checks the
// HS256 signature and reads the identity claims.
func (s *Service) VerifyJWT(tokenString string) (models.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return s.JWTSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.User{}, err
	}

	if !token.Valid {
		return models.User{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.User{}, errors.New("invalid token claims")
	}

	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return models.User{}, errors.New("missing id claim")
	}

	username, ok := claims["username"].(string)
	if !ok {
		return models.User{}, errors.New("missing username claim")
	}

	return models.User{Id: id, Username: username}, nil
}

func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.User, error) {
	if len(token) == 0 {
		return models.User{}, ErrUnauthenticated
	}

	user, err := s.VerifyJWT(token)
	if err != nil {
		s.Logger.Debug().Err(err).Msg("token rejected")
		return models.User{}, ErrUnauthenticated
	}
	return user, nil
}
