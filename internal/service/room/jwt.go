package room

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	ParticipantId string `json:"participant_id"`
	RoomId        string `json:"room_id"`
}

func (s service) generateAccessToken(participantId, roomId string) (string, error) {
	claims := jwt.MapClaims{
		"participant_id": participantId,
		"room_id":        roomId,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(s.secret))
}

func (s service) parseAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrAuthenticationFailed
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrAuthenticationFailed
	}

	participantId, ok := claims["participant_id"].(string)
	if !ok {
		return nil, ErrAuthenticationFailed
	}

	roomId, ok := claims["room_id"].(string)
	if !ok {
		return nil, ErrAuthenticationFailed
	}

	return &Claims{
		ParticipantId: participantId,
		RoomId:        roomId,
	}, nil
}
