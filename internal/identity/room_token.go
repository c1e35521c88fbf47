package identity

import (
	"fmt"
	"time"

	"canvas-studio/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// RoomClaims admit one user into one room
type RoomClaims struct {
	Room string          `json:"room"`
	User models.UserMeta `json:"user"`
	jwt.RegisteredClaims
}

// RoomTokenIssuer signs and checks room tokens
type RoomTokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewRoomTokenIssuer(secret string, ttl time.Duration) *RoomTokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RoomTokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token and its expiry
func (i *RoomTokenIssuer) Issue(room string, user models.UserMeta) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)

	claims := RoomClaims{
		Room: room,
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign room token: %w", err)
	}
	return token, expires, nil
}

// Parse validates a token for the given room
func (i *RoomTokenIssuer) Parse(token, room string) (*RoomClaims, error) {
	claims := &RoomClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid room token: %w", err)
	}

	if claims.Room != room {
		return nil, fmt.Errorf("room token is for %q, not %q", claims.Room, room)
	}
	return claims, nil
}
