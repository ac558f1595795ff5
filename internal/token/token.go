// Package token mints and verifies the HS256 tokens a Centrifugo server
// expects for connections and private channel subscriptions.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL matches the server's token lifetime.
const DefaultTTL = 1800 * time.Second

var ErrEmptySecret = errors.New("token: secret is required")

// Claims are the fields carried by both token kinds. Channel is empty for
// connection tokens.
type Claims struct {
	Channel string `json:"channel,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Connection returns a token authorising userID to open a connection.
func (i *Issuer) Connection(userID int64) (string, error) {
	return i.sign(userID, "")
}

// Channel returns a token authorising userID to subscribe to channel.
func (i *Issuer) Channel(userID int64, channel string) (string, error) {
	if channel == "" {
		return "", errors.New("token: channel is required")
	}
	return i.sign(userID, channel)
}

func (i *Issuer) sign(userID int64, channel string) (string, error) {
	claims := Claims{
		Channel: channel,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(i.now().Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature and expiry and returns the claims.
func (i *Issuer) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}
