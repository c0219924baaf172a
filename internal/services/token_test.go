package services

import (
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/golang-jwt/jwt/v4"
)

func TestTokenRoundTrip(t *testing.T) {
	c := qt.New(t)

	s := NewTokenService("secret", time.Hour)
	token, err := s.Issue("65f1c0ffee0000000000abcd")
	c.Assert(err, qt.IsNil)

	id, err := s.Verify(token)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, "65f1c0ffee0000000000abcd")
}

func TestTokenCarriesOnlyTheUserID(t *testing.T) {
	c := qt.New(t)

	token, err := NewTokenService("secret", time.Hour).Issue("abc")
	c.Assert(err, qt.IsNil)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	c.Assert(err, qt.IsNil)
	c.Assert(claims["id"], qt.Equals, "abc")
	_, hasRole := claims["role"]
	c.Assert(hasRole, qt.IsFalse)
	c.Assert(claims["exp"], qt.Not(qt.IsNil))
}

func TestTokenVerifyFailures(t *testing.T) {
	s := NewTokenService("secret", time.Hour)
	good, err := s.Issue("abc")
	if err != nil {
		t.Fatal(err)
	}

	expired, err := NewTokenService("secret", -time.Minute).Issue("abc")
	if err != nil {
		t.Fatal(err)
	}

	otherSecret, err := NewTokenService("other", time.Hour).Issue("abc")
	if err != nil {
		t.Fatal(err)
	}

	noID, err := NewTokenService("secret", time.Hour).Issue("")
	if err != nil {
		t.Fatal(err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  "abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "expired", token: expired, want: ErrTokenExpired},
		{name: "wrong secret", token: otherSecret, want: ErrInvalidToken},
		{name: "garbage", token: "not-a-token", want: ErrInvalidToken},
		{name: "empty", token: "", want: ErrInvalidToken},
		{name: "tampered payload", token: tampered, want: ErrInvalidToken},
		{name: "alg none", token: none, want: ErrInvalidToken},
		{name: "missing id", token: noID, want: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			_, err := s.Verify(tt.token)
			c.Assert(err, qt.ErrorIs, tt.want)
			c.Assert(IsTokenError(err), qt.IsTrue)
		})
	}
}

func TestTokenExpiryUsesClock(t *testing.T) {
	c := qt.New(t)

	s := NewTokenService("secret", time.Hour)
	token, err := s.Issue("abc")
	c.Assert(err, qt.IsNil)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Verify(token)
	c.Assert(err, qt.ErrorIs, ErrTokenExpired)
}
