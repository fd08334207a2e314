package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	identity "github.com/okian/hopguard/internal/adapters/identity"
	. "github.com/smartystreets/goconvey/convey"
)

func signed(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(secret)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestJWTVerifier(t *testing.T) {
	ctx := context.Background()
	secret := []byte("test-signing-secret")

	Convey("Given a JWT verifier", t, func() {
		v := identity.NewJWTVerifier(secret)

		Convey("When presented a valid HS256 token", func() {
			bearer := signed(t, secret, jwt.MapClaims{
				"sub": "player-1",
				"exp": time.Now().Add(time.Hour).Unix(),
			})

			userID, err := v.Verify(ctx, bearer)

			Convey("Then it should resolve the subject", func() {
				So(err, ShouldBeNil)
				So(userID, ShouldEqual, "player-1")
			})
		})

		Convey("When the token is signed with a different secret", func() {
			bearer := signed(t, []byte("wrong-secret"), jwt.MapClaims{"sub": "player-1"})

			_, err := v.Verify(ctx, bearer)

			So(err, ShouldEqual, identity.ErrUnauthorized)
		})

		Convey("When the token has expired", func() {
			bearer := signed(t, secret, jwt.MapClaims{
				"sub": "player-1",
				"exp": time.Now().Add(-time.Hour).Unix(),
			})

			_, err := v.Verify(ctx, bearer)

			So(err, ShouldEqual, identity.ErrUnauthorized)
		})

		Convey("When the token has no subject", func() {
			bearer := signed(t, secret, jwt.MapClaims{
				"exp": time.Now().Add(time.Hour).Unix(),
			})

			_, err := v.Verify(ctx, bearer)

			So(err, ShouldEqual, identity.ErrUnauthorized)
		})

		Convey("When the credential is not a token at all", func() {
			_, err := v.Verify(ctx, "garbage")

			So(err, ShouldEqual, identity.ErrUnauthorized)
		})
	})
}
