package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Middleware returns a JWT auth middleware validating HS256 bearer
// tokens signed with the configured application password. Every auth
// failure is surfaced as 401 so the connector sees a uniform rejection.
func Middleware(appPassword string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(appPassword),
		SigningMethod: "HS256",
		Skipper:       skipper,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication failed")
		},
	})
}

// VerifyAppID checks that the validated token was issued to this bot
// application, i.e. carries the app id in its audience.
func VerifyAppID(c echo.Context, appID string) error {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	audience, err := claims.GetAudience()
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "audience missing")
	}
	for _, aud := range audience {
		if aud == appID {
			return nil
		}
	}
	return echo.NewHTTPError(http.StatusUnauthorized, "token not issued for this application")
}

// GenerateToken creates a signed JWT addressed to the bot application.
// Used by the emulator flow and tests.
func GenerateToken(appID, appPassword string, expiresIn time.Duration) (string, error) {
	if appID == "" {
		return "", fmt.Errorf("app id is required")
	}
	if appPassword == "" {
		return "", fmt.Errorf("app password is required")
	}

	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"aud": appID,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(appPassword))
}
