package bot

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/xaenox/teams-assistant-bot/internal/auth"
)

// Server wires the bot handlers into an echo instance with auth and
// request logging.
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer builds the HTTP server. With an empty app password the JWT
// middleware is disabled entirely, which allows local emulator testing
// without credentials.
func NewServer(addr, appPassword string, b *Bot, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))
	e.Use(auth.Middleware(appPassword, func(c echo.Context) bool {
		if appPassword == "" {
			return true
		}
		return c.Request().URL.Path == "/health"
	}))

	b.Register(e)

	return &Server{
		echo: e,
		addr: addr,
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency))
			return nil
		},
	})
}
