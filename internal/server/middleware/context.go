package middleware

import (
	"github.com/skein-labs/skein/backend/internal/session"
	"github.com/skein-labs/skein/backend/internal/store"
	"github.com/skein-labs/skein/backend/pkg/provider"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

// AppUser is the authenticated caller.
type AppUser struct {
	UserID int64
	Role   string
}

// App bundles the shared server dependencies handed to every request.
type App struct {
	Store        *store.Store
	Queue        *amqp091.Channel
	Key          *keyfunc.Keyfunc
	Sessions     *session.Manager
	Gateway      provider.Gateway
	Embedder     provider.Embedder
	MasterAPIKey string
}

// AppContext wraps the echo context with app state.
type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

// AppContextMiddleware attaches the shared app state to each request.
func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
