package botapi

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/polybot/polybot/internal/handler"
	"github.com/polybot/polybot/internal/health"
	"github.com/polybot/polybot/internal/hmac"
	"github.com/polybot/polybot/internal/logger"
	"github.com/polybot/polybot/internal/tracing"
)

// WebhookScope is the hmac scope of the webhook path secret
const WebhookScope = "webhook"

// updateMargin is left between the update deadline and the handler timeout for the error reply
const updateMargin = 5 * time.Second

// UpdateHandler handles a Telegram update
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update) error
}

// API is the http api Telegram delivers updates to
type API struct {
	Bot            UpdateHandler
	HealthChecker  *health.Checker
	Log            *logger.Logger
	Tracer         *tracing.Tracer
	HandlerTimeout time.Duration
	HMAC           *hmac.Signer
}

// updateTimeout is how long an update may take so it is answered before http.TimeoutHandler gives up with a 503
func (a *API) updateTimeout() time.Duration {
	if a.HandlerTimeout > 2*updateMargin {
		return a.HandlerTimeout - updateMargin
	}

	return a.HandlerTimeout / 2
}

// WebhookPath returns the path Telegram should post updates to
func WebhookPath(signer *hmac.Signer) string {
	return "/webhook/" + signer.Secret(WebhookScope)
}

// Utility methods for logging
func (a *API) logError(r *http.Request, message string, err error) {
	a.Log.Errorw(message, handler.LogFields(r, "error", err)...)
}

// Router returns a http router
func (a *API) Router() http.Handler {
	router := mux.NewRouter()

	router.NotFoundHandler = handler.Handler(a.notFoundHandler)

	// Healthcheck
	router.Handle("/health", handler.Health(a.HealthChecker)).Methods("GET").Name("health")

	// Telegram updates, the secret is an hmac of the bot token
	router.Handle("/webhook/{secret}", handler.Handler(a.webhookHandler)).Methods("POST").Name("webhook")

	routeMatcher := &handler.MuxRouteMatcher{Router: router}

	// Set up handlers for adding a request id, handling panics, request logging, tracing, metrics and handler execution timeout
	return handler.AddRequestID(
		handler.Recovery(a.Log,
			handler.Logger(a.Log,
				handler.Tracer(a.Tracer,
					handler.Metrics(
						http.TimeoutHandler(router, a.HandlerTimeout, "Something went wrong. Timed out."),
						routeMatcher,
					),
					routeMatcher,
				),
				routeMatcher,
			),
		),
	)
}

func (a *API) notFoundHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	return handler.NotFound()
}
