package botapi

import (
	"context"
	"encoding/json"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/mux"
	"github.com/polybot/polybot/internal/handler"
)

const maxUpdateSize = 1 << 20

func (a *API) webhookHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	secret := mux.Vars(r)["secret"]
	if !a.HMAC.Verify(WebhookScope, secret) {
		return handler.NotFound()
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateSize)).Decode(&update); err != nil {
		return handler.BadRequest("Invalid update")
	}

	// Telegram redelivers updates that were not acknowledged with a 2xx, so a failed or
	// timed out update is only logged and still answered with 200
	ctx, cancel := context.WithTimeout(r.Context(), a.updateTimeout())
	defer cancel()

	if err := a.Bot.HandleUpdate(ctx, update); err != nil {
		a.logError(r, "error handling update", err)
	}

	w.WriteHeader(http.StatusOK)
	return nil
}
