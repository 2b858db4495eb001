package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/polybot/polybot/internal/handler"
	"github.com/polybot/polybot/internal/logger"
	"go.uber.org/zap"
)

func TestRecovery(t *testing.T) {
	log := logger.New(zap.FatalLevel)
	defer log.Sync()

	router := mux.NewRouter()
	router.HandleFunc("/webhook/{secret}", func(w http.ResponseWriter, r *http.Request) {
		panic("update handler panicked")
	}).Methods("POST")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	h := handler.AddRequestID(handler.Recovery(log, router))

	tests := []struct {
		Name           string
		Method         string
		Path           string
		ExpectedStatus int
	}{
		{"panicking webhook", "POST", "/webhook/secret", http.StatusInternalServerError},
		{"healthy route", "GET", "/health", http.StatusNoContent},
	}

	for _, test := range tests {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(test.Method, test.Path, nil))

		if w.Code != test.ExpectedStatus {
			t.Errorf("%s: wrong status code %d", test.Name, w.Code)
		}
	}
}
