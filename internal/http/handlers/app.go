package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"aimint/internal/chain"
	"aimint/internal/domain"
	"aimint/internal/infra"
	"aimint/internal/pipeline"
	"aimint/internal/session"
)

// Sessions is the submission state the handlers read and drive.
type Sessions interface {
	Create() session.Session
	Get(id string) (session.Session, error)
	Submit(id string, form pipeline.Form) (session.Session, error)
}

// NetworkStatus reports the connected chain and signer.
type NetworkStatus interface {
	Status() chain.Status
}

// App holds what the HTTP handlers need: the session registry, the chain
// status and a fallback logger.
type App struct {
	Sessions Sessions
	Chain    NetworkStatus
	Logger   *infra.Logger
}

// NewApp builds an App. A nil logger discards output.
func NewApp(sessions Sessions, status NetworkStatus, logger *infra.Logger) *App {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &App{Sessions: sessions, Chain: status, Logger: logger}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// log returns the request-scoped logger attached by middleware, falling back
// to the app logger.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return a.Logger
}

// fail maps domain errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, domain.ErrInvalidPrompt):
		a.error(w, http.StatusUnprocessableEntity, "invalid_prompt", domain.ErrInvalidPrompt.Error())
	case errors.Is(err, domain.ErrBusy):
		a.error(w, http.StatusConflict, "busy", domain.ErrBusy.Error())
	case errors.Is(err, domain.ErrUnsupportedNetwork):
		a.error(w, http.StatusServiceUnavailable, "unsupported_network", err.Error())
	default:
		a.log(r).Error().Err(err).Msg("http: unexpected error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
