package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"aimint/internal/pipeline"
	"aimint/internal/session"
)

const maxSubmitBody = 16 << 10

type sessionResponse struct {
	ID          string               `json:"id"`
	Stage       pipeline.Stage       `json:"stage"`
	Busy        bool                 `json:"busy"`
	Status      string               `json:"status"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	ImageURL    string               `json:"image_url,omitempty"`
	CID         string               `json:"cid,omitempty"`
	MetadataURL string               `json:"metadata_url,omitempty"`
	TxHash      string               `json:"tx_hash,omitempty"`
	TokenID     string               `json:"token_id,omitempty"`
	Error       *pipeline.StageError `json:"error,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func newSessionResponse(s session.Session) sessionResponse {
	st := s.State
	resp := sessionResponse{
		ID:          s.ID,
		Stage:       st.Stage,
		Busy:        st.Busy,
		Status:      st.Status,
		Name:        st.Form.Name,
		Description: st.Form.Description,
		CID:         st.CID,
		MetadataURL: st.MetadataURL,
		TxHash:      st.TxHash,
		TokenID:     st.TokenID,
		Error:       st.Err,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if st.Image != nil && len(st.Image.Data) > 0 {
		resp.ImageURL = st.Image.DataURL()
	}
	return resp
}

// CreateSession registers a fresh idle session.
func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := a.Sessions.Create()
	a.log(r).Debug().Str("session_id", s.ID).Msg("http: session created")
	a.json(w, http.StatusCreated, newSessionResponse(s))
}

// GetSession returns the session state, including the generated image as a
// data URL once there is one.
func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, newSessionResponse(s))
}

// SessionImage streams the generated image bytes as-is.
func (a *App) SessionImage(w http.ResponseWriter, r *http.Request) {
	s, err := a.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	img := s.State.Image
	if img == nil || len(img.Data) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no image generated yet")
		return
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// Submit starts a generate, upload and mint cycle for the session.
func (a *App) Submit(w http.ResponseWriter, r *http.Request) {
	var form pipeline.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmitBody)).Decode(&form); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	s, err := a.Sessions.Submit(chi.URLParam(r, "id"), form)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log(r).Info().Str("session_id", s.ID).Msg("http: submit accepted")
	a.json(w, http.StatusAccepted, newSessionResponse(s))
}
