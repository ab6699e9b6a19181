package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/thisis/placesguard/internal/errors"
	"github.com/thisis/placesguard/internal/ops"
)

// Handlers contains the HTTP route handlers.
type Handlers struct {
	svc    *ops.Service
	logger *zap.Logger
}

// VisualCard is the JSON shape of a place card sent by the UI.
type VisualCard struct {
	Category     string   `json:"category"`
	UserPhotos   []string `json:"user_photos,omitempty"`
	PhotoName    string   `json:"photo_name,omitempty"`
	Attributions []string `json:"attributions,omitempty"`
}

func (c VisualCard) input() ops.VisualResolveInput {
	return ops.VisualResolveInput{
		Category:     c.Category,
		UserPhotos:   c.UserPhotos,
		PhotoName:    c.PhotoName,
		Attributions: c.Attributions,
	}
}

// HandleBudget handles GET /v1/budget: today's usage, optionally for one kind.
func (h *Handlers) HandleBudget(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.BudgetStatus(r.Context(), ops.BudgetStatusInput{Kind: r.URL.Query().Get("kind")})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleUsage handles GET /v1/usage: ledger rows for a day.
func (h *Handlers) HandleUsage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.svc.UsageEvents(r.Context(), ops.UsageEventsInput{
		Kind:  q.Get("kind"),
		Day:   q.Get("day"),
		Limit: parseIntParam(r, "limit", ops.DefaultEventsLimit),
	})
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleFlags handles GET /v1/flags: the kill switch document.
func (h *Handlers) HandleFlags(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.KillSwitchStatus(r.Context())
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleVisualResolve handles POST /v1/visual/resolve. It returns the
// initial tier only; remote upgrades are dwell-gated and run over
// /v1/visual/ws.
func (h *Handlers) HandleVisualResolve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		VisualCard
		Upgrade bool `json:"upgrade"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	if body.Upgrade {
		renderError(w, errors.NewInvalidRequest("remote upgrades require dwell: mount the card on /v1/visual/ws"))
		return
	}
	renderJSON(w, http.StatusOK, h.svc.VisualResolve(r.Context(), body.input()))
}

// HandleReason handles POST /v1/reason.
func (h *Handlers) HandleReason(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlaceTypes []string `json:"place_types"`
		UserTags   []string `json:"user_tags"`
		FriendTags []string `json:"friend_tags"`
		Nearby     bool     `json:"nearby"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, ops.Reason(ops.ReasonInput{
		PlaceTypes: body.PlaceTypes,
		UserTags:   body.UserTags,
		FriendTags: body.FriendTags,
		Nearby:     body.Nearby,
	}))
}

// HandleCell handles GET /v1/cell: the cache cell of a viewport.
func (h *Handlers) HandleCell(w http.ResponseWriter, r *http.Request) {
	b, err := parseBounds(r)
	if err != nil {
		renderError(w, err)
		return
	}
	result, err := ops.Cell(b)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleNearby handles GET /v1/nearby: a cached, gated nearby search.
// Refusals are reported in the verdict field with status 200.
func (h *Handlers) HandleNearby(w http.ResponseWriter, r *http.Request) {
	b, err := parseBounds(r)
	if err != nil {
		renderError(w, err)
		return
	}
	result, err := h.svc.NearbySearch(r.Context(), b)
	if err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleSessionBegin handles POST /v1/autocomplete/session.
func (h *Handlers) HandleSessionBegin(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.svc.BeginSession())
}

// HandlePredict handles POST /v1/autocomplete/predict. Predictions are
// empty rather than an error when no paid call was made.
func (h *Handlers) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		renderError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, h.svc.Predict(r.Context(), ops.PredictInput{Query: body.Query}))
}

// HandleSessionEnd handles POST /v1/autocomplete/end.
func (h *Handlers) HandleSessionEnd(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.svc.EndSession())
}
