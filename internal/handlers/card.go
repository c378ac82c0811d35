package handlers

import (
	"bytes"
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/grocery-field/card/internal/card"
	"github.com/grocery-field/card/internal/decoder"
	"github.com/grocery-field/card/internal/domain"
	"github.com/grocery-field/card/internal/platform/httpx"
	"github.com/grocery-field/card/internal/platform/requestctx"
	"github.com/grocery-field/card/internal/scan"
	"github.com/grocery-field/card/internal/shortcut"
)

const maxCardRequestBody = 16 * 1024

// CardHandlers routes browser and API events to one card controller.
type CardHandlers struct {
	ctrl     *card.Controller
	renderer *card.Renderer
	relay    *decoder.Relay
	nav      *shortcut.NavigationLauncher
	pagePath string
	clock    func() time.Time
}

// CardOption customises CardHandlers.
type CardOption func(*CardHandlers)

// WithRelay accepts hardware detections on scan:detect.
func WithRelay(relay *decoder.Relay) CardOption {
	return func(h *CardHandlers) { h.relay = relay }
}

// WithNavigation drains queued automation URIs into responses.
func WithNavigation(nav *shortcut.NavigationLauncher) CardOption {
	return func(h *CardHandlers) { h.nav = nav }
}

// WithCardClock overrides the time used to rank inventory.
func WithCardClock(clock func() time.Time) CardOption {
	return func(h *CardHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewCardHandlers constructs the card handler set.
func NewCardHandlers(ctrl *card.Controller, renderer *card.Renderer, opts ...CardOption) *CardHandlers {
	h := &CardHandlers{
		ctrl:     ctrl,
		renderer: renderer,
		pagePath: defaultPagePath,
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the card endpoints beneath /card.
func (h *CardHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.view)
	r.Post("/tabs/{tab}", h.switchTab)
	r.Post("/scan:start", h.startScan)
	r.Post("/scan:cancel", h.cancelScan)
	r.Post("/scan:rescan", h.rescan)
	r.Post("/scan:manual", h.enterManual)
	r.Post("/scan:add", h.commitAdd)
	r.Post("/scan:remove", h.commitRemove)
	r.Post("/scan:detect", h.detect)
	r.Post("/manual:add", h.manualAdd)
	r.Post("/filter/{location}", h.setFilter)
	r.Post("/items/{itemId}:remove", h.removeItem)
	r.Post("/items/{itemId}:edit-expiry", h.editExpiry)
	r.Post("/items/{itemId}:save-expiry", h.saveExpiry)
	r.Post("/expiry:cancel", h.cancelExpiry)
	r.Post("/automations/{kind}:open", h.openAutomation)
}

// SessionContext records the active scan session on the request context so
// request logs carry it.
func (h *CardHandlers) SessionContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := h.ctrl.SessionID(); id != "" {
			r = r.WithContext(requestctx.WithSessionID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Page renders the card as HTML.
func (h *CardHandlers) Page(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("service_unavailable", "card renderer not configured", http.StatusServiceUnavailable))
		return
	}
	if uris := h.takeNavigation(); len(uris) > 0 {
		http.Redirect(w, r, uris[len(uris)-1], http.StatusSeeOther)
		return
	}
	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, h.ctrl.View(h.clock())); err != nil {
		requestctx.Logger(r.Context()).Sugar().Errorw("card render failed", "error", err)
		httpx.WriteError(r.Context(), w, httpx.NewError("render_failed", "failed to render card", http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *CardHandlers) view(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, nil)
}

func (h *CardHandlers) switchTab(w http.ResponseWriter, r *http.Request) {
	tab, ok := card.ParseTab(chi.URLParam(r, "tab"))
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_tab", "unknown tab", http.StatusNotFound))
		return
	}
	h.ctrl.SwitchTab(tab)
	h.respond(w, r, nil)
}

func (h *CardHandlers) startScan(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.ctrl.StartScan(r.Context()))
}

func (h *CardHandlers) cancelScan(w http.ResponseWriter, r *http.Request) {
	h.ctrl.CancelScan()
	h.respond(w, r, nil)
}

func (h *CardHandlers) rescan(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Rescan()
	h.respond(w, r, nil)
}

func (h *CardHandlers) enterManual(w http.ResponseWriter, r *http.Request) {
	h.ctrl.EnterManual()
	h.respond(w, r, nil)
}

func (h *CardHandlers) commitAdd(w http.ResponseWriter, r *http.Request) {
	var form card.ConfirmForm
	if !h.decode(w, r, &form, func() {
		form.Name = r.FormValue("name")
		form.Quantity = formInt(r.FormValue("quantity"))
		form.Unit = r.FormValue("unit")
		form.ExpiryDate = r.FormValue("expiry_date")
		form.Location = r.FormValue("location")
	}) {
		return
	}
	h.respond(w, r, h.ctrl.CommitAdd(r.Context(), form))
}

func (h *CardHandlers) commitRemove(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.ctrl.CommitRemove(r.Context()))
}

type detectRequest struct {
	Detections []struct {
		RawValue string `json:"raw_value"`
		Format   string `json:"format"`
	} `json:"detections"`
}

func (h *CardHandlers) detect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.relay == nil {
		httpx.WriteError(ctx, w, httpx.NewError("hardware_detector_disabled", "hardware detections are not accepted", http.StatusConflict))
		return
	}
	var req detectRequest
	if err := httpx.DecodeJSON(w, r, maxCardRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}
	found := make([]decoder.Detection, 0, len(req.Detections))
	for _, d := range req.Detections {
		found = append(found, decoder.Detection{RawValue: strings.TrimSpace(d.RawValue), Format: decoder.Symbology(strings.ToLower(d.Format))})
	}
	h.relay.Push(found...)
	w.WriteHeader(http.StatusAccepted)
}

func (h *CardHandlers) manualAdd(w http.ResponseWriter, r *http.Request) {
	var form card.ManualForm
	if !h.decode(w, r, &form, func() {
		form.Name = r.FormValue("name")
		form.Quantity = formInt(r.FormValue("quantity"))
		form.Unit = r.FormValue("unit")
		form.Category = r.FormValue("category")
		form.ExpiryDate = r.FormValue("expiry_date")
		form.Barcode = r.FormValue("barcode")
		form.Location = r.FormValue("location")
		form.MinQuantity = formInt(r.FormValue("min_quantity"))
	}) {
		return
	}
	h.respond(w, r, h.ctrl.ManualAdd(r.Context(), form))
}

func (h *CardHandlers) setFilter(w http.ResponseWriter, r *http.Request) {
	filter, ok := domain.ParseLocationFilter(chi.URLParam(r, "location"))
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_location", "unknown location filter", http.StatusNotFound))
		return
	}
	h.ctrl.SetLocationFilter(filter)
	h.respond(w, r, nil)
}

func (h *CardHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.ctrl.RemoveItem(r.Context(), chi.URLParam(r, "itemId")))
}

func (h *CardHandlers) editExpiry(w http.ResponseWriter, r *http.Request) {
	h.ctrl.EditExpiry(chi.URLParam(r, "itemId"))
	h.respond(w, r, nil)
}

func (h *CardHandlers) saveExpiry(w http.ResponseWriter, r *http.Request) {
	var form card.ExpiryForm
	if !h.decode(w, r, &form, func() {
		form.ExpiryDate = r.FormValue("expiry_date")
	}) {
		return
	}
	h.respond(w, r, h.ctrl.SaveExpiry(r.Context(), chi.URLParam(r, "itemId"), form))
}

func (h *CardHandlers) cancelExpiry(w http.ResponseWriter, r *http.Request) {
	h.ctrl.CancelExpiryEdit()
	h.respond(w, r, nil)
}

func (h *CardHandlers) openAutomation(w http.ResponseWriter, r *http.Request) {
	_, err := h.ctrl.OpenAutomation(r.Context(), chi.URLParam(r, "kind"))
	h.respond(w, r, err)
}

// decode fills dst from a JSON body or, for form posts, through fromForm.
func (h *CardHandlers) decode(w http.ResponseWriter, r *http.Request, dst any, fromForm func()) bool {
	ctx := r.Context()
	if isJSONBody(r) {
		if err := httpx.DecodeJSON(w, r, maxCardRequestBody, dst); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
			return false
		}
		return true
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxCardRequestBody)
	if err := r.ParseForm(); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid form payload", http.StatusBadRequest))
		return false
	}
	fromForm()
	return true
}

// respond redirects browser posts back to the page and answers API callers
// with the current view or an error envelope.
func (h *CardHandlers) respond(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if err != nil {
		logActionError(ctx, r, err)
	}
	if r.Method == http.MethodPost && !wantsJSON(r) {
		http.Redirect(w, r, h.pagePath, http.StatusSeeOther)
		return
	}
	if err != nil {
		httpx.WriteError(ctx, w, actionError(err))
		return
	}
	body := struct {
		card.ViewModel
		Navigate []string `json:"navigate,omitempty"`
	}{ViewModel: h.ctrl.View(h.clock()), Navigate: h.takeNavigation()}
	httpx.WriteJSON(w, http.StatusOK, body)
}

func (h *CardHandlers) takeNavigation() []string {
	if h.nav == nil {
		return nil
	}
	return h.nav.Take()
}

func actionError(err error) httpx.Error {
	var fe *card.FormError
	switch {
	case errors.As(err, &fe):
		return httpx.NewError("invalid_form", "request contains invalid fields", http.StatusBadRequest).
			WithDetails(map[string]any{"fields": fe.Fields})
	case errors.Is(err, card.ErrInvalidForm):
		return httpx.NewError("invalid_form", err.Error(), http.StatusBadRequest)
	case errors.Is(err, card.ErrCommitInProgress):
		return httpx.NewError("commit_in_progress", "another change is being saved", http.StatusConflict)
	case errors.Is(err, card.ErrNotConfirming):
		return httpx.NewError("not_confirming", "no scanned code to confirm", http.StatusConflict)
	case errors.Is(err, card.ErrWrongTab):
		return httpx.NewError("wrong_tab", "action not available on this tab", http.StatusConflict)
	case errors.Is(err, scan.ErrSessionBusy):
		return httpx.NewError("session_busy", "a scan is already running", http.StatusConflict)
	case errors.Is(err, card.ErrUnknownAutomation):
		return httpx.NewError("unknown_automation", "unknown automation", http.StatusNotFound)
	case errors.Is(err, shortcut.ErrNoName):
		return httpx.NewError("automation_not_configured", "automation name is not configured", http.StatusUnprocessableEntity)
	default:
		return httpx.NewError("internal_error", "request failed", http.StatusInternalServerError)
	}
}

func logActionError(ctx context.Context, r *http.Request, err error) {
	requestctx.Logger(ctx).Sugar().Infow("card action rejected", "path", r.URL.Path, "error", err)
}

func isJSONBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func wantsJSON(r *http.Request) bool {
	if isJSONBody(r) {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

// formInt parses a numeric field. Garbage becomes -1 so validation rejects it.
func formInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
