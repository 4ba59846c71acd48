package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"staybook/internal/app"
	"staybook/internal/domain"
)

type Handlers struct {
	Catalog  *app.CatalogService
	Avail    *app.AvailabilityService
	Quotes   *app.QuoteService
	Payments *app.PaymentService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/rooms/{id}", h.getRoom)
	s.mux.Get("/v1/bookables/{type}/{id}/unavailable-dates", h.unavailableDates)
	s.mux.Post("/v1/bookings/calculate-cost", h.calculateCost)
	s.mux.Post("/v1/bookings/payment-intent", h.paymentIntent)
	s.mux.Post("/v1/bookings/confirm-payment", h.confirmPayment)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeCoreError maps the domain error taxonomy onto HTTP. Gateway causes
// and unexpected failures are logged server-side only; callers get the
// generic message.
func writeCoreError(w http.ResponseWriter, err error) {
	var ce *domain.ConflictError
	var ge *domain.GatewayError
	switch {
	case errors.As(err, &ce):
		writeProblem(w, http.StatusConflict, "Unavailable", ce.Error())
	case errors.Is(err, domain.ErrInvalidState):
		writeProblem(w, http.StatusConflict, "Invalid State", "payment for this invoice was already processed")
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &ge):
		log.Error().Err(ge.Unwrap()).Msg("payment pipeline failure")
		writeProblem(w, http.StatusBadGateway, "Payment Failed", ge.Error())
	default:
		log.Error().Err(err).Msg("unexpected failure")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "unexpected failure")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCachedJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

// ---- requests / responses ----

const dateLayout = "2006-01-02"

type bookingRequest struct {
	RoomID     int64   `json:"roomId"`
	ServiceIDs []int64 `json:"serviceIds"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
}

type paymentIntentRequest struct {
	bookingRequest
	PaymentMethodToken string `json:"paymentMethodToken"`
}

type confirmRequest struct {
	PaymentReference string `json:"paymentReference"`
	Outcome          string `json:"outcome"`
}

type costResponse struct {
	TotalCost    string `json:"totalCost"`
	RoomCost     string `json:"roomCost"`
	ServicesCost string `json:"servicesCost"`
	CountMonth   int    `json:"countMonth"`
	CountDay     int    `json:"countDay"`
}

type paymentIntentResponse struct {
	PaymentReference string `json:"paymentReference"`
	ClientSecret     string `json:"clientSecret"`
	TotalCost        string `json:"totalCost"`
}

type confirmResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type serviceJSON struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	MonthlyPrice string `json:"monthlyPrice"`
	DailyPrice   string `json:"dailyPrice"`
	IsFree       bool   `json:"isFree"`
	IsLimited    bool   `json:"isLimited"`
	TotalUnits   int    `json:"totalUnits,omitempty"`
}

type roomJSON struct {
	ID           int64         `json:"id"`
	RoomTypeID   int64         `json:"roomTypeId"`
	Number       string        `json:"number"`
	MonthlyPrice string        `json:"monthlyPrice"`
	DailyPrice   string        `json:"dailyPrice"`
	Services     []serviceJSON `json:"services"`
}

type rangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// parseRange validates the date pair: well-formed ISO dates, start strictly
// in the future, end strictly after start.
func (b bookingRequest) parseRange() (domain.Range, string) {
	start, err := time.ParseInLocation(dateLayout, b.StartDate, time.UTC)
	if err != nil {
		return domain.Range{}, "startDate must be YYYY-MM-DD"
	}
	end, err := time.ParseInLocation(dateLayout, b.EndDate, time.UTC)
	if err != nil {
		return domain.Range{}, "endDate must be YYYY-MM-DD"
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	if !start.After(today) {
		return domain.Range{}, "startDate must be in the future"
	}
	if !end.After(start) {
		return domain.Range{}, "endDate must be after startDate"
	}
	return domain.Range{Start: start, End: end}, ""
}

func userIDFrom(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
	return id, err == nil && id > 0
}

// ---- handlers ----

func (h *Handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	rv, err := h.Catalog.RoomDetail(r.Context(), id)
	if err != nil {
		writeCoreError(w, err)
		return
	}

	resp := roomJSON{
		ID:           rv.Room.ID,
		RoomTypeID:   rv.Room.RoomTypeID,
		Number:       rv.Room.Number,
		MonthlyPrice: rv.Room.MonthlyPrice.StringFixed(2),
		DailyPrice:   rv.Room.DailyPrice.StringFixed(2),
		Services:     make([]serviceJSON, 0, len(rv.Services)),
	}
	for _, svc := range rv.Services {
		resp.Services = append(resp.Services, serviceJSON{
			ID:           svc.ID,
			Name:         svc.Name,
			MonthlyPrice: svc.MonthlyPrice.StringFixed(2),
			DailyPrice:   svc.DailyPrice.StringFixed(2),
			IsFree:       svc.IsFree,
			IsLimited:    svc.IsLimited,
			TotalUnits:   svc.TotalUnits,
		})
	}
	writeCachedJSON(w, r, resp)
}

func (h *Handlers) unavailableDates(w http.ResponseWriter, r *http.Request) {
	typ, err := domain.ParseBookableType(chi.URLParam(r, "type"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Type", "type must be room or service")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}

	ranges, err := h.Avail.UnavailableDates(r.Context(), domain.BookableRef{Type: typ, ID: id})
	if err != nil {
		writeCoreError(w, err)
		return
	}
	out := make([]rangeJSON, 0, len(ranges))
	for _, rg := range ranges {
		out = append(out, rangeJSON{Start: rg.Start.Format(dateLayout), End: rg.End.Format(dateLayout)})
	}
	writeCachedJSON(w, r, out)
}

func (h *Handlers) calculateCost(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	rng, msg := req.parseRange()
	if msg != "" {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Dates", msg)
		return
	}

	q, err := h.Quotes.Quote(r.Context(), req.RoomID, req.ServiceIDs, rng)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, costResponse{
		TotalCost:    q.TotalCost.StringFixed(2),
		RoomCost:     q.RoomCost.StringFixed(2),
		ServicesCost: q.ServicesCost.StringFixed(2),
		CountMonth:   q.Span.Months,
		CountDay:     q.Span.Days,
	})
}

func (h *Handlers) paymentIntent(w http.ResponseWriter, r *http.Request) {
	var req paymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	rng, msg := req.parseRange()
	if msg != "" {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Dates", msg)
		return
	}
	if req.PaymentMethodToken == "" {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Body", "paymentMethodToken is required")
		return
	}
	userID, ok := userIDFrom(r)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Missing User", "X-User-ID header is required")
		return
	}

	intent, err := h.Payments.InitiatePayment(r.Context(), userID, req.RoomID, req.ServiceIDs, rng, req.PaymentMethodToken)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentIntentResponse{
		PaymentReference: intent.Reference,
		ClientSecret:     intent.ClientSecret,
		TotalCost:        intent.TotalCost.StringFixed(2),
	})
}

func (h *Handlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if req.PaymentReference == "" {
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Body", "paymentReference is required")
		return
	}
	var outcome app.Outcome
	switch req.Outcome {
	case string(app.OutcomeSucceeded):
		outcome = app.OutcomeSucceeded
	case string(app.OutcomeFailed):
		outcome = app.OutcomeFailed
	default:
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Body", "outcome must be succeeded or failed")
		return
	}

	res, err := h.Payments.ConfirmPayment(r.Context(), req.PaymentReference, outcome)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, confirmResponse{Status: string(res.Status), Message: res.Message})
}
