package ticket_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"ms-busticketing/internal/auth"
	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
	"ms-busticketing/internal/utils"
)

type TicketService interface {
	SearchTrips(ctx context.Context, origin, destination, date string) ([]models.TripSummary, error)
	Routes(ctx context.Context) ([]models.Route, error)
	SellSeats(ctx context.Context, req models.SaleRequest, sellerID string) (*models.SaleResponse, error)
	TripSeatMap(ctx context.Context, tripID string) (*models.SeatMap, error)
	TripManifest(ctx context.Context, tripID string) ([]models.Ticket, error)
	GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error)
	CancelTicket(ctx context.Context, ticketID, reason string) (*models.Ticket, error)
	MarkNoShow(ctx context.Context, ticketID string) (*models.Ticket, error)
	BoardingPass(ctx context.Context, ticketID string) ([]byte, error)
	VerifyBoardingPass(ctx context.Context, token string) (*models.Ticket, error)
}

type PassengerLookup interface {
	Lookup(ctx context.Context, dni string) (*models.Passenger, error)
}

type Handler struct {
	TicketService TicketService
	Passengers    PassengerLookup
	Logger        *logger.Logger
	Validate      *validator.Validate
}

func NewHandler(svc TicketService, passengers PassengerLookup, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: svc,
		Passengers:    passengers,
		Logger:        log,
		Validate:      validator.New(),
	}
}

// RegisterRoutes mounts the public trip search and availability queries and the
// session-protected ticket routes. authn is the session middleware.
func (h *Handler) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Get("/routes", h.ListRoutes)
	r.Get("/trips", h.SearchTrips)
	r.Get("/trips/{tripId}/seats", h.GetTripSeats)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.With(auth.RequireRole(models.RoleAdmin)).Get("/trips/{tripId}/tickets", h.GetTripManifest)
		r.Get("/passengers/{dni}", h.GetPassenger)

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", h.SellTickets)
			r.Get("/{ticketId}", h.GetTicket)
			r.Get("/{ticketId}/boarding-pass", h.GetBoardingPass)
			r.Post("/{ticketId}/cancel", h.CancelTicket)
			r.With(auth.RequireRole(models.RoleAdmin)).Post("/{ticketId}/no-show", h.MarkNoShow)
		})

		r.Post("/boarding/verify", h.VerifyBoardingPass)
	})
}

func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.TicketService.Routes(r.Context())
	if err != nil {
		h.fail(w, r, "Failed to get routes", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Routes retrieved", routes)
}

// SearchTrips finds the trips on sale for a day.
// Expected query: ?date=YYYY-MM-DD&origin=...&destination=...
func (h *Handler) SearchTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trips, err := h.TicketService.SearchTrips(r.Context(), q.Get("origin"), q.Get("destination"), q.Get("date"))
	if err != nil {
		h.fail(w, r, "Failed to search trips", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, fmt.Sprintf("%d trips found", len(trips)), trips)
}

// GetTripSeats returns the sold seats of a trip. The list is advisory; a seat
// shown as free can still be lost to a concurrent sale.
func (h *Handler) GetTripSeats(w http.ResponseWriter, r *http.Request) {
	seatMap, err := h.TicketService.TripSeatMap(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		h.fail(w, r, "Failed to get seat availability", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Seat availability retrieved", seatMap)
}

func (h *Handler) GetTripManifest(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.TicketService.TripManifest(r.Context(), chi.URLParam(r, "tripId"))
	if err != nil {
		h.fail(w, r, "Failed to get trip manifest", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Trip manifest retrieved", tickets)
}

// SellTickets sells the requested seats to one passenger. The response is 201
// when at least one seat was sold; otherwise it carries the status of the first
// failed seat. The body always lists the outcome of every seat.
func (h *Handler) SellTickets(w http.ResponseWriter, r *http.Request) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		utils.WriteError(w, "Authentication required", models.ErrSessionNotFound)
		return
	}

	var req models.SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(req.Passenger); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	resp, err := h.TicketService.SellSeats(r.Context(), req, session.UserID)
	if err != nil {
		h.fail(w, r, "Sale failed", err)
		return
	}
	for i := range resp.Results {
		if resp.Results[i].Code == models.CodeStorage {
			resp.Results[i].Error = models.InternalErrorMessage
		}
	}

	if len(resp.Tickets) > 0 {
		msg := fmt.Sprintf("%d of %d seats sold", len(resp.Tickets), len(req.Seats))
		utils.WriteSuccess(w, http.StatusCreated, msg, resp)
		return
	}

	first := resp.Results[0]
	body := utils.ErrorResponse("No seats were sold", first.Error, first.Code)
	body.Data = resp
	utils.WriteJSON(w, utils.HTTPStatus(first.Code), body)
}

func (h *Handler) GetTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		h.fail(w, r, "Failed to get ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket retrieved", ticket)
}

func (h *Handler) GetBoardingPass(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	png, err := h.TicketService.BoardingPass(r.Context(), ticketID)
	if err != nil {
		h.fail(w, r, "Failed to generate boarding pass", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ticketID+".png"))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	var req models.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(req); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	ticket, err := h.TicketService.CancelTicket(r.Context(), chi.URLParam(r, "ticketId"), req.Reason)
	if err != nil {
		h.fail(w, r, "Cancellation failed", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket cancelled", models.CancelResponse{
		TicketID:     ticket.TicketID,
		Status:       string(ticket.Status),
		RefundAmount: ticket.RefundAmount,
	})
}

func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.MarkNoShow(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		h.fail(w, r, "Failed to mark no-show", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket marked as no-show", ticket)
}

// VerifyBoardingPass checks a scanned QR token.
// Expected POST request body: {"token": "..."}
func (h *Handler) VerifyBoardingPass(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteValidationError(w, err)
		return
	}
	if err := h.Validate.Struct(body); err != nil {
		utils.WriteValidationError(w, err)
		return
	}

	ticket, err := h.TicketService.VerifyBoardingPass(r.Context(), body.Token)
	if err != nil {
		h.fail(w, r, "Boarding pass rejected", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Boarding pass valid", ticket)
}

func (h *Handler) GetPassenger(w http.ResponseWriter, r *http.Request) {
	passenger, err := h.Passengers.Lookup(r.Context(), chi.URLParam(r, "dni"))
	if err != nil {
		h.fail(w, r, "Failed to get passenger", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Passenger retrieved", passenger)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error) {
	if models.ErrorCode(err) == models.CodeStorage {
		h.Logger.Error("HTTP", fmt.Sprintf("%s %s: %s: %v", r.Method, r.URL.Path, message, err))
	}
	utils.WriteError(w, message, err)
}
