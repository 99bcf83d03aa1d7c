package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/rewired-gh/carmarket/internal/format"
	"github.com/rewired-gh/carmarket/internal/intent"
	"github.com/rewired-gh/carmarket/internal/logger"
	"github.com/rewired-gh/carmarket/internal/models"
)

type healthResponse struct {
	Status    string `json:"status"`
	Loading   bool   `json:"loading"`
	Refreshes int64  `json:"refreshes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy"}
	if s.status != nil {
		resp.Loading = s.status.Loading()
		resp.Refreshes = s.status.Refreshes()
	}
	writeJSON(w, http.StatusOK, resp)
}

type listingView struct {
	models.Listing
	PriceDisplay string `json:"price_display"`
	SellerShort  string `json:"seller_short"`
	Own          bool   `json:"own"`
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.views.GetListings()
	if err != nil {
		logger.Error("Failed to read listings: %v", err)
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "Failed to read listings")
		return
	}

	viewer := r.URL.Query().Get("viewer")
	out := make([]listingView, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingView{
			Listing:      l,
			PriceDisplay: format.BaseUnitsToDisplay(l.Price),
			SellerShort:  format.ShortenAddress(l.Seller),
			Own:          viewer != "" && strings.EqualFold(viewer, l.Seller),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type activityView struct {
	models.ActivityItem
	PriceDisplay string `json:"price_display"`
	AddressShort string `json:"address_short"`
	Age          string `json:"age"`
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	items, err := s.views.GetActivity()
	if err != nil {
		logger.Error("Failed to read activity: %v", err)
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "Failed to read activity")
		return
	}

	now := s.now()
	out := make([]activityView, 0, len(items))
	for _, item := range items {
		out = append(out, activityView{
			ActivityItem: item,
			PriceDisplay: format.BaseUnitsToDisplay(item.Price),
			AddressShort: format.ShortenAddress(item.Address),
			Age:          format.RelativeTime(item.Timestamp, now),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type statsResponse struct {
	models.MarketStats
	Loading bool `json:"loading"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.views.GetStats()
	if err != nil {
		logger.Error("Failed to read stats: %v", err)
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "Failed to read stats")
		return
	}
	resp := statsResponse{MarketStats: stats}
	if s.status != nil {
		resp.Loading = s.status.Loading()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.CarModels())
}

func (s *Server) handleCars(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeError(w, http.StatusBadRequest, "missing_parameter", "owner parameter is required")
		return
	}

	cars, err := s.owners.GetOwnedCars(r.Context(), owner, s.contract.StructType(s.contract.CarStruct), s.ownedLimit)
	if err != nil {
		logger.Warn("Failed to fetch cars of %s: %v", owner, err)
		writeError(w, http.StatusBadGateway, "gateway_unavailable", "Failed to fetch owned cars")
		return
	}
	if cars == nil {
		cars = []models.OwnedCar{}
	}
	writeJSON(w, http.StatusOK, cars)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return false
	}
	return true
}

// respondIntent tracks a freshly built intent or reports why it was refused.
func (s *Server) respondIntent(w http.ResponseWriter, in *intent.Intent, form any, err error) {
	if err != nil {
		if errors.Is(err, intent.ErrValidation) {
			writeError(w, http.StatusBadRequest, "invalid_form", err.Error())
			return
		}
		logger.Error("Failed to build intent: %v", err)
		writeError(w, http.StatusInternalServerError, "intent_failed", err.Error())
		return
	}
	s.tracker.Track(in, form)
	writeJSON(w, http.StatusCreated, in)
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	var form intent.MintForm
	if !decodeBody(w, r, &form) {
		return
	}
	in, err := intent.BuildMint(s.contract, form, s.limits)
	s.respondIntent(w, in, form, err)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var form intent.ListForm
	if !decodeBody(w, r, &form) {
		return
	}
	in, err := intent.BuildList(s.contract, form)
	s.respondIntent(w, in, form, err)
}

type buyRequest struct {
	ListingID string `json:"listing_id"`
	Buyer     string `json:"buyer"`
}

// handleBuy prices the purchase from the current listings snapshot.
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ListingID == "" {
		writeError(w, http.StatusBadRequest, "invalid_form", "listing_id is required")
		return
	}

	listing, err := s.views.GetListing(req.ListingID)
	if err != nil {
		logger.Error("Failed to read listing %s: %v", req.ListingID, err)
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "Failed to read listing")
		return
	}
	if listing == nil {
		writeError(w, http.StatusNotFound, "listing_not_found", "Listing is no longer active")
		return
	}

	form := intent.BuyForm{
		ListingID: listing.ListingID,
		Price:     listing.Price,
		Seller:    listing.Seller,
		Buyer:     req.Buyer,
	}
	in, err := intent.BuildBuy(s.contract, form)
	s.respondIntent(w, in, form, err)
}

type pendingResponse struct {
	Intent *intent.Intent `json:"intent"`
	Form   any            `json:"form"`
}

func (s *Server) handleGetIntent(w http.ResponseWriter, r *http.Request) {
	in, form, ok := s.tracker.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_intent", "Intent is not pending")
		return
	}
	writeJSON(w, http.StatusOK, pendingResponse{Intent: in, Form: form})
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	var outcome intent.Outcome
	if !decodeBody(w, r, &outcome) {
		return
	}

	res, err := s.tracker.Resolve(chi.URLParam(r, "id"), outcome)
	if errors.Is(err, intent.ErrUnknownIntent) {
		writeError(w, http.StatusNotFound, "unknown_intent", "Intent is not pending")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "resolve_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
