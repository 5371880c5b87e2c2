package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/talentboard/internal/listing"
	"github.com/onnwee/talentboard/internal/middleware"
	"github.com/onnwee/talentboard/internal/scout"
)

// ScoutHandlers holds dependencies for the talent scout endpoints.
type ScoutHandlers struct {
	service *scout.Service
}

// NewScoutHandlers creates a new ScoutHandlers instance.
func NewScoutHandlers(service *scout.Service) *ScoutHandlers {
	return &ScoutHandlers{service: service}
}

// GetListingScouts handles GET /api/listings/{id}/scouts - returns the
// ranked scout candidates for a listing the session sponsor owns. Serving
// may recompute the ranking when the stored one is stale.
func (h *ScoutHandlers) GetListingScouts(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("id")
	if listingID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "listing id is required")
		return
	}

	sponsorID := middleware.GetSessionSponsor(r.Context())
	if sponsorID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Sponsor session required")
		return
	}

	scouts, err := h.service.ScoutsForListing(r.Context(), listingID, sponsorID)
	if err != nil {
		h.writeScoutError(w, r, err, listingID)
		return
	}

	// Stable response shape: an empty ranking is an empty array, not null.
	if scouts == nil {
		scouts = []scout.Scout{}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(scouts); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode scouts response", "error", err)
	}
}

// InviteScout handles POST /api/listings/{id}/scouts/{user_id}/invite -
// marks a scout row invited and notifies the candidate. The invite flag
// survives future recomputations of the ranking.
func (h *ScoutHandlers) InviteScout(w http.ResponseWriter, r *http.Request) {
	listingID := r.PathValue("id")
	userID := r.PathValue("user_id")
	if listingID == "" || userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "listing id and user id are required")
		return
	}

	sponsorID := middleware.GetSessionSponsor(r.Context())
	if sponsorID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Sponsor session required")
		return
	}

	if err := h.service.Invite(r.Context(), listingID, userID, sponsorID); err != nil {
		h.writeScoutError(w, r, err, listingID)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"invited":true}`))
}

// writeScoutError maps scout service errors to the JSON error envelope.
func (h *ScoutHandlers) writeScoutError(w http.ResponseWriter, r *http.Request, err error, listingID string) {
	switch {
	case errors.Is(err, listing.ErrListingNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeListingNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeListingNotFound, "Listing not found")
	case errors.Is(err, scout.ErrScoutNotFound):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeScoutNotFound)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeScoutNotFound, "User is not a scout candidate for this listing")
	case errors.Is(err, scout.ErrNotOwner):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNotOwner)
		WriteError(w, ctx, http.StatusForbidden, ErrCodeNotOwner, "Listing belongs to a different sponsor")
	case errors.Is(err, scout.ErrNoSkills):
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeNoSkills)
		WriteError(w, ctx, http.StatusNotFound, ErrCodeNoSkills, "Listing has no skills to match candidates against")
	default:
		slog.ErrorContext(r.Context(), "scout request failed",
			"listing_id", listingID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to serve scout candidates")
	}
}
