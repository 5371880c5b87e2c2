package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/onnwee/talentboard/internal/listing"
	"github.com/onnwee/talentboard/internal/middleware"
	"github.com/onnwee/talentboard/internal/reach"
	"github.com/onnwee/talentboard/internal/stage"
)

// StageResponse is the body of GET /api/sponsor/stage. Stage is null for
// sponsors with no wire-visible stage; Listing is null for NEW_SPONSOR and
// for NEXT_LISTING with nothing outstanding.
type StageResponse struct {
	Stage   *string          `json:"stage"`
	Listing *listing.Summary `json:"listing"`
}

// StageHandlers holds dependencies for the sponsor stage endpoint.
type StageHandlers struct {
	classifier *stage.Classifier
	estimator  reach.Estimator
}

// NewStageHandlers creates a new StageHandlers instance.
func NewStageHandlers(classifier *stage.Classifier, estimator reach.Estimator) *StageHandlers {
	return &StageHandlers{classifier: classifier, estimator: estimator}
}

// GetSponsorStage handles GET /api/sponsor/stage - classifies the session
// sponsor's next action. The reach memo is scoped to this request so
// repeated audience estimates within one classification hit the estimator
// once.
func (h *StageHandlers) GetSponsorStage(w http.ResponseWriter, r *http.Request) {
	sponsorID := middleware.GetSessionSponsor(r.Context())
	if sponsorID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Sponsor session required")
		return
	}

	memo := reach.NewMemo(h.estimator)
	result, err := h.classifier.Classify(r.Context(), sponsorID, memo)
	if err != nil {
		slog.ErrorContext(r.Context(), "stage classification failed",
			"sponsor_id", sponsorID, "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to determine sponsor stage")
		return
	}

	resp := StageResponse{}
	if result != nil && result.Stage != stage.StageNone {
		name := result.Stage.String()
		resp.Stage = &name
		resp.Listing = result.Listing.Summarize()
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode stage response", "error", err)
	}
}
