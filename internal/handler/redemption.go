package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/starchart/internal/auth"
	"github.com/dukerupert/starchart/internal/events"
	"github.com/dukerupert/starchart/internal/model"
	"github.com/dukerupert/starchart/internal/store"
	"github.com/dukerupert/starchart/internal/view"
)

type RedemptionHandler struct {
	redemptions *store.RedemptionStore
	rewards     *store.RewardStore
	views       *view.Registry
	events      events.Publisher
	logger      *slog.Logger
}

func NewRedemptionHandler(rds *store.RedemptionStore, rs *store.RewardStore, views *view.Registry, pub events.Publisher, logger *slog.Logger) *RedemptionHandler {
	return &RedemptionHandler{redemptions: rds, rewards: rs, views: views, events: pub, logger: logger}
}

type redemptionResult struct {
	Redemption *model.Redemption `json:"redemption,omitempty"`
	Balance    balanceResponse   `json:"balance"`
}

type redeemRequest struct {
	RewardID    string `json:"reward_id"`
	RequestedBy string `json:"requested_by"`
	Note        string `json:"note"`
}

// Redeem spends Star Dollars on a reward. The reward's description and cost
// are fixed on the redemption as they are now. The balance is not checked;
// it floors at zero.
func (h *RedemptionHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rewardID := strings.TrimSpace(req.RewardID)
	if rewardID == "" {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation failed",
			Fields: []store.FieldError{{Field: "reward_id", Error: "reward_id is required"}},
		})
		return
	}

	reward, err := h.rewards.GetByID(r.Context(), rewardID)
	if err != nil {
		writeError(w, h.logger, "reward", err)
		return
	}
	if reward == nil {
		notFound(w, "reward")
		return
	}
	if !reward.Active {
		writeJSON(w, http.StatusBadRequest, validationResponse{
			Error:  "validation failed",
			Fields: []store.FieldError{{Field: "reward_id", Error: "reward is not active"}},
		})
		return
	}

	rd, err := h.redemptions.Create(r.Context(), store.RedemptionInput{
		RewardID:          reward.ID,
		RewardDescription: reward.Description,
		Cost:              reward.Cost,
		RequestedBy:       req.RequestedBy,
		Note:              req.Note,
	})
	if err != nil {
		writeError(w, h.logger, "redemption", err)
		return
	}
	publish(r.Context(), h.events, events.EntityRedemption, events.ActionCreated, rd.ID)

	d := h.views.Get(auth.SessionID(r.Context()))
	writeJSON(w, http.StatusCreated, redemptionResult{
		Redemption: rd,
		Balance:    readBalance(r.Context(), d, h.logger),
	})
}

func (h *RedemptionHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.redemptions.List(r.Context())
	writeList(w, h.logger, "redemptions", items, err)
}

func (h *RedemptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.redemptions.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, "redemption", err)
		return
	}
	publish(r.Context(), h.events, events.EntityRedemption, events.ActionDeleted, id)

	d := h.views.Get(auth.SessionID(r.Context()))
	writeJSON(w, http.StatusOK, redemptionResult{Balance: readBalance(r.Context(), d, h.logger)})
}
