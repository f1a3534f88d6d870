// Package handlers is the chi HTTP surface over the battle service. Identity
// comes from the bearer token; battle semantics and their error taxonomy live
// in the service layer, this package only translates them to status codes.
package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	battleservice "github.com/cypher-arena/battle-engine/app/modules/battle/application"
	battletypes "github.com/cypher-arena/battle-engine/app/modules/battle/domain/types"
	battlejwt "github.com/cypher-arena/battle-engine/app/modules/battle/infrastructure/jwt"
)

// BattleHandler serves the battle routes.
type BattleHandler struct {
	service battleservice.Service
	logger  *slog.Logger
}

// NewBattleHandler wires the handler.
func NewBattleHandler(service battleservice.Service, logger *slog.Logger) *BattleHandler {
	return &BattleHandler{service: service, logger: logger}
}

// Routes mounts the battle API under the given JWT provider.
func (h *BattleHandler) Routes(provider battlejwt.Provider) chi.Router {
	r := chi.NewRouter()
	r.Use(Authenticate(provider))

	r.Post("/battles", h.CreateChallenge)
	r.Get("/battles/{battleID}", h.GetBattle)
	r.Post("/battles/{battleID}/accept", h.AcceptChallenge)
	r.Post("/battles/{battleID}/golive", h.GoLive)
	r.Post("/battles/{battleID}/submissions", h.SubmitBars)
	r.With(RateLimit(rate.Limit(1), 5)).Post("/battles/{battleID}/votes", h.CastVote)
	r.Post("/battles/{battleID}/reactions", h.ToggleReaction)
	r.Post("/battles/{battleID}/comments", h.PostComment)
	r.Delete("/battles/{battleID}/comments/{commentID}", h.DeleteComment)
	r.Get("/battles/{battleID}/comments", h.ListComments)

	return r
}

// CreateChallenge creates a new challenge owned by the caller.
func (h *BattleHandler) CreateChallenge(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OpponentID    *string `json:"opponent_id"`
		TotalRounds   int     `json:"total_rounds"`
		BarsPerRound  int     `json:"bars_per_round"`
		TimeLimit     string  `json:"time_limit"`
		StakeAmount   int64   `json:"stake_amount"`
		StakeCurrency string  `json:"stake_currency"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}

	input := battleservice.CreateChallengeInput{
		ChallengerID:  callerClaims(r).UserID,
		TotalRounds:   body.TotalRounds,
		BarsPerRound:  body.BarsPerRound,
		TimeLimit:     body.TimeLimit,
		StakeAmount:   body.StakeAmount,
		StakeCurrency: body.StakeCurrency,
	}
	if body.OpponentID != nil {
		opponent := battletypes.UserID(*body.OpponentID)
		input.OpponentID = &opponent
	}

	battle, err := h.service.CreateChallenge(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, battle)
}

// GetBattle returns the full aggregate.
func (h *BattleHandler) GetBattle(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleID(w, r)
	if !ok {
		return
	}
	agg, err := h.service.GetAggregate(r.Context(), battleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, agg)
}

// AcceptChallenge accepts on behalf of the caller.
func (h *BattleHandler) AcceptChallenge(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleID(w, r)
	if !ok {
		return
	}
	battle, err := h.service.AcceptChallenge(r.Context(), battleID, callerClaims(r).UserID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, battle)
}

// GoLive flips the battle to the LIVE phase.
func (h *BattleHandler) GoLive(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleID(w, r)
	if !ok {
		return
	}
	if err := h.service.GoLive(r.Context(), battleID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitBars records the caller's bars for the current round. Accepts either
// a JSON body or multipart form data with a "bars" JSON field and an optional
// "audio" file.
func (h *BattleHandler) SubmitBars(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleID(w, r)
	if !ok {
		return
	}

	input := battleservice.SubmitInput{
		BattleID: battleID,
		UserID:   callerClaims(r).UserID,
	}

	if err := r.ParseMultipartForm(32 << 20); err == nil {
		if err := json.Unmarshal([]byte(r.FormValue("bars")), &input.Bars); err != nil {
			http.Error(w, fmt.Sprintf("Failed to decode bars field: %v", err), http.StatusBadRequest)
			return
		}
		if file, header, err := r.FormFile("audio"); err == nil {
			defer file.Close()
			input.Audio = file
			input.AudioFileName = header.Filename
		}
	} else {
		var body struct {
			Bars []string `json:"bars"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
			return
		}
		input.Bars = body.Bars
	}

	sub, err := h.service.SubmitBars(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, sub)
}

// CastVote records the caller's vote for the current round. The voter class
// comes from the token, never the body.
func (h *BattleHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleID(w, r)
	if !ok {
		return
	}

	var body struct {
		VoteFor   string             `json:"vote_for"`
		SubScores map[string]float64 `json:"sub_scores"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}

	claims := callerClaims(r)
	vote, err := h.service.CastVote(r.Context(), battleservice.VoteInput{
		BattleID:   battleID,
		VoterID:    claims.UserID,
		VoterClass: claims.VoterClass,
		VoteFor:    battletypes.Side(body.VoteFor),
		SubScores:  body.SubScores,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, vote)
}

// ToggleReaction flips a reaction and reports whether it is now present.
func (h *BattleHandler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleID(w, r)
	if !ok {
		return
	}

	var body struct {
		Kind       string     `json:"kind"`
		TargetType string     `json:"target_type"`
		TargetID   *uuid.UUID `json:"target_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}

	present, err := h.service.ToggleReaction(r.Context(), battleservice.ReactionInput{
		BattleID:   battleID,
		UserID:     callerClaims(r).UserID,
		Kind:       body.Kind,
		TargetType: battletypes.ReactionTarget(body.TargetType),
		TargetID:   body.TargetID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"present": present})
}

// PostComment appends a comment.
func (h *BattleHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleID(w, r)
	if !ok {
		return
	}

	var body struct {
		Content     string `json:"content"`
		RoundNumber *int   `json:"round_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to decode request body: %v", err), http.StatusBadRequest)
		return
	}

	comment, err := h.service.PostComment(r.Context(), battleservice.CommentInput{
		BattleID:    battleID,
		UserID:      callerClaims(r).UserID,
		Content:     body.Content,
		RoundNumber: body.RoundNumber,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, comment)
}

// DeleteComment soft-deletes the caller's comment.
func (h *BattleHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := uuid.Parse(chi.URLParam(r, "commentID"))
	if err != nil {
		http.Error(w, "Invalid comment ID", http.StatusBadRequest)
		return
	}
	if err := h.service.DeleteComment(r.Context(), commentID, callerClaims(r).UserID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListComments returns the battle's visible comments.
func (h *BattleHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	battleID, ok := h.battleID(w, r)
	if !ok {
		return
	}
	comments, err := h.service.ListComments(r.Context(), battleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, comments)
}

func (h *BattleHandler) battleID(w http.ResponseWriter, r *http.Request) (battletypes.BattleID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "battleID"))
	if err != nil {
		http.Error(w, "Invalid battle ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *BattleHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", slog.Any("error", err))
	}
}

func (h *BattleHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sql.ErrNoRows):
		status = http.StatusNotFound
	case errors.Is(err, battleservice.ErrNotInvited),
		errors.Is(err, battleservice.ErrNotParticipant),
		errors.Is(err, battleservice.ErrSelfVote):
		status = http.StatusForbidden
	case errors.Is(err, battleservice.ErrPhaseViolation),
		errors.Is(err, battleservice.ErrNoActiveRound),
		errors.Is(err, battleservice.ErrNotVotingPhase),
		errors.Is(err, battleservice.ErrDuplicateSubmission),
		errors.Is(err, battleservice.ErrDuplicateVote):
		status = http.StatusConflict
	case errors.Is(err, battleservice.ErrLineCountMismatch):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed",
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
