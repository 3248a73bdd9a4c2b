package polystore

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/mystira/polystore/pkg/models"
	"github.com/mystira/polystore/pkg/polyglot"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// guardWrite rejects write requests while the application is read-only.
func (a *App) guardWrite(w http.ResponseWriter) bool {
	if a.IsReadOnly() {
		respondError(w, http.StatusForbidden, "Service is in read-only mode")
		return false
	}
	return true
}

// Health and status handlers

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := a.engine.Health(r.Context())
	status := http.StatusOK
	if !h.PrimaryHealthy {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, h)
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.engine.Status(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// Admin handlers

// backfillRequest is the optional JSON body of a backfill trigger.
type backfillRequest struct {
	BatchSize int    `json:"batch_size"`
	Overwrite bool   `json:"overwrite"`
	Cursor    string `json:"cursor"`
}

func parseBackfillRequest(r *http.Request) polyglot.BackfillOptions {
	var req backfillRequest
	if r.Body != nil {
		// An empty or malformed body means default options.
		json.NewDecoder(r.Body).Decode(&req)
	}
	return polyglot.BackfillOptions{
		BatchSize: req.BatchSize,
		Overwrite: req.Overwrite,
		Cursor:    req.Cursor,
	}
}

func (a *App) handleBackfillAll(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	opts := parseBackfillRequest(r)
	opts.Cursor = "" // cursors are per entity type

	summary, err := a.engine.TriggerBackfillAll(r.Context(), opts)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (a *App) handleBackfillOne(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	entityType, err := polyglot.ParseEntityType(mux.Vars(r)["type"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.engine.TriggerBackfill(r.Context(), entityType, parseBackfillRequest(r))
	if err != nil {
		if errors.Is(err, polyglot.ErrNoSecondary) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		// A partial result still carries the resume cursor.
		if res != nil {
			respondJSON(w, http.StatusOK, res)
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (a *App) handleConsistency(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entityType, err := polyglot.ParseEntityType(vars["type"])
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.engine.ValidateConsistency(r.Context(), entityType, vars["id"])
	if err != nil {
		switch {
		case errors.Is(err, polyglot.ErrValidationDisabled):
			respondError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, polyglot.ErrNoSecondary):
			respondError(w, http.StatusConflict, err.Error())
		default:
			respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (a *App) handleReplay(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	batchSize := 100
	if v := r.URL.Query().Get("batch_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid batch_size")
			return
		}
		batchSize = n
	}

	succeeded, stillFailing, err := a.engine.Replay(r.Context(), batchSize)
	if err != nil {
		if errors.Is(err, polyglot.ErrCompensationDisabled) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{
		"succeeded":     succeeded,
		"still_failing": stillFailing,
	})
}

func (a *App) handleCompensationBacklog(w http.ResponseWriter, r *http.Request) {
	comp := a.engine.Compensation()
	if comp == nil {
		respondError(w, http.StatusConflict, polyglot.ErrCompensationDisabled.Error())
		return
	}
	backlog, err := comp.Backlog(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, backlog)
}

func (a *App) handleSetReadOnly(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReadOnly bool `json:"read_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	a.SetReadOnly(req.ReadOnly)
	respondJSON(w, http.StatusOK, map[string]bool{"read_only": req.ReadOnly})
}

// Account handlers

func (a *App) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	var account models.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if account.ID.IsZero() {
		account.ID = models.NewAccountID()
	}
	stamp(&account.CreatedAt, &account.UpdatedAt)

	if err := a.registry.Accounts.Create(r.Context(), &account); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, account)
}

func (a *App) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := a.registry.Accounts.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if account == nil {
		respondError(w, http.StatusNotFound, "Account not found")
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (a *App) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	id := mux.Vars(r)["id"]
	var account models.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	account.ID = models.AccountID(id)

	existing, err := a.registry.Accounts.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "Account not found")
		return
	}
	account.CreatedAt = existing.CreatedAt
	account.UpdatedAt = time.Now()

	if err := a.registry.Accounts.Upsert(r.Context(), &account); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, account)
}

func (a *App) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	if err := a.registry.Accounts.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Game session handlers

func (a *App) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	var session models.GameSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if session.ID.IsZero() {
		session.ID = models.NewGameSessionID()
	}
	if session.Status == "" {
		session.Status = models.SessionActive
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	stamp(&session.CreatedAt, &session.UpdatedAt)

	if err := a.registry.Sessions.Create(r.Context(), &session); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (a *App) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := a.registry.Sessions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if session == nil {
		respondError(w, http.StatusNotFound, "Game session not found")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (a *App) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	id := mux.Vars(r)["id"]
	var session models.GameSession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	session.ID = models.GameSessionID(id)

	existing, err := a.registry.Sessions.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "Game session not found")
		return
	}
	session.CreatedAt = existing.CreatedAt
	session.UpdatedAt = time.Now()

	if err := a.registry.Sessions.Upsert(r.Context(), &session); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (a *App) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	if err := a.registry.Sessions.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Score handlers

func (a *App) handleCreateScore(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	var score models.PlayerScenarioScore
	if err := json.NewDecoder(r.Body).Decode(&score); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if score.ID.IsZero() {
		score.ID = models.NewPlayerScenarioScoreID()
	}
	stamp(&score.CreatedAt, &score.UpdatedAt)

	if err := a.registry.Scores.Create(r.Context(), &score); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, score)
}

func (a *App) handleGetScore(w http.ResponseWriter, r *http.Request) {
	score, err := a.registry.Scores.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if score == nil {
		respondError(w, http.StatusNotFound, "Score not found")
		return
	}
	respondJSON(w, http.StatusOK, score)
}

func (a *App) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	id := mux.Vars(r)["id"]
	var score models.PlayerScenarioScore
	if err := json.NewDecoder(r.Body).Decode(&score); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	score.ID = models.PlayerScenarioScoreID(id)

	existing, err := a.registry.Scores.Get(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing == nil {
		respondError(w, http.StatusNotFound, "Score not found")
		return
	}
	score.CreatedAt = existing.CreatedAt
	score.UpdatedAt = time.Now()

	if err := a.registry.Scores.Upsert(r.Context(), &score); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, score)
}

func (a *App) handleDeleteScore(w http.ResponseWriter, r *http.Request) {
	if !a.guardWrite(w) {
		return
	}
	if err := a.registry.Scores.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// stamp fills creation and update timestamps for a new entity.
func stamp(createdAt, updatedAt *time.Time) {
	now := time.Now()
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}
