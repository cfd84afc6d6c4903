package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/econsulaire/portal/internal/middleware"
	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/workflow"
)

// agentDashboard returns counters for the agent's unit.
func (r *Router) agentDashboard(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	if user.ConsularUnitID == nil {
		respondError(w, http.StatusForbidden, "Aucune unité consulaire assignée")
		return
	}
	unitID := *user.ConsularUnitID

	count := func(query string, args ...interface{}) int64 {
		var n int64
		r.db.Model(&models.Application{}).
			Where("consular_unit_id = ?", unitID).Where(query, args...).Count(&n)
		return n
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"pending":    count("status = ?", models.StatusSubmitted),
		"processing": count("status = ?", models.StatusProcessing),
		"mine":       count("processed_by = ?", user.ID),
		"approved":   count("status = ? AND processed_by = ?", models.StatusApproved, user.ID),
		"rejected":   count("status = ? AND processed_by = ?", models.StatusRejected, user.ID),
	})
}

// pendingApplications lists the unassigned submissions of the agent's unit.
func (r *Router) pendingApplications(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	if user.ConsularUnitID == nil {
		respondError(w, http.StatusForbidden, "Aucune unité consulaire assignée")
		return
	}

	var apps []models.Application
	err := r.db.Preload("User").
		Where("consular_unit_id = ? AND status = ?", *user.ConsularUnitID, models.StatusSubmitted).
		Order("created_at ASC").Find(&apps).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

// myAssignedApplications lists files the agent is processing.
func (r *Router) myAssignedApplications(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)

	var apps []models.Application
	err := r.db.Preload("User").Preload("Documents").
		Where("processed_by = ?", user.ID).
		Order("updated_at DESC").Find(&apps).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, apps)
}

// getUnitApplication returns one application of the agent's unit with full
// detail.
func (r *Router) getUnitApplication(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	if user.ConsularUnitID == nil {
		respondError(w, http.StatusForbidden, "Aucune unité consulaire assignée")
		return
	}
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var app models.Application
	err = r.db.Preload("User").Preload("Documents").Preload("StatusHistory").
		Where("id = ? AND consular_unit_id = ?", id, *user.ConsularUnitID).
		First(&app).Error
	if err != nil {
		respondError(w, http.StatusNotFound, "Demande introuvable")
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// takeApplication assigns a submitted application to the calling agent.
func (r *Router) takeApplication(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	app, err := r.engine.Take(req.Context(), uint(id), user, requestMeta(req))
	if err != nil {
		respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// ProcessRequest carries an agent decision.
type ProcessRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

// processApplication applies an agent decision to an assigned application.
func (r *Router) processApplication(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var in ProcessRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	app, err := r.engine.Process(req.Context(), uint(id), user, workflow.Action(in.Action), in.Comment, requestMeta(req))
	if err != nil {
		respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// respondWorkflowError maps workflow sentinels to HTTP statuses.
func respondWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		respondError(w, http.StatusNotFound, "Demande introuvable")
	case errors.Is(err, workflow.ErrWrongUnit):
		respondError(w, http.StatusForbidden, "Cette demande appartient à une autre unité")
	case errors.Is(err, workflow.ErrNotProcessor):
		respondError(w, http.StatusForbidden, "Cette demande est traitée par un autre agent")
	case errors.Is(err, workflow.ErrAlreadyTaken):
		respondError(w, http.StatusConflict, "Cette demande est déjà prise en charge")
	case errors.Is(err, workflow.ErrCommentRequired):
		respondError(w, http.StatusBadRequest, "Un commentaire est obligatoire")
	case errors.Is(err, workflow.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "Transition de statut non autorisée")
	case errors.Is(err, workflow.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, "Statut invalide")
	case errors.Is(err, workflow.ErrTerminalState):
		respondError(w, http.StatusConflict, "Cette demande est dans un état final")
	default:
		log.Printf("⚠️ Workflow error: %v", err)
		respondError(w, http.StatusInternalServerError, "Erreur interne")
	}
}
