package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/models"
)

// trackApplication lets anyone check the state of a file by its reference
// number. Only non-sensitive fields go out.
func (r *Router) trackApplication(w http.ResponseWriter, req *http.Request) {
	reference := mux.Vars(req)["reference"]

	var app models.Application
	err := r.db.Preload("StatusHistory", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at ASC")
	}).Where("reference_number = ?", reference).First(&app).Error
	if err != nil {
		respondError(w, http.StatusNotFound, "Aucune demande trouvée pour cette référence")
		return
	}

	steps := make([]map[string]interface{}, 0, len(app.StatusHistory))
	for _, h := range app.StatusHistory {
		steps = append(steps, map[string]interface{}{
			"status":  h.NewStatus,
			"label":   h.NewStatus.Display(),
			"date":    h.CreatedAt,
			"comment": h.Comment,
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"referenceNumber": app.ReferenceNumber,
		"serviceType":     app.ServiceType,
		"serviceLabel":    app.ServiceDisplay(),
		"status":          app.Status,
		"statusLabel":     app.Status.Display(),
		"submittedAt":     app.CreatedAt,
		"history":         steps,
	})
}

// listActiveUnits returns the active consular units, optionally filtered
// by country or city.
func (r *Router) listActiveUnits(w http.ResponseWriter, req *http.Request) {
	query := r.db.Where("active = ?", true)
	if country := req.URL.Query().Get("country"); country != "" {
		query = query.Where("country = ?", country)
	}
	if city := req.URL.Query().Get("city"); city != "" {
		query = query.Where("city = ?", city)
	}

	var units []models.ConsularUnit
	if err := query.Order("country, city").Find(&units).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, units)
}

// listUnitServicesPublic returns the active service configurations of one
// unit, for the citizen submission form.
func (r *Router) listUnitServicesPublic(w http.ResponseWriter, req *http.Request) {
	unitID, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var configs []models.UnitService
	err = r.db.Preload("Service").
		Where("consular_unit_id = ? AND active = ?", unitID, true).
		Find(&configs).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	out := make([]map[string]interface{}, 0, len(configs))
	for i := range configs {
		if !configs[i].Service.Active {
			continue
		}
		out = append(out, map[string]interface{}{
			"serviceId":      configs[i].ServiceID,
			"code":           configs[i].Service.Code,
			"name":           configs[i].Service.Name,
			"description":    configs[i].Service.Description,
			"fee":            configs[i].Fee,
			"currency":       configs[i].Currency,
			"processingDays": configs[i].EffectiveDays(),
		})
	}
	respondJSON(w, http.StatusOK, out)
}
