package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/econsulaire/portal/internal/middleware"
	"github.com/econsulaire/portal/internal/models"
)

// adminUnit resolves the calling admin's unit, or nil with an error sent.
func (r *Router) adminUnit(w http.ResponseWriter, req *http.Request) *models.ConsularUnit {
	user := middleware.CurrentUser(req)
	if user.ConsularUnitID == nil {
		respondError(w, http.StatusForbidden, "Aucune unité consulaire assignée")
		return nil
	}
	var unit models.ConsularUnit
	if err := r.db.First(&unit, *user.ConsularUnitID).Error; err != nil {
		respondError(w, http.StatusNotFound, "Unité consulaire introuvable")
		return nil
	}
	return &unit
}

// adminDashboard returns activity counters for the admin's unit.
func (r *Router) adminDashboard(w http.ResponseWriter, req *http.Request) {
	unit := r.adminUnit(w, req)
	if unit == nil {
		return
	}

	count := func(model interface{}, query string, args ...interface{}) int64 {
		var n int64
		r.db.Model(model).Where(query, args...).Count(&n)
		return n
	}

	byStatus := map[string]int64{}
	for _, s := range []models.Status{
		models.StatusSubmitted, models.StatusProcessing, models.StatusApproved,
		models.StatusRejected, models.StatusNeedsDocuments,
		models.StatusReadyForPickup, models.StatusClosed,
	} {
		byStatus[string(s)] = count(&models.Application{},
			"consular_unit_id = ? AND status = ?", unit.ID, s)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"unit":         unit,
		"applications": byStatus,
		"agents": count(&models.User{},
			"consular_unit_id = ? AND role = ? AND active = ?", unit.ID, models.RoleAgent, true),
		"configuredServices": count(&models.UnitService{},
			"consular_unit_id = ? AND active = ?", unit.ID, true),
	})
}

// listUnitServices returns all service configurations of the admin's unit,
// including the catalog entries not yet configured.
func (r *Router) listUnitServices(w http.ResponseWriter, req *http.Request) {
	unit := r.adminUnit(w, req)
	if unit == nil {
		return
	}

	var configs []models.UnitService
	if err := r.db.Preload("Service").
		Where("consular_unit_id = ?", unit.ID).Find(&configs).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	configured := make(map[uint]bool, len(configs))
	for i := range configs {
		configured[configs[i].ServiceID] = true
	}

	var unconfigured []models.Service
	if err := r.db.Where("active = ?", true).Find(&unconfigured).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	available := make([]models.Service, 0)
	for _, s := range unconfigured {
		if !configured[s.ID] {
			available = append(available, s)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"configured": configs,
		"available":  available,
	})
}

// ConfigureServiceRequest carries a unit service configuration.
type ConfigureServiceRequest struct {
	ServiceID  uint    `json:"serviceId"`
	Fee        float64 `json:"fee"`
	Currency   string  `json:"currency"`
	CustomDays *int    `json:"customDays"`
	AdminNotes string  `json:"adminNotes"`
}

// configureUnitService creates or updates the unit's configuration for one
// catalog service.
func (r *Router) configureUnitService(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)
	unit := r.adminUnit(w, req)
	if unit == nil {
		return
	}

	var in ConfigureServiceRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if in.Fee < 0 {
		respondError(w, http.StatusBadRequest, "Le tarif ne peut pas être négatif")
		return
	}

	var service models.Service
	if err := r.db.Where("id = ? AND active = ?", in.ServiceID, true).First(&service).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Service introuvable ou inactif")
		return
	}

	currency := in.Currency
	if currency == "" {
		currency = "USD"
	}

	// Upsert on (unit, service)
	var cfg models.UnitService
	err := r.db.Where("consular_unit_id = ? AND service_id = ?", unit.ID, service.ID).
		First(&cfg).Error
	if err == nil {
		cfg.Fee = in.Fee
		cfg.Currency = currency
		cfg.CustomDays = in.CustomDays
		cfg.AdminNotes = in.AdminNotes
		cfg.ConfiguredBy = user.ID
		cfg.Active = true
		if err := r.db.Save(&cfg).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Erreur interne")
			return
		}
	} else {
		cfg = models.UnitService{
			ConsularUnitID: unit.ID,
			ServiceID:      service.ID,
			Fee:            in.Fee,
			Currency:       currency,
			Active:         true,
			CustomDays:     in.CustomDays,
			AdminNotes:     in.AdminNotes,
			ConfiguredBy:   user.ID,
		}
		if err := r.db.Create(&cfg).Error; err != nil {
			respondError(w, http.StatusInternalServerError, "Erreur interne")
			return
		}
	}

	cfg.Service = service
	r.audit.Record(req, &user.ID, "configure_service", "unit_service", &cfg.ID,
		fmt.Sprintf("Service %s configuré pour l'unité %s (%.2f %s)", service.Code, unit.Name, cfg.Fee, cfg.Currency))
	respondJSON(w, http.StatusOK, cfg)
}

// toggleUnitService flips the active flag of one unit service config.
func (r *Router) toggleUnitService(w http.ResponseWriter, req *http.Request) {
	unit := r.adminUnit(w, req)
	if unit == nil {
		return
	}
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var cfg models.UnitService
	if err := r.db.Where("id = ? AND consular_unit_id = ?", id, unit.ID).First(&cfg).Error; err != nil {
		respondError(w, http.StatusNotFound, "Configuration introuvable")
		return
	}

	cfg.Active = !cfg.Active
	if err := r.db.Save(&cfg).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

// listUnitPersonnel lists the staff of the admin's unit.
func (r *Router) listUnitPersonnel(w http.ResponseWriter, req *http.Request) {
	unit := r.adminUnit(w, req)
	if unit == nil {
		return
	}

	var staff []models.User
	err := r.db.Where("consular_unit_id = ? AND role IN ?", unit.ID,
		[]models.Role{models.RoleAgent, models.RoleAdmin}).
		Order("role, last_name").Find(&staff).Error
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, staff)
}

// getUnitInfo returns the admin's unit record.
func (r *Router) getUnitInfo(w http.ResponseWriter, req *http.Request) {
	unit := r.adminUnit(w, req)
	if unit == nil {
		return
	}
	respondJSON(w, http.StatusOK, unit)
}

// UnitInfoRequest carries the fields a unit admin may edit. Structural
// fields (name, type, country) stay supervisor-only.
type UnitInfoRequest struct {
	HeadName       string `json:"headName"`
	HeadTitle      string `json:"headTitle"`
	PrimaryEmail   string `json:"primaryEmail"`
	SecondaryEmail string `json:"secondaryEmail"`
	PrimaryPhone   string `json:"primaryPhone"`
	SecondaryPhone string `json:"secondaryPhone"`
	Street         string `json:"street"`
	AddressCity    string `json:"addressCity"`
	PostalCode     string `json:"postalCode"`
	AddressExtra   string `json:"addressExtra"`
	Timezone       string `json:"timezone"`
}

// updateUnitInfo updates the contact details of the admin's unit.
func (r *Router) updateUnitInfo(w http.ResponseWriter, req *http.Request) {
	unit := r.adminUnit(w, req)
	if unit == nil {
		return
	}

	var in UnitInfoRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	unit.HeadName = in.HeadName
	unit.HeadTitle = in.HeadTitle
	if in.PrimaryEmail != "" {
		unit.PrimaryEmail = in.PrimaryEmail
	}
	unit.SecondaryEmail = in.SecondaryEmail
	if in.PrimaryPhone != "" {
		unit.PrimaryPhone = in.PrimaryPhone
	}
	unit.SecondaryPhone = in.SecondaryPhone
	unit.Street = in.Street
	unit.AddressCity = in.AddressCity
	unit.PostalCode = in.PostalCode
	unit.AddressExtra = in.AddressExtra
	if in.Timezone != "" {
		unit.Timezone = in.Timezone
	}

	if err := r.db.Save(unit).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, unit)
}
