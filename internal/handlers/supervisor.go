package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/econsulaire/portal/internal/middleware"
	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/utils"
)

// listUsers returns all accounts, filterable by role and unit.
func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	query := r.db.Order("created_at DESC")
	if role := req.URL.Query().Get("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if unit := req.URL.Query().Get("unitId"); unit != "" {
		query = query.Where("consular_unit_id = ?", unit)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// CreateUserRequest carries a staff account creation.
type CreateUserRequest struct {
	Username       string      `json:"username"`
	Email          string      `json:"email"`
	Password       string      `json:"password"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	Phone          string      `json:"phone"`
	Role           models.Role `json:"role"`
	ConsularUnitID *uint       `json:"consularUnitId"`
}

// createUser creates a staff account. Agents and unit admins must be
// attached to a unit.
func (r *Router) createUser(w http.ResponseWriter, req *http.Request) {
	var in CreateUserRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	switch in.Role {
	case models.RoleAgent, models.RoleAdmin:
		if in.ConsularUnitID == nil {
			respondError(w, http.StatusBadRequest, "Une unité consulaire est requise pour ce rôle")
			return
		}
	case models.RoleSupervisor, models.RoleCitizen:
	default:
		respondError(w, http.StatusBadRequest, "Rôle invalide")
		return
	}
	if in.Username == "" || in.Email == "" || len(in.Password) < 8 {
		respondError(w, http.StatusBadRequest, "Champs obligatoires manquants ou mot de passe trop court")
		return
	}

	if in.ConsularUnitID != nil {
		var unit models.ConsularUnit
		if err := r.db.First(&unit, *in.ConsularUnitID).Error; err != nil {
			respondError(w, http.StatusBadRequest, "Unité consulaire introuvable")
			return
		}
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	user := models.User{
		Username:       in.Username,
		Email:          in.Email,
		PasswordHash:   hash,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Phone:          in.Phone,
		Role:           in.Role,
		Active:         true,
		ConsularUnitID: in.ConsularUnitID,
	}
	if err := r.db.Create(&user).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Email ou nom d'utilisateur déjà utilisé")
		return
	}

	caller := middleware.CurrentUser(req)
	r.audit.Record(req, &caller.ID, "create_user", "user", &user.ID,
		fmt.Sprintf("Compte %s créé avec le rôle %s", user.Username, user.Role))
	respondJSON(w, http.StatusCreated, user)
}

// UpdateUserRequest carries the editable account fields.
type UpdateUserRequest struct {
	FirstName      string       `json:"firstName"`
	LastName       string       `json:"lastName"`
	Phone          string       `json:"phone"`
	Role           *models.Role `json:"role"`
	ConsularUnitID *uint        `json:"consularUnitId"`
	Password       string       `json:"password"`
}

// updateUser edits an account: reassignment, role change, password reset.
func (r *Router) updateUser(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Utilisateur introuvable")
		return
	}

	var in UpdateUserRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if in.FirstName != "" {
		user.FirstName = in.FirstName
	}
	if in.LastName != "" {
		user.LastName = in.LastName
	}
	user.Phone = in.Phone
	if in.Role != nil {
		switch *in.Role {
		case models.RoleCitizen, models.RoleAgent, models.RoleAdmin, models.RoleSupervisor:
			user.Role = *in.Role
		default:
			respondError(w, http.StatusBadRequest, "Rôle invalide")
			return
		}
	}
	user.ConsularUnitID = in.ConsularUnitID
	if in.Password != "" {
		if len(in.Password) < 8 {
			respondError(w, http.StatusBadRequest, "Le mot de passe doit contenir au moins 8 caractères")
			return
		}
		hash, err := utils.HashPassword(in.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Erreur interne")
			return
		}
		user.PasswordHash = hash
	}

	if err := r.db.Save(&user).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// toggleUser flips an account's active flag. Supervisors cannot disable
// themselves.
func (r *Router) toggleUser(w http.ResponseWriter, req *http.Request) {
	caller := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}
	if uint(id) == caller.ID {
		respondError(w, http.StatusBadRequest, "Impossible de désactiver votre propre compte")
		return
	}

	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Utilisateur introuvable")
		return
	}
	user.Active = !user.Active
	if err := r.db.Save(&user).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	state := "désactivé"
	if user.Active {
		state = "réactivé"
	}
	r.audit.Record(req, &caller.ID, "toggle_user", "user", &user.ID,
		fmt.Sprintf("Compte %s %s", user.Username, state))
	respondJSON(w, http.StatusOK, user)
}

// listUnits returns every consular unit with its agents.
func (r *Router) listUnits(w http.ResponseWriter, req *http.Request) {
	var units []models.ConsularUnit
	if err := r.db.Preload("Agents").Order("country, city").Find(&units).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, units)
}

// createUnit registers a new embassy or consulate.
func (r *Router) createUnit(w http.ResponseWriter, req *http.Request) {
	caller := middleware.CurrentUser(req)

	var unit models.ConsularUnit
	if err := json.NewDecoder(req.Body).Decode(&unit); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if unit.Name == "" || unit.City == "" || unit.Country == "" ||
		unit.PrimaryEmail == "" || unit.PrimaryPhone == "" {
		respondError(w, http.StatusBadRequest, "Champs obligatoires manquants")
		return
	}
	if unit.Type != "ambassade" && unit.Type != "consulat" {
		respondError(w, http.StatusBadRequest, "Type d'unité invalide")
		return
	}

	unit.ID = 0
	unit.Active = true
	unit.CreatedBy = caller.ID
	if err := r.db.Create(&unit).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	r.audit.Record(req, &caller.ID, "create_unit", "consular_unit", &unit.ID,
		fmt.Sprintf("Unité %s (%s) créée", unit.Name, unit.Country))
	respondJSON(w, http.StatusCreated, unit)
}

// updateUnit edits a unit record.
func (r *Router) updateUnit(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var unit models.ConsularUnit
	if err := r.db.First(&unit, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Unité consulaire introuvable")
		return
	}

	var in models.ConsularUnit
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if in.Name != "" {
		unit.Name = in.Name
	}
	if in.Type == "ambassade" || in.Type == "consulat" {
		unit.Type = in.Type
	}
	if in.City != "" {
		unit.City = in.City
	}
	if in.Country != "" {
		unit.Country = in.Country
	}
	unit.CountryCode = in.CountryCode
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

	if err := r.db.Save(&unit).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, unit)
}

// toggleUnit flips a unit's active flag.
func (r *Router) toggleUnit(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var unit models.ConsularUnit
	if err := r.db.First(&unit, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Unité consulaire introuvable")
		return
	}
	unit.Active = !unit.Active
	if err := r.db.Save(&unit).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, unit)
}

// listServices returns the global service catalog.
func (r *Router) listServices(w http.ResponseWriter, req *http.Request) {
	var services []models.Service
	if err := r.db.Order("name").Find(&services).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, services)
}

// createService adds a catalog entry.
func (r *Router) createService(w http.ResponseWriter, req *http.Request) {
	var service models.Service
	if err := json.NewDecoder(req.Body).Decode(&service); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}
	if service.Code == "" || service.Name == "" {
		respondError(w, http.StatusBadRequest, "Code et nom sont obligatoires")
		return
	}

	service.ID = 0
	service.Active = true
	if service.ProcessingDays <= 0 {
		service.ProcessingDays = 7
	}
	if err := r.db.Create(&service).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Ce code de service existe déjà")
		return
	}
	respondJSON(w, http.StatusCreated, service)
}

// updateService edits a catalog entry. The code is immutable: applications
// reference it.
func (r *Router) updateService(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var service models.Service
	if err := r.db.First(&service, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Service introuvable")
		return
	}

	var in models.Service
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if in.Name != "" {
		service.Name = in.Name
	}
	service.Description = in.Description
	if in.BaseFee >= 0 {
		service.BaseFee = in.BaseFee
	}
	service.RequiredDocuments = in.RequiredDocuments
	if in.ProcessingDays > 0 {
		service.ProcessingDays = in.ProcessingDays
	}

	if err := r.db.Save(&service).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, service)
}

// toggleService flips a catalog entry. Deactivating globally also
// deactivates every unit configuration of the service.
func (r *Router) toggleService(w http.ResponseWriter, req *http.Request) {
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var service models.Service
	if err := r.db.First(&service, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Service introuvable")
		return
	}

	service.Active = !service.Active
	if err := r.db.Save(&service).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	if !service.Active {
		if err := r.db.Model(&models.UnitService{}).
			Where("service_id = ?", service.ID).
			Update("active", false).Error; err != nil {
			log.Printf("⚠️ Cascading deactivation for service %d: %v", service.ID, err)
		}
	}

	caller := middleware.CurrentUser(req)
	state := "désactivé"
	if service.Active {
		state = "réactivé"
	}
	r.audit.Record(req, &caller.ID, "toggle_service", "service", &service.ID,
		fmt.Sprintf("Service %s %s", service.Code, state))
	respondJSON(w, http.StatusOK, service)
}

// UpdateStatusRequest carries a generic staff status update.
type UpdateStatusRequest struct {
	Status          models.Status `json:"status"`
	Comment         string        `json:"comment"`
	RejectionReason string        `json:"rejectionReason"`
}

// updateApplicationStatus applies the generic supervisor status update.
func (r *Router) updateApplicationStatus(w http.ResponseWriter, req *http.Request) {
	caller := middleware.CurrentUser(req)
	id, err := strconv.Atoi(mux.Vars(req)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Identifiant invalide")
		return
	}

	var in UpdateStatusRequest
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	app, err := r.engine.SetStatus(req.Context(), uint(id), caller, in.Status, in.Comment, in.RejectionReason, requestMeta(req))
	if err != nil {
		respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// listAuditLogs returns the audit trail, newest first, paginated.
func (r *Router) listAuditLogs(w http.ResponseWriter, req *http.Request) {
	limit := 100
	if v := req.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if v := req.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	query := r.db.Model(&models.AuditLog{})
	if action := req.URL.Query().Get("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if userID := req.URL.Query().Get("userId"); userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	var total int64
	query.Count(&total)

	var logs []models.AuditLog
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":  total,
		"limit":  limit,
		"offset": offset,
		"logs":   logs,
	})
}

// systemStatus reports coarse platform counters.
func (r *Router) systemStatus(w http.ResponseWriter, req *http.Request) {
	count := func(model interface{}) int64 {
		var n int64
		r.db.Model(model).Count(&n)
		return n
	}

	var since24h int64
	r.db.Model(&models.Application{}).
		Where("created_at > ?", time.Now().Add(-24*time.Hour)).Count(&since24h)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"users":             count(&models.User{}),
		"units":             count(&models.ConsularUnit{}),
		"applications":      count(&models.Application{}),
		"applications24h":   since24h,
		"pendingProcessing": r.countByStatus(models.StatusSubmitted) + r.countByStatus(models.StatusProcessing),
		"emailEnabled":      r.mailer != nil && r.mailer.Enabled(),
		"time":              time.Now().UTC(),
	})
}

func (r *Router) countByStatus(s models.Status) int64 {
	var n int64
	r.db.Model(&models.Application{}).Where("status = ?", s).Count(&n)
	return n
}

// listBackups returns the backups on disk.
func (r *Router) listBackups(w http.ResponseWriter, req *http.Request) {
	if r.backups == nil {
		respondError(w, http.StatusServiceUnavailable, "Sauvegardes non configurées")
		return
	}
	backups, err := r.backups.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}
	respondJSON(w, http.StatusOK, backups)
}

// createBackup runs pg_dump now.
func (r *Router) createBackup(w http.ResponseWriter, req *http.Request) {
	if r.backups == nil {
		respondError(w, http.StatusServiceUnavailable, "Sauvegardes non configurées")
		return
	}
	filename, err := r.backups.Create()
	if err != nil {
		log.Printf("⚠️ Backup: %v", err)
		respondError(w, http.StatusInternalServerError, "Échec de la sauvegarde")
		return
	}

	caller := middleware.CurrentUser(req)
	r.audit.Record(req, &caller.ID, "create_backup", "backup", nil, filename)
	respondJSON(w, http.StatusCreated, map[string]string{"filename": filename})
}

// restoreBackup replays a dump file.
func (r *Router) restoreBackup(w http.ResponseWriter, req *http.Request) {
	if r.backups == nil {
		respondError(w, http.StatusServiceUnavailable, "Sauvegardes non configurées")
		return
	}
	filename := mux.Vars(req)["filename"]
	if err := r.backups.Restore(filename); err != nil {
		log.Printf("⚠️ Restore %s: %v", filename, err)
		respondError(w, http.StatusBadRequest, "Échec de la restauration")
		return
	}

	caller := middleware.CurrentUser(req)
	r.audit.Record(req, &caller.ID, "restore_backup", "backup", nil, filename)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Restauration terminée", "filename": filename})
}

// testEmail sends a test message to the caller's address.
func (r *Router) testEmail(w http.ResponseWriter, req *http.Request) {
	caller := middleware.CurrentUser(req)
	if r.mailer == nil {
		respondError(w, http.StatusServiceUnavailable, "Email non configuré")
		return
	}

	err := r.mailer.Send(caller.FullName(), caller.Email,
		"Test e-Consulaire RDC",
		"<p>Ceci est un message de test de la plateforme e-Consulaire RDC.</p>")
	if err != nil {
		log.Printf("⚠️ Test email: %v", err)
		respondError(w, http.StatusInternalServerError, "Échec de l'envoi")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Email de test envoyé à " + caller.Email,
	})
}
