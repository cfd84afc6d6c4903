package handlers

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/econsulaire/portal/internal/middleware"
	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/utils"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a citizen registration request
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

// login handles the citizen portal login
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	r.handleLogin(w, req, models.RoleCitizen)
}

// adminLogin handles the supervisor portal login
func (r *Router) adminLogin(w http.ResponseWriter, req *http.Request) {
	r.handleLogin(w, req, models.RoleSupervisor)
}

// consulateLogin handles the staff portal login (agents and unit admins)
func (r *Router) consulateLogin(w http.ResponseWriter, req *http.Request) {
	r.handleLogin(w, req, models.RoleAgent, models.RoleAdmin)
}

// handleLogin is the shared credential check. Each portal only admits its
// enumerated roles; the rate limiter counts failures per client address.
func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request, roles ...models.Role) {
	var loginReq LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	key := clientIP(req)
	now := time.Now()
	if r.logins != nil && !r.logins.Allowed(key, now) {
		respondError(w, http.StatusTooManyRequests, "Trop de tentatives, réessayez plus tard")
		return
	}

	fail := func() {
		if r.logins != nil {
			r.logins.RecordFailure(key, now)
		}
		respondError(w, http.StatusUnauthorized, "Identifiants invalides")
	}

	// 1. Find user
	var user models.User
	if err := r.db.Where("email = ?", loginReq.Email).First(&user).Error; err != nil {
		fail()
		return
	}

	// 2. Check password
	if !utils.CheckPasswordHash(loginReq.Password, user.PasswordHash) {
		fail()
		return
	}

	// 3. Role must match the portal
	allowed := false
	for _, role := range roles {
		if user.Role == role {
			allowed = true
			break
		}
	}
	if !allowed || !user.Active {
		fail()
		return
	}

	if r.logins != nil {
		r.logins.Reset(key)
	}

	// 4. Update last login
	now = time.Now()
	user.LastLogin = &now
	r.db.Save(&user)

	// 5. Generate tokens
	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur de génération du jeton")
		return
	}

	r.audit.Record(req, &user.ID, "login", "user", &user.ID, "Connexion réussie")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// register handles citizen registration
func (r *Router) register(w http.ResponseWriter, req *http.Request) {
	var regReq RegisterRequest
	if err := json.NewDecoder(req.Body).Decode(&regReq); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	if regReq.Username == "" || regReq.Email == "" || regReq.Password == "" ||
		regReq.FirstName == "" || regReq.LastName == "" {
		respondError(w, http.StatusBadRequest, "Champs obligatoires manquants")
		return
	}
	if len(regReq.Password) < 8 {
		respondError(w, http.StatusBadRequest, "Le mot de passe doit contenir au moins 8 caractères")
		return
	}

	hashedPassword, err := utils.HashPassword(regReq.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	user := models.User{
		Username:     regReq.Username,
		Email:        regReq.Email,
		PasswordHash: hashedPassword,
		FirstName:    regReq.FirstName,
		LastName:     regReq.LastName,
		Phone:        regReq.Phone,
		Role:         models.RoleCitizen,
		Active:       true,
	}

	if err := r.db.Create(&user).Error; err != nil {
		respondError(w, http.StatusBadRequest, "Email ou nom d'utilisateur déjà utilisé")
		return
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&user, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Compte créé mais la connexion a échoué")
		return
	}

	r.audit.Record(req, &user.ID, "register", "user", &user.ID, "Compte usager créé")

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Compte créé avec succès",
		"tokens": map[string]string{
			"accessToken":  accessToken,
			"refreshToken": refreshToken,
		},
		"user": user,
	})
}

// logout handles user logout
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Déconnexion réussie"})
}

// getProfile returns the authenticated user's profile
func (r *Router) getProfile(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, middleware.CurrentUser(req))
}

// ProfileRequest carries the editable profile fields.
type ProfileRequest struct {
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	MiddleName  string     `json:"middleName"`
	Phone       string     `json:"phone"`
	Gender      string     `json:"gender"`
	BirthDate   *time.Time `json:"birthDate"`
	BirthPlace  string     `json:"birthPlace"`
	CivilStatus string     `json:"civilStatus"`
	Nationality string     `json:"nationality"`
	Profession  string     `json:"profession"`
	Street      string     `json:"street"`
	City        string     `json:"city"`
	Country     string     `json:"country"`
	PostalCode  string     `json:"postalCode"`

	PassportNumber  string     `json:"passportNumber"`
	PassportIssued  *time.Time `json:"passportIssued"`
	PassportExpires *time.Time `json:"passportExpires"`
}

// updateProfile updates the authenticated user's profile and recomputes
// profile completeness.
func (r *Router) updateProfile(w http.ResponseWriter, req *http.Request) {
	user := middleware.CurrentUser(req)

	var p ProfileRequest
	if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
		respondError(w, http.StatusBadRequest, "Requête invalide")
		return
	}

	user.FirstName = p.FirstName
	user.LastName = p.LastName
	user.MiddleName = p.MiddleName
	user.Phone = p.Phone
	user.Gender = p.Gender
	user.BirthDate = p.BirthDate
	user.BirthPlace = p.BirthPlace
	user.CivilStatus = p.CivilStatus
	if p.Nationality != "" {
		user.Nationality = p.Nationality
	}
	user.Profession = p.Profession
	user.Street = p.Street
	user.City = p.City
	user.Country = p.Country
	user.PostalCode = p.PostalCode
	user.PassportNumber = p.PassportNumber
	user.PassportIssued = p.PassportIssued
	user.PassportExpires = p.PassportExpires

	user.ProfileComplete = user.FirstName != "" && user.LastName != "" &&
		user.Phone != "" && user.BirthDate != nil && user.BirthPlace != "" &&
		user.Gender != "" && user.Street != "" && user.City != "" && user.Country != ""

	if err := r.db.Save(user).Error; err != nil {
		log.Printf("⚠️ Profile update for user %d: %v", user.ID, err)
		respondError(w, http.StatusInternalServerError, "Erreur interne")
		return
	}

	respondJSON(w, http.StatusOK, user)
}

// clientIP identifies the caller for rate limiting.
func clientIP(req *http.Request) string {
	if fwd := req.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
