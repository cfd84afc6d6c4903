package main

import (
	"context"
	"fmt"
	"log"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/config"
	"github.com/econsulaire/portal/internal/database"
	"github.com/econsulaire/portal/internal/models"
	"github.com/econsulaire/portal/internal/utils"
	"github.com/econsulaire/portal/internal/workflow"
)

func main() {
	fmt.Println("🌱 e-Consulaire Demo Data Seeder")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")

	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.User{},
		&models.ConsularUnit{},
		&models.Service{},
		&models.UnitService{},
		&models.Application{},
		&models.StatusHistory{},
		&models.Document{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")

	var userCount int64
	db.Model(&models.User{}).Count(&userCount)
	if userCount > 0 {
		fmt.Printf("⚠️  Database already has %d users. Aborting to avoid duplicates.\n", userCount)
		return
	}

	fmt.Println("📦 Creating demo data...")

	// 1. Service catalog
	services := []models.Service{
		{Code: models.ServiceConsularCard, Name: "Carte Consulaire", Description: "Carte d'immatriculation consulaire", BaseFee: 50, ProcessingDays: 7, RequiredDocuments: "Passeport, photo d'identité, justificatif de domicile"},
		{Code: models.ServiceCareAttestation, Name: "Attestation de Prise en Charge", BaseFee: 30, ProcessingDays: 5, RequiredDocuments: "Pièce d'identité, justificatif de revenus"},
		{Code: models.ServiceLegalizations, Name: "Légalisations", BaseFee: 20, ProcessingDays: 3, RequiredDocuments: "Document original à légaliser"},
		{Code: models.ServicePassport, Name: "Passeport", BaseFee: 100, ProcessingDays: 21, RequiredDocuments: "Ancien passeport, acte de naissance, photos"},
		{Code: models.ServiceCivilStatus, Name: "Acte d'État Civil", BaseFee: 25, ProcessingDays: 10, RequiredDocuments: "Pièce d'identité"},
		{Code: models.ServicePowerAttorney, Name: "Procuration", BaseFee: 40, ProcessingDays: 5, RequiredDocuments: "Pièce d'identité des deux parties"},
		{Code: models.ServiceOtherDocuments, Name: "Autres Documents", BaseFee: 15, ProcessingDays: 7},
	}
	for i := range services {
		services[i].Active = true
		if err := db.Create(&services[i]).Error; err != nil {
			log.Fatalf("❌ Seed service %s: %v", services[i].Code, err)
		}
	}
	fmt.Printf("✅ %d services created\n", len(services))

	// 2. Supervisor
	supervisor := createUser(db.DB, "superviseur", "superviseur@econsulaire-rdc.com", "Supervision2026!", "Grace", "Lusamba", models.RoleSupervisor, nil)

	// 3. Consular units
	paris := models.ConsularUnit{
		Name: "Ambassade de la RDC en France", Type: "ambassade",
		City: "Paris", Country: "France", CountryCode: "FR",
		HeadName: "Isabel Machik Ruth Tshombe", HeadTitle: "Ambassadrice",
		PrimaryEmail: "paris@econsulaire-rdc.com", PrimaryPhone: "+33142256157",
		Street: "32 Cours Albert 1er", AddressCity: "Paris", PostalCode: "75008",
		Timezone: "Europe/Paris", Active: true, CreatedBy: supervisor.ID,
	}
	brussels := models.ConsularUnit{
		Name: "Ambassade de la RDC en Belgique", Type: "ambassade",
		City: "Bruxelles", Country: "Belgique", CountryCode: "BE",
		PrimaryEmail: "bruxelles@econsulaire-rdc.com", PrimaryPhone: "+3225381860",
		Street: "30 Rue Marie de Bourgogne", AddressCity: "Bruxelles", PostalCode: "1000",
		Timezone: "Europe/Brussels", Active: true, CreatedBy: supervisor.ID,
	}
	for _, u := range []*models.ConsularUnit{&paris, &brussels} {
		if err := db.Create(u).Error; err != nil {
			log.Fatalf("❌ Seed unit %s: %v", u.Name, err)
		}
	}
	fmt.Println("✅ 2 consular units created")

	// 4. Paris service configuration, two fees overridden
	for i := range services {
		fee := services[i].BaseFee
		switch services[i].Code {
		case models.ServiceConsularCard:
			fee = 55
		case models.ServicePassport:
			fee = 120
		}
		row := models.UnitService{
			ConsularUnitID: paris.ID, ServiceID: services[i].ID,
			Fee: fee, Currency: "EUR", Active: true, ConfiguredBy: supervisor.ID,
		}
		if err := db.Create(&row).Error; err != nil {
			log.Fatalf("❌ Seed unit service: %v", err)
		}
	}
	fmt.Println("✅ Paris service configuration created")

	// 5. Staff and citizens
	createUser(db.DB, "admin.paris", "admin.paris@econsulaire-rdc.com", "AdminParis2026!", "Jean-Pierre", "Mbemba", models.RoleAdmin, &paris.ID)
	agent := createUser(db.DB, "agent.kalala", "agent.kalala@econsulaire-rdc.com", "AgentParis2026!", "Didier", "Kalala", models.RoleAgent, &paris.ID)
	createUser(db.DB, "agent.mujinga", "agent.mujinga@econsulaire-rdc.com", "AgentParis2026!", "Sarah", "Mujinga", models.RoleAgent, &paris.ID)
	citizen := createUser(db.DB, "jkabongo", "j.kabongo@example.com", "Usager2026!", "Joseph", "Kabongo", models.RoleCitizen, nil)
	fmt.Println("✅ Staff and citizen accounts created")

	// 6. Demo applications through the real workflow
	engine := workflow.NewEngine(db.DB, workflow.Config{AllowReopen: cfg.Workflow.AllowReopen})
	ctx := context.Background()

	app1, err := engine.Submit(ctx, workflow.SubmitInput{
		User: citizen, UnitID: paris.ID, ServiceType: models.ServiceConsularCard,
		FormData: datatypes.JSON([]byte(`{"motif":"premiere demande"}`)), Fee: 55,
	})
	if err != nil {
		log.Fatalf("❌ Seed application: %v", err)
	}
	app2, err := engine.Submit(ctx, workflow.SubmitInput{
		User: citizen, UnitID: paris.ID, ServiceType: models.ServicePassport,
		FormData: datatypes.JSON([]byte(`{"motif":"renouvellement"}`)), Fee: 120,
	})
	if err != nil {
		log.Fatalf("❌ Seed application: %v", err)
	}

	// One left pending, one taken and rejected
	if _, err := engine.Take(ctx, app2.ID, agent, workflow.Meta{}); err != nil {
		log.Fatalf("❌ Seed take: %v", err)
	}
	if _, err := engine.Process(ctx, app2.ID, agent, workflow.ActionReject, "Photos non conformes aux normes", workflow.Meta{}); err != nil {
		log.Fatalf("❌ Seed process: %v", err)
	}
	fmt.Printf("✅ Demo applications created (%s pending, %s rejected)\n", app1.ReferenceNumber, app2.ReferenceNumber)

	fmt.Println()
	fmt.Println("🎉 Seeding complete. Demo accounts:")
	fmt.Println("   superviseur@econsulaire-rdc.com / Supervision2026!")
	fmt.Println("   admin.paris@econsulaire-rdc.com / AdminParis2026!")
	fmt.Println("   agent.kalala@econsulaire-rdc.com / AgentParis2026!")
	fmt.Println("   j.kabongo@example.com / Usager2026!")
}

func createUser(db *gorm.DB, username, email, password, first, last string, role models.Role, unitID *uint) *models.User {
	hash, err := utils.HashPassword(password)
	if err != nil {
		log.Fatalf("❌ Hash password: %v", err)
	}
	user := &models.User{
		Username: username, Email: email, PasswordHash: hash,
		FirstName: first, LastName: last, Role: role, Active: true,
		ConsularUnitID: unitID, ProfileComplete: role != models.RoleCitizen,
	}
	if err := db.Create(user).Error; err != nil {
		log.Fatalf("❌ Seed user %s: %v", username, err)
	}
	return user
}
