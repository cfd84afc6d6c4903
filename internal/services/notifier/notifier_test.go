package notifier

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/models"
)

type recordingMailer struct {
	sent []string // "email|subject"
}

func (m *recordingMailer) Send(toName, toEmail, subject, htmlBody string) error {
	m.sent = append(m.sent, toEmail+"|"+subject)
	return nil
}

func setupNotifierDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ConsularUnit{}, &models.Application{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestApplicationSubmittedEmailsAgentsAndCitizen(t *testing.T) {
	db := setupNotifierDB(t)

	unit := models.ConsularUnit{Name: "Consulat Bruxelles", Type: "consulat", City: "Bruxelles", Country: "Belgique", PrimaryEmail: "bxl@econsulaire-rdc.com", PrimaryPhone: "+32"}
	if err := db.Create(&unit).Error; err != nil {
		t.Fatal(err)
	}
	citizen := models.User{Username: "c", Email: "citizen@example.com", PasswordHash: "x", FirstName: "C", LastName: "K", Role: models.RoleCitizen, Active: true}
	active := models.User{Username: "a1", Email: "active@example.com", PasswordHash: "x", FirstName: "A", LastName: "M", Role: models.RoleAgent, Active: true, ConsularUnitID: &unit.ID}
	inactive := models.User{Username: "a2", Email: "inactive@example.com", PasswordHash: "x", FirstName: "B", LastName: "N", Role: models.RoleAgent, Active: false, ConsularUnitID: &unit.ID}
	for _, u := range []*models.User{&citizen, &active, &inactive} {
		if err := db.Create(u).Error; err != nil {
			t.Fatal(err)
		}
	}

	app := models.Application{UserID: citizen.ID, ConsularUnitID: unit.ID, ServiceType: models.ServiceConsularCard, ReferenceNumber: "CAR2026123456", Status: models.StatusSubmitted}
	if err := db.Create(&app).Error; err != nil {
		t.Fatal(err)
	}

	mailer := &recordingMailer{}
	New(db, mailer, nil).ApplicationSubmitted(&app)

	if len(mailer.sent) != 2 {
		t.Fatalf("emails sent = %d (%v), want 2", len(mailer.sent), mailer.sent)
	}
	found := map[string]bool{}
	for _, s := range mailer.sent {
		found[s] = true
	}
	if !found["active@example.com|Nouvelle demande CAR2026123456"] {
		t.Errorf("active agent not emailed: %v", mailer.sent)
	}
	if !found["citizen@example.com|Confirmation de votre demande CAR2026123456"] {
		t.Errorf("citizen confirmation missing: %v", mailer.sent)
	}
	for _, s := range mailer.sent {
		if s == "inactive@example.com|Nouvelle demande CAR2026123456" {
			t.Error("inactive agent should not be emailed")
		}
	}
}

func TestStatusChangedEmailsOwnerWithReason(t *testing.T) {
	db := setupNotifierDB(t)

	citizen := models.User{Username: "c", Email: "citizen@example.com", PasswordHash: "x", FirstName: "C", LastName: "K", Role: models.RoleCitizen, Active: true}
	if err := db.Create(&citizen).Error; err != nil {
		t.Fatal(err)
	}
	app := models.Application{UserID: citizen.ID, ConsularUnitID: 1, ServiceType: models.ServicePassport, ReferenceNumber: "PAS2026654321", Status: models.StatusRejected, RejectionReason: "dossier incomplet"}
	if err := db.Create(&app).Error; err != nil {
		t.Fatal(err)
	}

	mailer := &recordingMailer{}
	New(db, mailer, nil).StatusChanged(&app, models.StatusProcessing, "")

	if len(mailer.sent) != 1 {
		t.Fatalf("emails sent = %d, want 1", len(mailer.sent))
	}
	if mailer.sent[0] != "citizen@example.com|Mise à jour de votre demande PAS2026654321" {
		t.Errorf("unexpected email: %s", mailer.sent[0])
	}
}
