package workflow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"
	"unicode/utf8"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/econsulaire/portal/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.ConsularUnit{}, &models.Service{}, &models.UnitService{},
		&models.Application{}, &models.StatusHistory{}, &models.Document{},
		&models.Notification{}, &models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedUnitAndUsers(t *testing.T, db *gorm.DB) (unit models.ConsularUnit, citizen, agentA, agentB models.User) {
	t.Helper()
	unit = models.ConsularUnit{
		Name: "Ambassade de la RDC en France", Type: "ambassade",
		City: "Paris", Country: "France",
		PrimaryEmail: "paris@econsulaire-rdc.com", PrimaryPhone: "+33100000000",
		CreatedBy: 1,
	}
	if err := db.Create(&unit).Error; err != nil {
		t.Fatalf("unit: %v", err)
	}

	citizen = models.User{
		Username: "jkabila", Email: "citizen@example.com", PasswordHash: "x",
		FirstName: "Jean", LastName: "Kabila", Role: models.RoleCitizen, Active: true,
	}
	agentA = models.User{
		Username: "agent.a", Email: "agent.a@example.com", PasswordHash: "x",
		FirstName: "Alice", LastName: "Mwamba", Role: models.RoleAgent, Active: true,
		ConsularUnitID: &unit.ID,
	}
	agentB = models.User{
		Username: "agent.b", Email: "agent.b@example.com", PasswordHash: "x",
		FirstName: "Benoit", LastName: "Ilunga", Role: models.RoleAgent, Active: true,
		ConsularUnitID: &unit.ID,
	}
	for _, u := range []*models.User{&citizen, &agentA, &agentB} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("user: %v", err)
		}
	}
	return unit, citizen, agentA, agentB
}

func submitTestApplication(t *testing.T, e *Engine, citizen *models.User, unitID uint) *models.Application {
	t.Helper()
	app, err := e.Submit(context.Background(), SubmitInput{
		User:        citizen,
		UnitID:      unitID,
		ServiceType: models.ServiceConsularCard,
		Fee:         50,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return app
}

func TestGenerateReferenceFormat(t *testing.T) {
	ref := GenerateReference(models.ServiceConsularCard, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if matched, _ := regexp.MatchString(`^CAR2026\d{6}$`, ref); !matched {
		t.Errorf("unexpected reference %q", ref)
	}

	ref = GenerateReference(models.ServicePassport, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if matched, _ := regexp.MatchString(`^PAS2026\d{6}$`, ref); !matched {
		t.Errorf("unexpected reference %q", ref)
	}

	// Accented codes keep whole runes in the prefix.
	ref = GenerateReference("état_civil", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if !utf8.ValidString(ref) {
		t.Errorf("reference %q is not valid UTF-8", ref)
	}
	if matched, _ := regexp.MatchString(`^ÉTA2026\d{6}$`, ref); !matched {
		t.Errorf("unexpected reference %q", ref)
	}
}

func TestSubmitCreatesHistoryAndFanOut(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, agentA, agentB := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})

	app := submitTestApplication(t, e, &citizen, unit.ID)

	if matched, _ := regexp.MatchString(`^CAR\d{4}\d{6}$`, app.ReferenceNumber); !matched {
		t.Errorf("reference %q does not match CAR pattern", app.ReferenceNumber)
	}
	if app.Status != models.StatusSubmitted {
		t.Errorf("status = %s, want soumise", app.Status)
	}

	var histCount int64
	db.Model(&models.StatusHistory{}).Where("application_id = ?", app.ID).Count(&histCount)
	if histCount != 1 {
		t.Errorf("history rows = %d, want 1", histCount)
	}
	var first models.StatusHistory
	db.Where("application_id = ?", app.ID).First(&first)
	if first.OldStatus != nil {
		t.Errorf("initial history old status should be nil, got %v", *first.OldStatus)
	}
	if first.NewStatus != models.StatusSubmitted {
		t.Errorf("initial history new status = %s", first.NewStatus)
	}

	// One notification per active agent of the unit.
	for _, ag := range []models.User{agentA, agentB} {
		var n int64
		db.Model(&models.Notification{}).
			Where("user_id = ? AND type = ? AND reference_id = ?", ag.ID, models.NotificationNewApplication, app.ID).
			Count(&n)
		if n != 1 {
			t.Errorf("agent %s notifications = %d, want 1", ag.Username, n)
		}
	}
}

func TestSubmitRetriesOnReferenceCollision(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, _, _ := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})

	// Force the first generation to collide with an existing reference.
	orig := randomDigits
	defer func() { randomDigits = orig }()

	existing := fmt.Sprintf("CAR%d111111", time.Now().Year())
	seedApp := models.Application{
		UserID: citizen.ID, ConsularUnitID: unit.ID,
		ServiceType: models.ServiceConsularCard, ReferenceNumber: existing,
		Status: models.StatusSubmitted,
	}
	if err := db.Create(&seedApp).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	calls := 0
	randomDigits = func(n int) string {
		calls++
		if calls == 1 {
			return "111111"
		}
		return "222222"
	}

	app := submitTestApplication(t, e, &citizen, unit.ID)
	if app.ReferenceNumber == existing {
		t.Fatalf("collision was not retried: %s", app.ReferenceNumber)
	}
	if calls < 2 {
		t.Errorf("expected at least 2 generation attempts, got %d", calls)
	}
}

func TestTakeWrongUnitRejected(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, _, _ := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})
	app := submitTestApplication(t, e, &citizen, unit.ID)

	otherUnit := models.ConsularUnit{
		Name: "Consulat de la RDC à Bruxelles", Type: "consulat",
		City: "Bruxelles", Country: "Belgique",
		PrimaryEmail: "bxl@econsulaire-rdc.com", PrimaryPhone: "+3220000000",
		CreatedBy: 1,
	}
	if err := db.Create(&otherUnit).Error; err != nil {
		t.Fatalf("unit: %v", err)
	}
	outsider := models.User{
		Username: "agent.c", Email: "agent.c@example.com", PasswordHash: "x",
		FirstName: "Chantal", LastName: "Ngalula", Role: models.RoleAgent, Active: true,
		ConsularUnitID: &otherUnit.ID,
	}
	if err := db.Create(&outsider).Error; err != nil {
		t.Fatalf("user: %v", err)
	}

	if _, err := e.Take(context.Background(), app.ID, &outsider, Meta{}); !errors.Is(err, ErrWrongUnit) {
		t.Errorf("take from other unit: got %v, want ErrWrongUnit", err)
	}
}

func TestTakeIsExclusive(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, agentA, agentB := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})
	app := submitTestApplication(t, e, &citizen, unit.ID)

	taken, err := e.Take(context.Background(), app.ID, &agentA, Meta{})
	if err != nil {
		t.Fatalf("first take: %v", err)
	}
	if taken.Status != models.StatusProcessing {
		t.Errorf("status = %s, want en_traitement", taken.Status)
	}
	if taken.ProcessedBy == nil || *taken.ProcessedBy != agentA.ID {
		t.Error("processor not recorded")
	}

	var histCount int64
	db.Model(&models.StatusHistory{}).Where("application_id = ?", app.ID).Count(&histCount)
	if histCount != 2 {
		t.Errorf("history rows = %d, want 2", histCount)
	}

	// The second take must fail deterministically.
	if _, err := e.Take(context.Background(), app.ID, &agentB, Meta{}); !errors.Is(err, ErrAlreadyTaken) {
		t.Errorf("second take: got %v, want ErrAlreadyTaken", err)
	}
}

func TestProcessRequiresComment(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, agentA, _ := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})
	app := submitTestApplication(t, e, &citizen, unit.ID)
	if _, err := e.Take(context.Background(), app.ID, &agentA, Meta{}); err != nil {
		t.Fatalf("take: %v", err)
	}

	for _, comment := range []string{"", "   ", "\t\n"} {
		for _, action := range []Action{ActionApprove, ActionReject, ActionClose} {
			if _, err := e.Process(context.Background(), app.ID, &agentA, action, comment, Meta{}); !errors.Is(err, ErrCommentRequired) {
				t.Errorf("action %s comment %q: got %v, want ErrCommentRequired", action, comment, err)
			}
		}
	}
}

func TestProcessOnlyByAssignedAgent(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, agentA, agentB := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})
	app := submitTestApplication(t, e, &citizen, unit.ID)
	if _, err := e.Take(context.Background(), app.ID, &agentA, Meta{}); err != nil {
		t.Fatalf("take: %v", err)
	}

	if _, err := e.Process(context.Background(), app.ID, &agentB, ActionApprove, "ok", Meta{}); !errors.Is(err, ErrNotProcessor) {
		t.Errorf("process by other agent: got %v, want ErrNotProcessor", err)
	}
}

func TestProcessRejectStoresReason(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, agentA, _ := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})
	app := submitTestApplication(t, e, &citizen, unit.ID)
	if _, err := e.Take(context.Background(), app.ID, &agentA, Meta{}); err != nil {
		t.Fatalf("take: %v", err)
	}

	comment := "missing documents"
	out, err := e.Process(context.Background(), app.ID, &agentA, ActionReject, comment, Meta{})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out.Status != models.StatusRejected {
		t.Errorf("status = %s, want rejetee", out.Status)
	}

	var stored models.Application
	db.First(&stored, app.ID)
	if stored.RejectionReason != comment {
		t.Errorf("rejection reason = %q, want %q", stored.RejectionReason, comment)
	}

	// Owning citizen got exactly one status-change notification.
	var n int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", citizen.ID, models.NotificationStatusChange).
		Count(&n)
	if n != 1 {
		t.Errorf("citizen notifications = %d, want 1", n)
	}
}

func TestProcessInvalidAction(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, agentA, _ := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})
	app := submitTestApplication(t, e, &citizen, unit.ID)
	if _, err := e.Take(context.Background(), app.ID, &agentA, Meta{}); err != nil {
		t.Fatalf("take: %v", err)
	}

	if _, err := e.Process(context.Background(), app.ID, &agentA, Action("escalate"), "hm", Meta{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("unknown action: got %v, want ErrInvalidTransition", err)
	}

	// take is not a process action either
	if _, err := e.Process(context.Background(), app.ID, &agentA, ActionTake, "hm", Meta{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("take as process action: got %v, want ErrInvalidTransition", err)
	}
}

func TestTerminalStatesStayTerminal(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, agentA, _ := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})
	supervisor := models.User{
		Username: "sup", Email: "sup@example.com", PasswordHash: "x",
		FirstName: "Sylvie", LastName: "Tshisekedi", Role: models.RoleSupervisor, Active: true,
	}
	if err := db.Create(&supervisor).Error; err != nil {
		t.Fatalf("user: %v", err)
	}

	app := submitTestApplication(t, e, &citizen, unit.ID)
	if _, err := e.Take(context.Background(), app.ID, &agentA, Meta{}); err != nil {
		t.Fatalf("take: %v", err)
	}
	if _, err := e.Process(context.Background(), app.ID, &agentA, ActionReject, "incomplet", Meta{}); err != nil {
		t.Fatalf("process: %v", err)
	}

	// Agent can no longer act on a rejected file.
	if _, err := e.Process(context.Background(), app.ID, &agentA, ActionApprove, "retry", Meta{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("process after terminal: got %v, want ErrInvalidTransition", err)
	}

	// Generic staff update refuses too while reopening is disabled.
	if _, err := e.SetStatus(context.Background(), app.ID, &supervisor, models.StatusProcessing, "", "", Meta{}); !errors.Is(err, ErrTerminalState) {
		t.Errorf("set status on terminal: got %v, want ErrTerminalState", err)
	}

	// With reopening enabled the legacy behavior is preserved.
	reopening := NewEngine(db, Config{AllowReopen: true})
	if _, err := reopening.SetStatus(context.Background(), app.ID, &supervisor, models.StatusProcessing, "réouverture", "", Meta{}); err != nil {
		t.Errorf("reopen with AllowReopen: %v", err)
	}
}

func TestSetStatusRejectsNonCanonical(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, _, _ := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})
	supervisor := models.User{
		Username: "sup", Email: "sup@example.com", PasswordHash: "x",
		FirstName: "S", LastName: "T", Role: models.RoleSupervisor, Active: true,
	}
	if err := db.Create(&supervisor).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	app := submitTestApplication(t, e, &citizen, unit.ID)

	if _, err := e.SetStatus(context.Background(), app.ID, &supervisor, models.Status("archivee"), "", "", Meta{}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bogus status: got %v, want ErrInvalidStatus", err)
	}
	if _, err := e.SetStatus(context.Background(), app.ID, &supervisor, models.StatusClosed, "", "", Meta{}); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("cloture via generic endpoint: got %v, want ErrInvalidStatus", err)
	}
}

type fakeDocGen struct {
	path string
	size int64
	err  error
}

func (f *fakeDocGen) GenerateOfficial(app *models.Application, applicant *models.User) (string, int64, error) {
	return f.path, f.size, f.err
}

func TestApprovalAttachesOfficialDocument(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, _, _ := seedUnitAndUsers(t, db)
	supervisor := models.User{
		Username: "sup", Email: "sup@example.com", PasswordHash: "x",
		FirstName: "S", LastName: "T", Role: models.RoleSupervisor, Active: true,
	}
	if err := db.Create(&supervisor).Error; err != nil {
		t.Fatalf("user: %v", err)
	}

	e := NewEngine(db, Config{})
	e.SetDocumentGenerator(&fakeDocGen{path: "/tmp/doc_TEST.pdf", size: 2048})

	app := submitTestApplication(t, e, &citizen, unit.ID)
	if _, err := e.SetStatus(context.Background(), app.ID, &supervisor, models.StatusApproved, "ok", "", Meta{}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	var docs []models.Document
	db.Where("application_id = ? AND document_type = ?", app.ID, models.DocumentTypeOfficial).Find(&docs)
	if len(docs) != 1 {
		t.Fatalf("official documents = %d, want 1", len(docs))
	}
	if docs[0].MimeType != "application/pdf" {
		t.Errorf("mime = %s", docs[0].MimeType)
	}
}

func TestApprovalCommitsWhenPDFFails(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, _, _ := seedUnitAndUsers(t, db)
	supervisor := models.User{
		Username: "sup", Email: "sup@example.com", PasswordHash: "x",
		FirstName: "S", LastName: "T", Role: models.RoleSupervisor, Active: true,
	}
	if err := db.Create(&supervisor).Error; err != nil {
		t.Fatalf("user: %v", err)
	}

	e := NewEngine(db, Config{})
	e.SetDocumentGenerator(&fakeDocGen{err: errors.New("font missing")})

	app := submitTestApplication(t, e, &citizen, unit.ID)
	if _, err := e.SetStatus(context.Background(), app.ID, &supervisor, models.StatusApproved, "ok", "", Meta{}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	var stored models.Application
	db.First(&stored, app.ID)
	if stored.Status != models.StatusApproved {
		t.Errorf("status = %s, want validee despite PDF failure", stored.Status)
	}

	var docCount int64
	db.Model(&models.Document{}).Where("application_id = ?", app.ID).Count(&docCount)
	if docCount != 0 {
		t.Errorf("documents = %d, want 0 when generation fails", docCount)
	}
}

func TestAuditTrailWritten(t *testing.T) {
	db := setupTestDB(t)
	unit, citizen, agentA, _ := seedUnitAndUsers(t, db)
	e := NewEngine(db, Config{})

	app := submitTestApplication(t, e, &citizen, unit.ID)
	if _, err := e.Take(context.Background(), app.ID, &agentA, Meta{IPAddress: "10.0.0.9", UserAgent: "test"}); err != nil {
		t.Fatalf("take: %v", err)
	}
	if _, err := e.Process(context.Background(), app.ID, &agentA, ActionApprove, "dossier complet", Meta{}); err != nil {
		t.Fatalf("process: %v", err)
	}

	var actions []string
	db.Model(&models.AuditLog{}).Where("resource_id = ?", app.ID).Order("id").Pluck("action", &actions)
	want := []string{"create_application", "take_application", "approve_application"}
	if len(actions) != len(want) {
		t.Fatalf("audit actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Errorf("audit[%d] = %s, want %s", i, actions[i], want[i])
		}
	}

	var takeRow models.AuditLog
	db.Where("action = ?", "take_application").First(&takeRow)
	if takeRow.IPAddress != "10.0.0.9" {
		t.Errorf("audit IP = %q", takeRow.IPAddress)
	}
}
