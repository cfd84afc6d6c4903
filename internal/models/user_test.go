package models

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&User{}, &ConsularUnit{}, &Service{}, &UnitService{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestInactiveUserStaysInactive(t *testing.T) {
	db := openTestDB(t)

	user := User{
		Username: "dormant", Email: "dormant@example.com", PasswordHash: "x",
		FirstName: "D", LastName: "K", Role: RoleCitizen, Active: false,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	var stored User
	if err := db.First(&stored, user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.Active {
		t.Error("user created with Active=false was stored active")
	}
}

func TestActiveFlagRoundTrips(t *testing.T) {
	db := openTestDB(t)

	unit := ConsularUnit{
		Name: "Consulat ferme", Type: "consulat", City: "Anvers", Country: "Belgique",
		PrimaryEmail: "anvers@econsulaire-rdc.com", PrimaryPhone: "+3200000000",
		Active: false,
	}
	if err := db.Create(&unit).Error; err != nil {
		t.Fatalf("create unit: %v", err)
	}

	service := Service{Code: "service_inactif", Name: "Service inactif", BaseFee: 10, ProcessingDays: 1, Active: false}
	if err := db.Create(&service).Error; err != nil {
		t.Fatalf("create service: %v", err)
	}

	cfg := UnitService{ConsularUnitID: unit.ID, ServiceID: service.ID, Fee: 10, Currency: "EUR", Active: false}
	if err := db.Create(&cfg).Error; err != nil {
		t.Fatalf("create unit service: %v", err)
	}

	var storedUnit ConsularUnit
	var storedService Service
	var storedCfg UnitService
	if err := db.First(&storedUnit, unit.ID).Error; err != nil {
		t.Fatalf("reload unit: %v", err)
	}
	if err := db.First(&storedService, service.ID).Error; err != nil {
		t.Fatalf("reload service: %v", err)
	}
	if err := db.First(&storedCfg, cfg.ID).Error; err != nil {
		t.Fatalf("reload unit service: %v", err)
	}
	if storedUnit.Active || storedService.Active || storedCfg.Active {
		t.Errorf("inactive flags did not round trip: unit=%v service=%v config=%v",
			storedUnit.Active, storedService.Active, storedCfg.Active)
	}
}
