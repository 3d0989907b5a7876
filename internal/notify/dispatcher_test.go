package notify

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lexbridge/lexbridge-backend/pkg/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Fatal("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{}, &models.LawyerProfile{},
		&models.ClientRequest{}, &models.RequestHistory{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `
TRUNCATE TABLE
	request_histories,
	client_requests,
	lawyer_profiles,
	users
RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

func withTx(t *testing.T, db *gorm.DB, fn func(tx *gorm.DB)) {
	t.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback().Error
			panic(r)
		}
	}()
	fn(tx)
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("commit tx: %v", err)
	}
}

// recordingMailer captures every delivery so tests can assert on recipients.
type recordingMailer struct {
	mu       sync.Mutex
	created  []string // lawyer recipient addresses
	accepted []string // client recipient addresses
	rejected []string
	fail     bool
}

func (m *recordingMailer) NotifyLawyerOfNewRequest(to, _, _, _, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("provider down")
	}
	m.created = append(m.created, to)
	return nil
}

func (m *recordingMailer) NotifyClientOfAcceptance(to, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("provider down")
	}
	m.accepted = append(m.accepted, to)
	return nil
}

func (m *recordingMailer) NotifyClientOfRejection(to, _, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("provider down")
	}
	m.rejected = append(m.rejected, to)
	return nil
}

func seedRequest(t *testing.T, tx *gorm.DB, withLawyer bool) (reqID uuid.UUID, lawyerEmail, clientEmail string) {
	t.Helper()
	clientID := uuid.New()
	clientEmail = "client+" + uuid.NewString()[:8] + "@test.local"
	if err := tx.Create(&models.User{
		ID: clientID, Email: clientEmail, Name: "Client", Role: models.RoleClient,
	}).Error; err != nil {
		t.Fatal(err)
	}

	var lawyerID *uuid.UUID
	if withLawyer {
		id := uuid.New()
		lawyerEmail = "lawyer+" + uuid.NewString()[:8] + "@test.local"
		if err := tx.Create(&models.User{
			ID: id, Email: lawyerEmail, Name: "Lawyer", Role: models.RoleLawyer,
		}).Error; err != nil {
			t.Fatal(err)
		}
		lawyerID = &id
	}

	r := models.ClientRequest{
		ID:       uuid.New(),
		ClientID: clientID,
		LawyerID: lawyerID,
		Type:     models.RequestConsultation,
		Title:    "Tenancy question",
		Urgency:  models.UrgencyNormal,
		Status:   models.RequestPending,
	}
	if err := tx.Create(&r).Error; err != nil {
		t.Fatal(err)
	}
	return r.ID, lawyerEmail, clientEmail
}

// Created events go to the targeted lawyer; decisions go to the client.
func Test_Dispatcher_RoutesToCounterparty(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		id, lawyerEmail, clientEmail := seedRequest(t, tx, true)

		m := &recordingMailer{}
		d := NewDispatcher(tx, m)

		d.RequestCreated(id)
		d.RequestAccepted(id)
		d.RequestRejected(id)
		d.Flush()

		if len(m.created) != 1 || m.created[0] != lawyerEmail {
			t.Fatalf("created should mail the lawyer, got %v", m.created)
		}
		if len(m.accepted) != 1 || m.accepted[0] != clientEmail {
			t.Fatalf("accepted should mail the client, got %v", m.accepted)
		}
		if len(m.rejected) != 1 || m.rejected[0] != clientEmail {
			t.Fatalf("rejected should mail the client, got %v", m.rejected)
		}
	})
}

// An open request has no target lawyer, so a created event has no recipient
// and must be skipped silently.
func Test_Dispatcher_SkipsOpenRequestOnCreate(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		id, _, _ := seedRequest(t, tx, false)

		m := &recordingMailer{}
		d := NewDispatcher(tx, m)

		d.RequestCreated(id)
		d.Flush()

		if len(m.created) != 0 {
			t.Fatalf("no recipient expected, got %v", m.created)
		}
	})
}

// An event for a row that no longer exists resolves to nothing, not an error.
func Test_Dispatcher_SkipsMissingRow(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		m := &recordingMailer{}
		d := NewDispatcher(tx, m)

		d.RequestCreated(uuid.New())
		d.RequestAccepted(uuid.New())
		d.Flush()

		if len(m.created) != 0 || len(m.accepted) != 0 {
			t.Fatalf("stale events must be skipped, got %v / %v", m.created, m.accepted)
		}
	})
}

// Provider failures stay inside the dispatcher: no panic, Flush still returns.
func Test_Dispatcher_SwallowsProviderFailure(t *testing.T) {
	db := openTestDB(t)
	withTx(t, db, func(tx *gorm.DB) {
		id, _, _ := seedRequest(t, tx, true)

		m := &recordingMailer{fail: true}
		d := NewDispatcher(tx, m)

		d.RequestCreated(id)
		d.RequestAccepted(id)
		d.Flush()
	})
}

// A nil dispatcher and a nil mailer are both inert.
func Test_Dispatcher_NilSafe(t *testing.T) {
	var d *Dispatcher
	d.RequestCreated(uuid.New())

	d2 := NewDispatcher(nil, nil)
	d2.RequestAccepted(uuid.New())
	d2.Flush()
}
