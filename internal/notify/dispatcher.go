package notify

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lexbridge/lexbridge-backend/pkg/models"
)

// Mailer is the outbound email capability. Delivery outcomes are observed
// only by the dispatcher; nothing upstream ever waits on them.
type Mailer interface {
	NotifyLawyerOfNewRequest(to, lawyerName, clientName, title, description, urgency, category string) error
	NotifyClientOfAcceptance(to, clientName, lawyerName, title string) error
	NotifyClientOfRejection(to, clientName, lawyerName, title string) error
}

// Dispatcher delivers counterparty emails after a request transition has
// committed. Every event runs on its own goroutine; failures are logged and
// swallowed so a slow or broken mail provider can never delay or fail the
// transition the client saw succeed.
type Dispatcher struct {
	db     *gorm.DB
	mailer Mailer
	wg     sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, mailer Mailer) *Dispatcher {
	return &Dispatcher{db: db, mailer: mailer}
}

// Flush waits for in-flight deliveries. Tests and shutdown paths only.
func (d *Dispatcher) Flush() { d.wg.Wait() }

func (d *Dispatcher) dispatch(event string, id uuid.UUID, fn func(uuid.UUID) error) {
	if d == nil || d.mailer == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(id); err != nil {
			log.Printf("notify: %s for request %s: %v", event, id, err)
		}
	}()
}

// RequestCreated notifies the targeted lawyer about a new engagement request.
func (d *Dispatcher) RequestCreated(id uuid.UUID) {
	d.dispatch("created", id, d.sendCreated)
}

// RequestAccepted notifies the requesting client that the lawyer accepted.
func (d *Dispatcher) RequestAccepted(id uuid.UUID) {
	d.dispatch("accepted", id, func(id uuid.UUID) error { return d.sendDecision(id, true) })
}

// RequestRejected notifies the requesting client that the lawyer declined.
func (d *Dispatcher) RequestRejected(id uuid.UUID) {
	d.dispatch("rejected", id, func(id uuid.UUID) error { return d.sendDecision(id, false) })
}

func (d *Dispatcher) sendCreated(id uuid.UUID) error {
	var row struct {
		LawyerEmail  string
		LawyerName   string
		ClientName   string
		Title        string
		Description  string
		Urgency      string
		CaseCategory string
	}
	err := d.db.Table("client_requests").
		Select(`lawyers.email AS lawyer_email, lawyers.name AS lawyer_name,
	        clients.name AS client_name, client_requests.title, client_requests.description,
	        client_requests.urgency, client_requests.case_category`).
		Joins("JOIN users AS lawyers ON lawyers.id = client_requests.lawyer_id").
		Joins("JOIN users AS clients ON clients.id = client_requests.client_id").
		Where("client_requests.id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Stale linkage or open request: nobody to notify.
		return nil
	}
	if err != nil {
		return err
	}
	return d.mailer.NotifyLawyerOfNewRequest(
		row.LawyerEmail, row.LawyerName, row.ClientName,
		row.Title, row.Description, row.Urgency, row.CaseCategory,
	)
}

func (d *Dispatcher) sendDecision(id uuid.UUID, accepted bool) error {
	var row struct {
		ClientEmail string
		ClientName  string
		LawyerName  string
		Title       string
		Status      models.RequestStatus
	}
	err := d.db.Table("client_requests").
		Select(`clients.email AS client_email, clients.name AS client_name,
	        lawyers.name AS lawyer_name, client_requests.title, client_requests.status`).
		Joins("JOIN users AS clients ON clients.id = client_requests.client_id").
		Joins("JOIN users AS lawyers ON lawyers.id = client_requests.lawyer_id").
		Where("client_requests.id = ?", id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if accepted {
		return d.mailer.NotifyClientOfAcceptance(row.ClientEmail, row.ClientName, row.LawyerName, row.Title)
	}
	return d.mailer.NotifyClientOfRejection(row.ClientEmail, row.ClientName, row.LawyerName, row.Title)
}
