package requests

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lexbridge/lexbridge-backend/pkg/models"
)

// Store owns the client_requests table. List and count queries for the same
// subject go through the same scope function, so their predicates can never
// drift apart.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

/* =============================== Scopes ================================= */

func clientScope(clientID uuid.UUID, status models.RequestStatus) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("client_requests.client_id = ?", clientID)
		if status != "" {
			q = q.Where("client_requests.status = ?", status)
		}
		return q
	}
}

func lawyerScope(lawyerID uuid.UUID, status models.RequestStatus) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("client_requests.lawyer_id = ?", lawyerID)
		if status != "" {
			q = q.Where("client_requests.status = ?", status)
		}
		return q
	}
}

func openScope(category string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		q = q.Where("client_requests.status = ? AND client_requests.lawyer_id IS NULL", models.RequestPending)
		if category != "" {
			q = q.Where("client_requests.case_category = ?", category)
		}
		return q
	}
}

/* ============================= Basic CRUD =============================== */

func (s *Store) Create(r *models.ClientRequest) error {
	return s.db.Create(r).Error
}

// Get returns gorm.ErrRecordNotFound unchanged when the row is missing.
func (s *Store) Get(id uuid.UUID) (*models.ClientRequest, error) {
	var r models.ClientRequest
	if err := s.db.First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete is a hard delete, not state-gated. Returns rows affected.
func (s *Store) Delete(id uuid.UUID) (int64, error) {
	res := s.db.Delete(&models.ClientRequest{}, "id = ?", id)
	return res.RowsAffected, res.Error
}

// UpdateFields applies an allow-listed column map and bumps updated_at.
// The caller is responsible for only putting fixed column names in cols.
func (s *Store) UpdateFields(id uuid.UUID, cols map[string]any) error {
	cols["updated_at"] = time.Now()
	return s.db.Model(&models.ClientRequest{}).Where("id = ?", id).Updates(cols).Error
}

/* ============================ Transitions =============================== */

// Decide flips a pending request to accepted or rejected in one conditional
// UPDATE. For a targeted request the lawyer must match; an open request is
// claimed by the deciding lawyer. Zero rows affected means the guard failed
// (row gone, not pending, or raced away) — the caller maps that to an error.
func (s *Store) Decide(id, lawyerID uuid.UUID, to models.RequestStatus, targeted bool) (int64, error) {
	q := s.db.Model(&models.ClientRequest{}).
		Where("id = ? AND status = ?", id, models.RequestPending)
	if targeted {
		q = q.Where("lawyer_id = ?", lawyerID)
	} else {
		q = q.Where("lawyer_id IS NULL")
	}
	res := q.Updates(map[string]any{
		"status":     to,
		"lawyer_id":  lawyerID,
		"updated_at": time.Now(),
	})
	return res.RowsAffected, res.Error
}

// CancelOwned cancels a pending request owned by clientID. A single guard
// covers existence, ownership and state; zero rows affected does not reveal
// which precondition failed.
func (s *Store) CancelOwned(id, clientID uuid.UUID) (int64, error) {
	res := s.db.Model(&models.ClientRequest{}).
		Where("id = ? AND client_id = ? AND status = ?", id, clientID, models.RequestPending).
		Updates(map[string]any{
			"status":     models.RequestCancelled,
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

/* ============================== Listings ================================ */

func (s *Store) ListByClient(clientID uuid.UUID, status models.RequestStatus, limit, offset int) ([]models.ClientRequest, error) {
	var rows []models.ClientRequest
	err := s.db.Model(&models.ClientRequest{}).
		Scopes(clientScope(clientID, status)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if rows == nil {
		rows = []models.ClientRequest{}
	}
	return rows, err
}

func (s *Store) CountByClient(clientID uuid.UUID, status models.RequestStatus) (int64, error) {
	var total int64
	err := s.db.Model(&models.ClientRequest{}).
		Scopes(clientScope(clientID, status)).
		Count(&total).Error
	return total, err
}

// LawyerQueueItem is a request row joined with the requester's identity, the
// shape a lawyer's inbox renders.
type LawyerQueueItem struct {
	ID           uuid.UUID            `json:"id"`
	ClientID     uuid.UUID            `json:"client_id"`
	ClientName   string               `json:"client_name"`
	ClientEmail  string               `json:"client_email"`
	Type         models.RequestType   `json:"request_type"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	CaseCategory string               `json:"case_category"`
	Urgency      models.Urgency       `json:"urgency"`
	Status       models.RequestStatus `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

func (s *Store) ListByLawyer(lawyerID uuid.UUID, status models.RequestStatus, limit, offset int) ([]LawyerQueueItem, error) {
	rows := make([]LawyerQueueItem, 0, limit)
	err := s.db.Table("client_requests").
		Select(`client_requests.id, client_requests.client_id, users.name AS client_name,
	        users.email AS client_email, client_requests.type, client_requests.title,
	        client_requests.description, client_requests.case_category, client_requests.urgency,
	        client_requests.status, client_requests.created_at, client_requests.updated_at`).
		Joins("JOIN users ON users.id = client_requests.client_id").
		Scopes(lawyerScope(lawyerID, status)).
		Order("client_requests.created_at DESC").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	return rows, err
}

func (s *Store) CountByLawyer(lawyerID uuid.UUID, status models.RequestStatus) (int64, error) {
	var total int64
	err := s.db.Model(&models.ClientRequest{}).
		Scopes(lawyerScope(lawyerID, status)).
		Count(&total).Error
	return total, err
}

// CountPendingByLawyer is the badge count for a lawyer's inbox.
func (s *Store) CountPendingByLawyer(lawyerID uuid.UUID) (int64, error) {
	return s.CountByLawyer(lawyerID, models.RequestPending)
}

func (s *Store) ListOpen(category string, limit, offset int) ([]models.ClientRequest, error) {
	var rows []models.ClientRequest
	err := s.db.Model(&models.ClientRequest{}).
		Scopes(openScope(category)).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if rows == nil {
		rows = []models.ClientRequest{}
	}
	return rows, err
}

func (s *Store) CountOpen(category string) (int64, error) {
	var total int64
	err := s.db.Model(&models.ClientRequest{}).
		Scopes(openScope(category)).
		Count(&total).Error
	return total, err
}

/* ================================ Stats ================================= */

// Stats is the per-subject status breakdown for dashboards.
type Stats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Cancelled int64 `json:"cancelled"`
}

func (s *Store) statsOf(scope func(*gorm.DB) *gorm.DB) (Stats, error) {
	var rows []struct {
		Status models.RequestStatus
		N      int64
	}
	err := s.db.Model(&models.ClientRequest{}).
		Scopes(scope).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	for _, r := range rows {
		st.Total += r.N
		switch r.Status {
		case models.RequestPending:
			st.Pending = r.N
		case models.RequestAccepted:
			st.Accepted = r.N
		case models.RequestRejected:
			st.Rejected = r.N
		case models.RequestCancelled:
			st.Cancelled = r.N
		}
	}
	return st, nil
}

func (s *Store) StatsForClient(clientID uuid.UUID) (Stats, error) {
	return s.statsOf(clientScope(clientID, ""))
}

func (s *Store) StatsForLawyer(lawyerID uuid.UUID) (Stats, error) {
	return s.statsOf(lawyerScope(lawyerID, ""))
}
