package models

import (
	"time"

	"github.com/google/uuid"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleClient Role = "client"
	RoleLawyer Role = "lawyer"
	RoleAdmin  Role = "admin"
)

// RequestType classifies what the client is asking for.
type RequestType string

const (
	RequestConsultation  RequestType = "consultation"
	RequestNewCase       RequestType = "new_case"
	RequestSecondOpinion RequestType = "second_opinion"
	RequestUrgent        RequestType = "urgent"
)

// Urgency is how quickly the client needs an answer.
// "normal" is the canonical default; the legacy "medium" literal is accepted
// on input and normalized before anything is stored.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// NormalizeUrgency maps input aliases onto the canonical set and applies the
// default when the field was omitted.
func NormalizeUrgency(s string) Urgency {
	switch Urgency(s) {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyUrgent:
		return Urgency(s)
	}
	// older clients still send "medium"; empty means "use the default"
	return UrgencyNormal
}

// RequestStatus defines lifecycle states for an engagement request.
// pending is the only non-terminal state.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestCancelled RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transition is permitted.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestAccepted || s == RequestRejected || s == RequestCancelled
}

/* =============================== Entities =============================== */

// User represents a client, lawyer, or back-office admin.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         Role      `gorm:"type:varchar(20);not null" json:"role"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// LawyerProfile is the public profile of a lawyer, keyed by its own ID and
// linked to the user table. Callers sometimes pass this ID where a user ID is
// expected; the resolver in internal/requests maps it back to UserID.
type LawyerProfile struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID          uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	Jurisdiction    string    `json:"jurisdiction"`
	BarNumber       string    `json:"bar_number"`
	Bio             string    `gorm:"type:text" json:"bio"`
	HourlyRateCents int       `json:"hourly_rate_cents"` // stored in cents to avoid float issues
	CreatedAt       time.Time `json:"created_at"`
}

// ClientRequest is a client's ask for a lawyer's services.
// LawyerID is nil for an open request (no lawyer specified at creation);
// otherwise it always holds a canonical user ID, never a profile ID.
type ClientRequest struct {
	ID           uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ClientID     uuid.UUID     `gorm:"type:uuid;not null;index" json:"client_id"`
	LawyerID     *uuid.UUID    `gorm:"type:uuid;index" json:"lawyer_id"`
	Type         RequestType   `gorm:"type:varchar(20);not null;default:'consultation'" json:"request_type"`
	Title        string        `gorm:"not null" json:"title"`
	Description  string        `gorm:"type:text" json:"description"`
	CaseCategory string        `json:"case_category"`
	Urgency      Urgency       `gorm:"type:varchar(10);not null;default:'normal'" json:"urgency"`
	BudgetMin    *int64        `json:"budget_min"`
	BudgetMax    *int64        `json:"budget_max"` // no min<=max invariant; mirrors what clients actually send
	PreferredAt  *time.Time    `json:"preferred_date"`
	Status       RequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// RequestHistory is an audit log entry for request status changes.
type RequestHistory struct {
	ID        uuid.UUID     `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID uuid.UUID     `gorm:"type:uuid;not null;index"`
	ActorID   uuid.UUID     `gorm:"type:uuid;not null;index"` // who performed the action (client/lawyer/admin)
	Action    string        `gorm:"type:varchar(50);not null"` // e.g. created, accepted, rejected, cancelled, updated, deleted
	OldStatus RequestStatus `gorm:"type:varchar(20)"`
	NewStatus RequestStatus `gorm:"type:varchar(20)"`
	Reason    string        `gorm:"type:text"`
	CreatedAt time.Time     `gorm:"autoCreateTime"`
}
