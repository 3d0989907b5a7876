package requests

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lexbridge/lexbridge-backend/internal/auth"
	"github.com/lexbridge/lexbridge-backend/internal/notify"
	"github.com/lexbridge/lexbridge-backend/pkg/models"
	"github.com/lexbridge/lexbridge-backend/pkg/sanitize"
	"github.com/lexbridge/lexbridge-backend/pkg/utils"
	"github.com/lexbridge/lexbridge-backend/pkg/validation"
)

type Handler struct {
	db     *gorm.DB
	store  *Store
	notify *notify.Dispatcher
}

func NewHandler(db *gorm.DB, n *notify.Dispatcher) *Handler {
	return &Handler{db: db, store: NewStore(db), notify: n}
}

/* =============================== Helpers ================================ */

// parseList reads limit/offset/status query params. Listings cap at 50 rows.
func parseList(c *fiber.Ctx) (limit, offset int, status models.RequestStatus, err error) {
	limit, _ = strconv.Atoi(c.Query("limit", "10"))
	offset, _ = strconv.Atoi(c.Query("offset", "0"))
	if limit < 1 || limit > 50 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	raw := strings.TrimSpace(c.Query("status"))
	if raw != "" {
		switch models.RequestStatus(raw) {
		case models.RequestPending, models.RequestAccepted, models.RequestRejected, models.RequestCancelled:
			status = models.RequestStatus(raw)
		default:
			err = fiber.NewError(fiber.StatusBadRequest, "invalid status filter")
		}
	}
	return
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+param)
	}
	return id, nil
}

// selfOrAdmin lets a subject read their own data and admins read anyone's.
func selfOrAdmin(c *fiber.Ctx, subject uuid.UUID) error {
	if auth.MustUserID(c) == subject.String() || auth.MustRole(c) == string(models.RoleAdmin) {
		return nil
	}
	return fiber.ErrForbidden
}

/* ================================ Create ================================ */

type CreateRequest struct {
	// A user ID (role lawyer) or a lawyer-profile ID; empty means an open
	// request with no target lawyer.
	LawyerID      string     `json:"lawyer_id"`
	Type          string     `json:"request_type" validate:"omitempty,oneof=consultation new_case second_opinion urgent"`
	Title         string     `json:"title" validate:"required,max=160"`
	Description   string     `json:"description" validate:"max=4000"`
	CaseCategory  string     `json:"case_category" validate:"max=60"`
	Urgency       string     `json:"urgency" validate:"omitempty,urgency"`
	BudgetMin     *int64     `json:"budget_min"`
	BudgetMax     *int64     `json:"budget_max"`
	PreferredDate *time.Time `json:"preferred_date"`
}

// Create Request godoc
// @Summary      Create engagement request
// @Description  Client sends an engagement request to a lawyer (or posts it open)
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateRequest  true  "Request payload"
// @Success      201  {object}  models.ClientRequest
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse  "lawyer reference not found"
// @Router       /requests [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	if strings.TrimSpace(in.Title) == "" {
		return validation.Respond(c, map[string][]string{"title": {"This field is required"}})
	}

	clientID, _ := uuid.Parse(auth.MustUserID(c))

	// Resolve the lawyer reference to a canonical user ID before anything is
	// written; downstream code never sees raw external references.
	var lawyerID *uuid.UUID
	if ref := strings.TrimSpace(in.LawyerID); ref != "" {
		id, err := ResolveLawyerRef(h.db, ref)
		if err != nil {
			return err
		}
		lawyerID = &id
	}

	reqType := models.RequestType(in.Type)
	if reqType == "" {
		reqType = models.RequestConsultation
	}

	r := models.ClientRequest{
		ClientID:     clientID,
		LawyerID:     lawyerID,
		Type:         reqType,
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		CaseCategory: strings.TrimSpace(in.CaseCategory),
		Urgency:      models.NormalizeUrgency(in.Urgency),
		BudgetMin:    in.BudgetMin,
		BudgetMax:    in.BudgetMax,
		PreferredAt:  in.PreferredDate,
		Status:       models.RequestPending,
	}
	if err := h.store.Create(&r); err != nil {
		return fiber.ErrInternalServerError
	}

	utils.LogRequestHistory(context.Background(), h.db, r.ID, clientID,
		"created", "", models.RequestPending, "")

	// Fire-and-forget: the transition already committed, delivery failures
	// stay inside the dispatcher.
	if h.notify != nil && r.LawyerID != nil {
		h.notify.RequestCreated(r.ID)
	}

	return c.Status(fiber.StatusCreated).JSON(r)
}

/* ================================= Get ================================== */

// Get Request godoc
// @Summary      Request detail
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "request id (uuid)"
// @Success      200  {object}  models.ClientRequest
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /requests/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	r, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	userID := auth.MustUserID(c)
	allowed := auth.MustRole(c) == string(models.RoleAdmin) ||
		r.ClientID.String() == userID ||
		(r.LawyerID != nil && r.LawyerID.String() == userID)
	if !allowed {
		return fiber.ErrForbidden
	}

	return c.JSON(r)
}

/* =============================== Listings =============================== */

// List By Client godoc
// @Summary      List a client's requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        clientID path  string true  "client id (uuid)"
// @Param        status   query string false "pending|accepted|rejected|cancelled"
// @Param        limit    query int    false "limit (max 50)"
// @Param        offset   query int    false "offset"
// @Success      200  {object}  map[string]any
// @Router       /requests/client/{clientID} [get]
func (h *Handler) ListByClient(c *fiber.Ctx) error {
	clientID, err := parseID(c, "clientID")
	if err != nil {
		return err
	}
	if err := selfOrAdmin(c, clientID); err != nil {
		return err
	}
	limit, offset, status, err := parseList(c)
	if err != nil {
		return err
	}

	total, err := h.store.CountByClient(clientID, status)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	items, err := h.store.ListByClient(clientID, status, limit, offset)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"total": total, "limit": limit, "offset": offset, "items": items})
}

// List By Lawyer godoc
// @Summary      List a lawyer's incoming requests (with requester identity)
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        lawyerID path  string true  "lawyer user id (uuid)"
// @Param        status   query string false "pending|accepted|rejected|cancelled"
// @Param        limit    query int    false "limit (max 50)"
// @Param        offset   query int    false "offset"
// @Success      200  {object}  map[string]any
// @Router       /requests/lawyer/{lawyerID} [get]
func (h *Handler) ListByLawyer(c *fiber.Ctx) error {
	lawyerID, err := parseID(c, "lawyerID")
	if err != nil {
		return err
	}
	if err := selfOrAdmin(c, lawyerID); err != nil {
		return err
	}
	limit, offset, status, err := parseList(c)
	if err != nil {
		return err
	}

	total, err := h.store.CountByLawyer(lawyerID, status)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	items, err := h.store.ListByLawyer(lawyerID, status, limit, offset)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{"total": total, "limit": limit, "offset": offset, "items": items})
}

// OpenBoardItem is an anonymized open request for the lawyer-facing board.
type OpenBoardItem struct {
	ID           uuid.UUID          `json:"id"`
	Type         models.RequestType `json:"request_type"`
	Title        string             `json:"title"`
	CaseCategory string             `json:"case_category"`
	Urgency      models.Urgency     `json:"urgency"`
	CreatedAt    time.Time          `json:"created_at"`
	Preview      string             `json:"preview"`
}

// List Open godoc
// @Summary      Open request board (anonymized)
// @Description  Lawyer browses requests with no target lawyer; previews are PII-redacted
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        category query string false "case category"
// @Param        limit    query int    false "limit (max 50)"
// @Param        offset   query int    false "offset"
// @Success      200  {object}  map[string]any
// @Router       /requests/open [get]
func (h *Handler) ListOpen(c *fiber.Ctx) error {
	limit, offset, _, err := parseList(c)
	if err != nil {
		return err
	}
	category := strings.TrimSpace(c.Query("category"))

	total, err := h.store.CountOpen(category)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	list, err := h.store.ListOpen(category, limit, offset)
	if err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]OpenBoardItem, 0, len(list))
	for _, r := range list {
		items = append(items, OpenBoardItem{
			ID:           r.ID,
			Type:         r.Type,
			Title:        r.Title,
			CaseCategory: r.CaseCategory,
			Urgency:      r.Urgency,
			CreatedAt:    r.CreatedAt,
			Preview:      sanitize.Summary(sanitize.RedactPII(r.Description), 240),
		})
	}

	return c.JSON(fiber.Map{"total": total, "limit": limit, "offset": offset, "items": items})
}

/* ============================== Transitions ============================= */

// Accept godoc
// @Summary      Accept a pending request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "request id (uuid)"
// @Success      200  {object}  models.ClientRequest
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "request is not pending"
// @Router       /requests/{id}/accept [post]
func (h *Handler) Accept(c *fiber.Ctx) error {
	return h.decide(c, models.RequestAccepted)
}

// Reject godoc
// @Summary      Reject a pending request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "request id (uuid)"
// @Success      200  {object}  models.ClientRequest
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "request is not pending"
// @Router       /requests/{id}/reject [post]
func (h *Handler) Reject(c *fiber.Ctx) error {
	return h.decide(c, models.RequestRejected)
}

func (h *Handler) decide(c *fiber.Ctx, to models.RequestStatus) error {
	lawyerID, _ := uuid.Parse(auth.MustUserID(c))
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	r, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	// Targeted requests may only be decided by their lawyer; an open request
	// is claimed by whoever decides it first.
	targeted := r.LawyerID != nil
	if targeted && *r.LawyerID != lawyerID {
		return fiber.ErrForbidden
	}

	// The WHERE status = 'pending' guard makes the transition atomic: two
	// concurrent decisions on the same row leave exactly one winner.
	affected, err := h.store.Decide(id, lawyerID, to, targeted)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if affected == 0 {
		return fiber.NewError(fiber.StatusConflict, "request is not pending")
	}

	utils.LogRequestHistory(context.Background(), h.db, id, lawyerID,
		string(to), models.RequestPending, to, "")

	if h.notify != nil {
		if to == models.RequestAccepted {
			h.notify.RequestAccepted(id)
		} else {
			h.notify.RequestRejected(id)
		}
	}

	out, err := h.store.Get(id)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(out)
}

// Cancel godoc
// @Summary      Cancel own pending request
// @Description  Only the owning client can cancel, and only while pending
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "request id (uuid)"
// @Success      200  {object}  models.ClientRequest
// @Failure      409  {object}  models.ErrorResponse  "not found or cannot be cancelled"
// @Router       /requests/{id}/cancel [post]
func (h *Handler) Cancel(c *fiber.Ctx) error {
	clientID, _ := uuid.Parse(auth.MustUserID(c))
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	affected, err := h.store.CancelOwned(id, clientID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if affected == 0 {
		// Deliberately vague: does not reveal whether the row is missing,
		// owned by someone else, or no longer pending.
		return fiber.NewError(fiber.StatusConflict, "not found or cannot be cancelled")
	}

	utils.LogRequestHistory(context.Background(), h.db, id, clientID,
		"cancelled", models.RequestPending, models.RequestCancelled, "")

	out, err := h.store.Get(id)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(out)
}

/* ============================ Content update ============================ */

type UpdateRequest struct {
	Type          *string    `json:"request_type" validate:"omitempty,oneof=consultation new_case second_opinion urgent"`
	Title         *string    `json:"title" validate:"omitempty,min=1,max=160"`
	Description   *string    `json:"description" validate:"omitempty,max=4000"`
	CaseCategory  *string    `json:"case_category" validate:"omitempty,max=60"`
	Urgency       *string    `json:"urgency" validate:"omitempty,urgency"`
	BudgetMin     *int64     `json:"budget_min"`
	BudgetMax     *int64     `json:"budget_max"`
	PreferredDate *time.Time `json:"preferred_date"`
}

// Update godoc
// @Summary      Update request content fields
// @Description  Owner or admin updates non-identity, non-status fields; an empty body is a no-op
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string        true "request id (uuid)"
// @Param        payload  body UpdateRequest true "Fields to change"
// @Success      200  {object}  models.ClientRequest
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /requests/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var in UpdateRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	r, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if err := selfOrAdmin(c, r.ClientID); err != nil {
		return err
	}

	// Fixed column allow-list; client_id, lawyer_id and status can never be
	// touched through this path.
	cols := map[string]any{}
	if in.Type != nil {
		cols["type"] = *in.Type
	}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return validation.Respond(c, map[string][]string{"title": {"This field is required"}})
		}
		cols["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		cols["description"] = strings.TrimSpace(*in.Description)
	}
	if in.CaseCategory != nil {
		cols["case_category"] = strings.TrimSpace(*in.CaseCategory)
	}
	if in.Urgency != nil {
		cols["urgency"] = models.NormalizeUrgency(*in.Urgency)
	}
	if in.BudgetMin != nil {
		cols["budget_min"] = *in.BudgetMin
	}
	if in.BudgetMax != nil {
		cols["budget_max"] = *in.BudgetMax
	}
	if in.PreferredDate != nil {
		cols["preferred_at"] = *in.PreferredDate
	}

	// Nothing to change: return the current row untouched.
	if len(cols) == 0 {
		return c.JSON(r)
	}

	if err := h.store.UpdateFields(id, cols); err != nil {
		return fiber.ErrInternalServerError
	}

	actorID, _ := uuid.Parse(auth.MustUserID(c))
	utils.LogRequestHistory(context.Background(), h.db, id, actorID,
		"updated", r.Status, r.Status, "")

	out, err := h.store.Get(id)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(out)
}

/* ================================ Delete ================================ */

// Delete godoc
// @Summary      Delete a request (admin)
// @Description  Unconditional hard delete, not state-gated
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "request id (uuid)"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  models.ErrorResponse
// @Router       /requests/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	affected, err := h.store.Delete(id)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if affected == 0 {
		return fiber.ErrNotFound
	}

	actorID, _ := uuid.Parse(auth.MustUserID(c))
	utils.LogRequestHistory(context.Background(), h.db, id, actorID,
		"deleted", "", "", "")

	return c.JSON(fiber.Map{"ok": true})
}

/* ================================ Stats ================================= */

// Client Stats godoc
// @Summary      Per-client request counts by status
// @Tags         stats
// @Security     BearerAuth
// @Produce      json
// @Param        clientID path string true "client id (uuid)"
// @Success      200  {object}  Stats
// @Router       /requests/client/{clientID}/stats [get]
func (h *Handler) ClientStats(c *fiber.Ctx) error {
	clientID, err := parseID(c, "clientID")
	if err != nil {
		return err
	}
	if err := selfOrAdmin(c, clientID); err != nil {
		return err
	}

	st, err := h.store.StatsForClient(clientID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(st)
}

// Lawyer Stats godoc
// @Summary      Per-lawyer request counts by status
// @Tags         stats
// @Security     BearerAuth
// @Produce      json
// @Param        lawyerID path string true "lawyer user id (uuid)"
// @Success      200  {object}  Stats
// @Router       /requests/lawyer/{lawyerID}/stats [get]
func (h *Handler) LawyerStats(c *fiber.Ctx) error {
	lawyerID, err := parseID(c, "lawyerID")
	if err != nil {
		return err
	}
	if err := selfOrAdmin(c, lawyerID); err != nil {
		return err
	}

	st, err := h.store.StatsForLawyer(lawyerID)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(st)
}
