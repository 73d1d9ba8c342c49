/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the engine via REST. Handlers parse and validate input, resolve
  the actor from the auth middleware, delegate to the engine and map typed
  domain failures onto HTTP statuses. No business rule lives here.

ENDPOINTS:
  Auth:
    POST   /api/auth/login           Exchange credentials for a JWT

  Requests (authenticated):
    GET    /api/requests             List requests visible to the actor
    POST   /api/requests             Submit a leave request
    POST   /api/requests/{id}/approve
    POST   /api/requests/{id}/reject
    POST   /api/requests/{id}/cancel

  Self:
    GET    /api/me                   Actor's employee record
    GET    /api/me/balance           Actor's balance
    GET    /api/me/trail             Actor's balance trail

  Directory:
    GET    /api/employees            All employees (hr/admin only)

ERROR MAPPING:
  400 invalid input    403 forbidden            404 not found
  409 invalid state / lost race                 422 insufficient balance
  503 store unavailable                         500 everything else

SEE ALSO:
  - dto.go:    request/response shapes
  - auth.go:   token issuance and actor resolution
  - server.go: router and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/leave-engine/events"
	"github.com/warp/leave-engine/leave"
)

// EmployeeStore is the directory surface the API needs beyond the engine:
// credential lookup for login and listing for the hr/admin view. Both
// store implementations satisfy it.
type EmployeeStore interface {
	GetEmployee(ctx context.Context, id string) (*leave.Employee, error)
	FindEmployeeByEmail(ctx context.Context, email string) (*leave.Employee, error)
	ListEmployees(ctx context.Context) ([]*leave.Employee, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	engine    *leave.Engine
	employees EmployeeStore
	publisher events.Publisher
	logger    *zap.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
}

func NewHandler(engine *leave.Engine, employees EmployeeStore, jwtSecret []byte, tokenTTL time.Duration, logger *zap.Logger, publisher events.Publisher) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Handler{
		engine:    engine,
		employees: employees,
		publisher: publisher,
		logger:    logger,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// =============================================================================
// AUTH
// =============================================================================

// Login exchanges email+password for a JWT.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body LoginRequest
	if !decodeBody(w, r, &body) {
		return
	}

	emp, err := h.employees.FindEmployeeByEmail(r.Context(), body.Email)
	if err != nil {
		if leave.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "invalid credentials", nil)
			return
		}
		h.writeDomainError(w, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(emp.PasswordHash), []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}

	token, err := IssueToken(h.jwtSecret, emp, h.tokenTTL, time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Employee: toEmployeeDTO(emp)})
}

// =============================================================================
// REQUESTS
// =============================================================================

// ListRequests returns the requests visible to the actor, newest first.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.engine.ListRequests(r.Context(), actorID(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(reqs))
}

// CreateRequest submits a new leave request owned by the actor.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var body CreateRequestBody
	if !decodeBody(w, r, &body) {
		return
	}

	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_date (use YYYY-MM-DD)", err)
		return
	}

	req, err := h.engine.CreateRequest(r.Context(), actorID(r), leave.CreateInput{
		StartDate: start,
		EndDate:   end,
		Days:      body.Days,
		Type:      leave.LeaveType(body.Type),
		Reason:    body.Reason,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// ApproveRequest approves a pending request.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.DecideRequest(r.Context(), actorID(r), chi.URLParam(r, "id"), leave.DecisionApprove, "")
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.publishDecision(r, req)
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// RejectRequest rejects a pending request with a reason.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var body RejectRequestBody
	if !decodeBody(w, r, &body) {
		return
	}

	req, err := h.engine.DecideRequest(r.Context(), actorID(r), chi.URLParam(r, "id"), leave.DecisionReject, body.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.publishDecision(r, req)
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// CancelRequest cancels a pending or approved request.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.CancelRequest(r.Context(), actorID(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.publishDecision(r, req)
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// SELF
// =============================================================================

// Me returns the actor's employee record.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	emp, err := h.employees.GetEmployee(r.Context(), actorID(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// MeBalance returns the actor's balance.
func (h *Handler) MeBalance(w http.ResponseWriter, r *http.Request) {
	emp, err := h.employees.GetEmployee(r.Context(), actorID(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		Total:     emp.Balance.Total,
		Used:      emp.Balance.Used,
		Remaining: emp.Balance.Remaining,
	})
}

// MeTrail returns the actor's balance trail, oldest first.
func (h *Handler) MeTrail(w http.ResponseWriter, r *http.Request) {
	id := actorID(r)
	entries, err := h.engine.Trail(r.Context(), id, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// =============================================================================
// DIRECTORY
// =============================================================================

// ListEmployees returns all employees. Restricted to hr/admin.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	actor, err := h.employees.GetEmployee(r.Context(), actorID(r))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if actor.Role != leave.RoleHR && actor.Role != leave.RoleAdmin {
		writeError(w, http.StatusForbidden, "hr or admin role required", nil)
		return
	}

	emps, err := h.employees.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]EmployeeDTO, len(emps))
	for i, e := range emps {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) publishDecision(r *http.Request, req *leave.LeaveRequest) {
	evt := events.NewDecision(req, actorID(r), req.UpdatedAt)
	if err := h.publisher.Publish(r.Context(), evt); err != nil {
		h.logger.Warn("failed to publish decision event",
			zap.String("request_id", req.ID),
			zap.String("status", string(req.Status)),
			zap.Error(err))
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, leave.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, leave.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, leave.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, leave.ErrInvalidState), errors.Is(err, leave.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, leave.ErrInsufficientBalance):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.Is(err, leave.ErrStoreUnavailable):
		h.logger.Error("store unavailable", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "storage temporarily unavailable", nil)
	default:
		h.logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
