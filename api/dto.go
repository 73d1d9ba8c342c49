package api

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/warp/leave-engine/leave"
)

// validate holds the shared DTO validator. Struct tags describe field-level
// constraints; everything semantic (dates, balances, transitions) belongs
// to the engine.
var validate = validator.New()

// =============================================================================
// REQUEST BODIES
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type CreateRequestBody struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
	Days      int    `json:"days" validate:"gte=0"`
	Type      string `json:"type" validate:"required,oneof=annual sick unpaid emergency"`
	Reason    string `json:"reason" validate:"required"`
}

type RejectRequestBody struct {
	Reason string `json:"reason" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type LoginResponse struct {
	Token    string      `json:"token"`
	Employee EmployeeDTO `json:"employee"`
}

type BalanceDTO struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

type EmployeeDTO struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Department string     `json:"department,omitempty"`
	Position   string     `json:"position,omitempty"`
	ManagerID  string     `json:"manager_id,omitempty"`
	Balance    BalanceDTO `json:"balance"`
	CreatedAt  string     `json:"created_at,omitempty"`
}

type LeaveRequestDTO struct {
	ID              string  `json:"id"`
	EmployeeID      string  `json:"employee_id"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	Days            int     `json:"days"`
	Type            string  `json:"type"`
	Reason          string  `json:"reason"`
	Status          string  `json:"status"`
	DecidedBy       string  `json:"decided_by,omitempty"`
	DecisionDate    *string `json:"decision_date,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

type BalanceEntryDTO struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	RequestID  string  `json:"request_id"`
	Delta      float64 `json:"delta"`
	Type       string  `json:"type"`
	Reason     string  `json:"reason,omitempty"`
	CreatedAt  string  `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toEmployeeDTO(e *leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:         e.ID,
		Name:       e.Name,
		Email:      e.Email,
		Role:       string(e.Role),
		Department: e.Department,
		Position:   e.Position,
		ManagerID:  e.ManagerID,
		Balance: BalanceDTO{
			Total:     e.Balance.Total,
			Used:      e.Balance.Used,
			Remaining: e.Balance.Remaining,
		},
		CreatedAt: formatOptionalTime(e.CreatedAt),
	}
}

func toRequestDTO(r *leave.LeaveRequest) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:              r.ID,
		EmployeeID:      r.EmployeeID,
		StartDate:       r.StartDate.Format("2006-01-02"),
		EndDate:         r.EndDate.Format("2006-01-02"),
		Days:            r.Days,
		Type:            string(r.Type),
		Reason:          r.Reason,
		Status:          string(r.Status),
		DecidedBy:       r.DecidedBy,
		RejectionReason: r.RejectionReason,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
	if r.DecisionDate != nil {
		s := r.DecisionDate.Format(time.RFC3339)
		dto.DecisionDate = &s
	}
	return dto
}

func toRequestDTOs(reqs []*leave.LeaveRequest) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toEntryDTO(e leave.BalanceEntry) BalanceEntryDTO {
	return BalanceEntryDTO{
		ID:         e.ID,
		EmployeeID: e.EmployeeID,
		RequestID:  e.RequestID,
		Delta:      e.Delta.InexactFloat64(),
		Type:       string(e.Type),
		Reason:     e.Reason,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []leave.BalanceEntry) []BalanceEntryDTO {
	dtos := make([]BalanceEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
