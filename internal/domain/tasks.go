package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

type TaskStatus string

const (
	TaskStatusAccepted   TaskStatus = "ACCEPTED"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

type TaskAssignment struct {
	ID          int64      `json:"id"`
	Post        Post       `json:"post"`
	Accepter    User       `json:"accepter"`
	AcceptedAt  Timestamp  `json:"acceptedAt"`
	Status      TaskStatus `json:"status"`
	CompletedAt *Timestamp `json:"completedAt,omitempty"`
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

type Payment struct {
	ID                    int64           `json:"id"`
	Post                  Post            `json:"post"`
	Payer                 User            `json:"payer"`
	Payee                 User            `json:"payee"`
	Amount                decimal.Decimal `json:"amount"`
	Status                PaymentStatus   `json:"status"`
	StripePaymentIntentID string          `json:"stripePaymentIntentId,omitempty"`
	StripeClientSecret    string          `json:"stripeClientSecret,omitempty"`
	CreatedAt             Timestamp       `json:"createdAt"`
}

type CreatePaymentRequest struct {
	PostID                int64           `json:"postId"`
	PayeeID               int64           `json:"payeeId"`
	Amount                decimal.Decimal `json:"amount"`
	StripePaymentIntentID string          `json:"stripePaymentIntentId,omitempty"`
}

func (r CreatePaymentRequest) Validate() error {
	fields := map[string]string{}
	if r.PostID <= 0 {
		fields["postId"] = "required"
	}
	if r.PayeeID <= 0 {
		fields["payeeId"] = "required"
	}
	if !r.Amount.IsPositive() {
		fields["amount"] = "must be > 0"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

type UpdatePaymentStatusRequest struct {
	Status       PaymentStatus `json:"status"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

func (r UpdatePaymentStatusRequest) Validate() error {
	switch r.Status {
	case PaymentStatusSucceeded, PaymentStatusFailed:
		return nil
	}
	return NewValidationError(map[string]string{"status": "must be SUCCEEDED or FAILED"})
}

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID             int64          `json:"id"`
	TaskAssignment TaskAssignment `json:"taskAssignment"`
	Reviewer       User           `json:"reviewer"`
	Reviewee       User           `json:"reviewee"`
	Rating         int            `json:"rating"`
	Comment        string         `json:"comment,omitempty"`
	CreatedAt      Timestamp      `json:"createdAt"`
}

type CreateReviewRequest struct {
	TaskAssignmentID int64  `json:"taskAssignmentId"`
	Rating           int    `json:"rating"`
	Comment          string `json:"comment,omitempty"`
}

func (r CreateReviewRequest) Validate() error {
	fields := map[string]string{}
	if r.TaskAssignmentID <= 0 {
		fields["taskAssignmentId"] = "required"
	}
	if r.Rating < MinRating || r.Rating > MaxRating {
		fields["rating"] = "must be between 1 and 5"
	}
	if len(fields) > 0 {
		return NewValidationError(fields)
	}
	return nil
}

func (r CreateReviewRequest) Normalize() CreateReviewRequest {
	r.Comment = strings.TrimSpace(r.Comment)
	return r
}
