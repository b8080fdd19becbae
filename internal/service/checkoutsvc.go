package service

import (
	"context"
	"errors"
	"log/slog"

	"favorsweb/internal/domain"
)

type PaymentsAPI interface {
	Create(ctx context.Context, req domain.CreatePaymentRequest) (domain.Payment, error)
	UpdateStatus(ctx context.Context, paymentID int64, req domain.UpdatePaymentStatusRequest) (domain.Payment, error)
}

// PaymentConfirmer completes a card payment with the processor given the
// client secret issued for it.
type PaymentConfirmer interface {
	Confirm(ctx context.Context, clientSecret string) error
}

// ErrManualStatus is returned by Checkout.Pay when the backend issued no
// client secret (or no confirmer is configured); the caller then reports the
// outcome itself with Checkout.Report.
var ErrManualStatus = errors.New("payment needs a manual status update")

type Checkout struct {
	Payments  PaymentsAPI
	Confirmer PaymentConfirmer
	Logger    *slog.Logger
}

// Pay creates the payment and, when possible, confirms it with the processor
// and reports the result to the backend. A processor failure is reported as
// FAILED and the returned payment reflects that.
func (c *Checkout) Pay(ctx context.Context, req domain.CreatePaymentRequest) (domain.Payment, error) {
	created, err := c.Payments.Create(ctx, req)
	if err != nil {
		return domain.Payment{}, err
	}
	if created.StripeClientSecret == "" || c.Confirmer == nil {
		return created, ErrManualStatus
	}

	update := domain.UpdatePaymentStatusRequest{Status: domain.PaymentStatusSucceeded}
	if err := c.Confirmer.Confirm(ctx, created.StripeClientSecret); err != nil {
		logger := c.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("payment confirmation failed", "payment_id", created.ID, "err", err)
		update = domain.UpdatePaymentStatusRequest{Status: domain.PaymentStatusFailed, ErrorMessage: err.Error()}
	}
	return c.Payments.UpdateStatus(ctx, created.ID, update)
}

// Report records a manually chosen outcome for a payment.
func (c *Checkout) Report(ctx context.Context, paymentID int64, status domain.PaymentStatus, message string) (domain.Payment, error) {
	return c.Payments.UpdateStatus(ctx, paymentID, domain.UpdatePaymentStatusRequest{Status: status, ErrorMessage: message})
}
