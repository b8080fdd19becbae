package backend

import (
	"context"
	"fmt"
	"net/http"

	"favorsweb/internal/domain"
)

type PaymentsAPI struct{ c *Client }

func (p *PaymentsAPI) Create(ctx context.Context, req domain.CreatePaymentRequest) (domain.Payment, error) {
	if err := req.Validate(); err != nil {
		return domain.Payment{}, err
	}
	return doJSON[domain.Payment](ctx, p.c, call{
		op:     "payments.create",
		method: http.MethodPost,
		path:   "/payments",
		body:   req,
		auth:   true,
	})
}

func (p *PaymentsAPI) UpdateStatus(ctx context.Context, paymentID int64, req domain.UpdatePaymentStatusRequest) (domain.Payment, error) {
	if err := req.Validate(); err != nil {
		return domain.Payment{}, err
	}
	return doJSON[domain.Payment](ctx, p.c, call{
		op:     "payments.status",
		method: http.MethodPut,
		path:   fmt.Sprintf("/payments/%d/status", paymentID),
		body:   req,
		auth:   true,
	})
}

type ReviewsAPI struct{ c *Client }

func (r *ReviewsAPI) Create(ctx context.Context, req domain.CreateReviewRequest) (domain.Review, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return domain.Review{}, err
	}
	return doJSON[domain.Review](ctx, r.c, call{
		op:     "reviews.create",
		method: http.MethodPost,
		path:   "/reviews",
		body:   req,
		auth:   true,
	})
}
