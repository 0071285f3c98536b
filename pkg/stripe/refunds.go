package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/resilience"
)

const defaultRefundTimeout = 20 * time.Second

// RefundRequest describes one refund against a captured payment intent.
type RefundRequest struct {
	PaymentReference string
	AmountMinor      int64
	Currency         enums.Currency
	IdempotencyKey   string
	Metadata         map[string]string
}

// Refund is the processor's acknowledgement of a refund.
type Refund struct {
	ID          string
	Status      string
	AmountMinor int64
}

type refundCreator func(ctx context.Context, params *stripe.RefundCreateParams) (*stripe.Refund, error)

// RefundClient issues connected-account refunds through a circuit breaker.
type RefundClient struct {
	create               refundCreator
	breaker              *resilience.Breaker
	timeout              time.Duration
	reverseTransfer      bool
	refundApplicationFee bool
	logg                 *logger.Logger
}

// NewRefundClient builds the refund client on top of an initialized Stripe client.
func NewRefundClient(client *Client, stripeCfg config.StripeConfig, refundCfg config.RefundsConfig, logg *logger.Logger) (*RefundClient, error) {
	if client == nil || client.api == nil {
		return nil, errors.New("stripe client required")
	}
	return newRefundClient(client.api.V1Refunds.Create, stripeCfg, refundCfg, logg), nil
}

func newRefundClient(create refundCreator, stripeCfg config.StripeConfig, refundCfg config.RefundsConfig, logg *logger.Logger) *RefundClient {
	timeout := refundCfg.ProcessorTimeout
	if timeout <= 0 {
		timeout = defaultRefundTimeout
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:             "stripe-refunds",
		FailureThreshold: refundCfg.BreakerFailureThreshold,
		OpenTimeout:      refundCfg.BreakerOpenTimeout,
		IsFailure:        countsAgainstBreaker,
	}, logg)
	return &RefundClient{
		create:               create,
		breaker:              breaker,
		timeout:              timeout,
		reverseTransfer:      stripeCfg.ReverseTransfer,
		refundApplicationFee: stripeCfg.RefundApplicationFee,
		logg:                 logg,
	}
}

// CreateRefund refunds AmountMinor of the payment intent. Every failure is a
// PAYMENT_PROCESSOR_ERROR carrying the processor's own message when it sent one.
func (c *RefundClient) CreateRefund(ctx context.Context, req RefundRequest) (Refund, error) {
	paymentIntent := strings.TrimSpace(req.PaymentReference)
	if paymentIntent == "" {
		return Refund{}, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if req.AmountMinor <= 0 {
		return Refund{}, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be greater than zero")
	}

	params := &stripe.RefundCreateParams{
		PaymentIntent:        stripe.String(paymentIntent),
		Amount:               stripe.Int64(req.AmountMinor),
		Reason:               stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
		ReverseTransfer:      stripe.Bool(c.reverseTransfer),
		RefundApplicationFee: stripe.Bool(c.refundApplicationFee),
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var refund *stripe.Refund
	err := c.breaker.Execute(callCtx, func(ctx context.Context) error {
		var callErr error
		refund, callErr = c.create(ctx, params)
		return callErr
	})
	if err != nil {
		return Refund{}, processorError(err)
	}
	if refund == nil {
		return Refund{}, pkgerrors.New(pkgerrors.CodeProcessor, "payment processor returned no refund")
	}

	if c.logg != nil {
		logCtx := c.logg.WithFields(ctx, map[string]any{
			"refund_id":      refund.ID,
			"payment_intent": paymentIntent,
			"amount_minor":   req.AmountMinor,
			"currency":       string(req.Currency),
			"refund_status":  string(refund.Status),
		})
		c.logg.Info(logCtx, "stripe refund created")
	}

	return Refund{
		ID:          refund.ID,
		Status:      string(refund.Status),
		AmountMinor: refund.Amount,
	}, nil
}

func processorError(err error) error {
	var stripeErr *stripe.Error
	switch {
	case errors.As(err, &stripeErr):
		msg := strings.TrimSpace(stripeErr.Msg)
		if msg == "" {
			msg = "payment processor rejected the refund"
		}
		return pkgerrors.Wrap(pkgerrors.CodeProcessor, err, msg).WithDetails(map[string]any{
			"processor_code": string(stripeErr.Code),
			"request_id":     stripeErr.RequestID,
		})
	case errors.Is(err, resilience.ErrCircuitOpen):
		return pkgerrors.Wrap(pkgerrors.CodeProcessor, err, "payment processor temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeProcessor, err, "payment processor timed out")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeProcessor, err, fmt.Sprintf("refund failed: %v", err))
	}
}

// countsAgainstBreaker ignores the processor's 4xx answers (declined, already
// refunded, bad request); those say nothing about processor health.
func countsAgainstBreaker(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		status := stripeErr.HTTPStatusCode
		return status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	}
	return true
}
