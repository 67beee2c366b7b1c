package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/service"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	paymentService *service.PaymentService
}

func NewServer(paymentService *service.PaymentService) *Server {
	return &Server{paymentService: paymentService}
}

func (s *Server) InitializePayment(ctx context.Context, req *types.InitializePaymentRequest) (*types.InitializePaymentResponse, error) {
	l := loggerWithContext(ctx)
	if err := req.Validate(); err != nil {
		l.WithError(err).Debug("Initialize payment validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.paymentService.InitializePayment(ctx, req)
	if err != nil {
		return nil, s.statusError(ctx, err, "Initialize payment failed")
	}

	return mapper.InitializeResponse(item), nil
}

func (s *Server) VerifyPayment(ctx context.Context, req *types.VerifyPaymentRequest) (*types.VerifyPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	outcome, err := s.paymentService.VerifyPayment(ctx, req)
	if err != nil {
		return nil, s.statusError(ctx, err, "Verify payment failed")
	}

	return mapper.VerificationToProto(outcome), nil
}

func (s *Server) GetPayment(ctx context.Context, req *types.GetPaymentRequest) (*types.PaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.paymentService.GetPayment(ctx, req.GetReference())
	if err != nil {
		return nil, s.statusError(ctx, err, "Get payment failed")
	}

	return &types.PaymentResponse{Payment: mapper.PaymentToProto(item)}, nil
}

func (s *Server) InitiateRefund(ctx context.Context, req *types.InitiateRefundRequest) (*types.RefundResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	item, err := s.paymentService.InitiateRefund(ctx, req)
	if err != nil {
		return nil, s.statusError(ctx, err, "Initiate refund failed")
	}

	return &types.RefundResponse{Refund: mapper.RefundToProto(item)}, nil
}

func (s *Server) ListTransactions(ctx context.Context, req *types.ListTransactionsRequest) (*types.ListTransactionsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	items, err := s.paymentService.ListTransactions(ctx, req)
	if err != nil {
		return nil, s.statusError(ctx, err, "List transactions failed")
	}

	return &types.ListTransactionsResponse{
		Transactions: mapper.TransactionsToProto(items),
		Limit:        req.GetLimit(),
		Offset:       req.GetOffset(),
	}, nil
}

func (s *Server) statusError(ctx context.Context, err error, logMessage string) error {
	code := errorCode(err)
	if code == codes.Internal {
		loggerWithContext(ctx).WithError(err).Error(logMessage)
		return status.Error(codes.Internal, "internal server error")
	}
	return status.Error(code, err.Error())
}

func errorCode(err error) codes.Code {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrProviderUnsupported),
		errors.Is(err, service.ErrProviderUnavailable):
		return codes.InvalidArgument
	case errors.Is(err, service.ErrUnauthorized):
		return codes.Unauthenticated
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrTransactionNotFound):
		return codes.NotFound
	case errors.Is(err, service.ErrOrderNotPayable),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrPaymentNotRefundable),
		errors.Is(err, service.ErrRefundExceedsPayment):
		return codes.FailedPrecondition
	case errors.Is(err, service.ErrReconciliationAmbiguous):
		return codes.Aborted
	case errors.Is(err, service.ErrGatewayRejected):
		return codes.FailedPrecondition
	case errors.Is(err, service.ErrTransientNetwork):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
