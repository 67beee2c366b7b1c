package grpc

import (
	"context"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/types"
	"google.golang.org/grpc"
)

const serviceName = "payments.PaymentsService"

type PaymentsServiceServer interface {
	InitializePayment(context.Context, *types.InitializePaymentRequest) (*types.InitializePaymentResponse, error)
	VerifyPayment(context.Context, *types.VerifyPaymentRequest) (*types.VerifyPaymentResponse, error)
	GetPayment(context.Context, *types.GetPaymentRequest) (*types.PaymentResponse, error)
	InitiateRefund(context.Context, *types.InitiateRefundRequest) (*types.RefundResponse, error)
	ListTransactions(context.Context, *types.ListTransactionsRequest) (*types.ListTransactionsResponse, error)
}

func unaryHandler[Req any, Resp any](method string, call func(PaymentsServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PaymentsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(PaymentsServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var PaymentsServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PaymentsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "InitializePayment", Handler: unaryHandler("InitializePayment", PaymentsServiceServer.InitializePayment)},
		{MethodName: "VerifyPayment", Handler: unaryHandler("VerifyPayment", PaymentsServiceServer.VerifyPayment)},
		{MethodName: "GetPayment", Handler: unaryHandler("GetPayment", PaymentsServiceServer.GetPayment)},
		{MethodName: "InitiateRefund", Handler: unaryHandler("InitiateRefund", PaymentsServiceServer.InitiateRefund)},
		{MethodName: "ListTransactions", Handler: unaryHandler("ListTransactions", PaymentsServiceServer.ListTransactions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "payments.proto",
}

func RegisterPaymentsServiceServer(s grpc.ServiceRegistrar, srv PaymentsServiceServer) {
	s.RegisterService(&PaymentsServiceDesc, srv)
}

// PaymentsServiceClient calls PaymentsService with the JSON codec.
type PaymentsServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentsServiceClient(cc grpc.ClientConnInterface) *PaymentsServiceClient {
	return &PaymentsServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in interface{}, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PaymentsServiceClient) InitializePayment(ctx context.Context, in *types.InitializePaymentRequest, opts ...grpc.CallOption) (*types.InitializePaymentResponse, error) {
	return invoke[types.InitializePaymentResponse](ctx, c.cc, "InitializePayment", in, opts)
}

func (c *PaymentsServiceClient) VerifyPayment(ctx context.Context, in *types.VerifyPaymentRequest, opts ...grpc.CallOption) (*types.VerifyPaymentResponse, error) {
	return invoke[types.VerifyPaymentResponse](ctx, c.cc, "VerifyPayment", in, opts)
}

func (c *PaymentsServiceClient) GetPayment(ctx context.Context, in *types.GetPaymentRequest, opts ...grpc.CallOption) (*types.PaymentResponse, error) {
	return invoke[types.PaymentResponse](ctx, c.cc, "GetPayment", in, opts)
}

func (c *PaymentsServiceClient) InitiateRefund(ctx context.Context, in *types.InitiateRefundRequest, opts ...grpc.CallOption) (*types.RefundResponse, error) {
	return invoke[types.RefundResponse](ctx, c.cc, "InitiateRefund", in, opts)
}

func (c *PaymentsServiceClient) ListTransactions(ctx context.Context, in *types.ListTransactionsRequest, opts ...grpc.CallOption) (*types.ListTransactionsResponse, error) {
	return invoke[types.ListTransactionsResponse](ctx, c.cc, "ListTransactions", in, opts)
}
