package inventoryrpc

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "inventory.v1.InventoryLedger"

type InventoryLedgerServer interface {
	CheckAvailability(context.Context, *CheckAvailabilityRequest) (*CheckAvailabilityResponse, error)
	Decrement(context.Context, *StockRequest) (*StockChangeResponse, error)
	DecrementBatch(context.Context, *BatchRequest) (*BatchResponse, error)
	Increment(context.Context, *StockRequest) (*StockChangeResponse, error)
	IncrementBatch(context.Context, *BatchRequest) (*BatchResponse, error)
	LowStock(context.Context, *LowStockRequest) (*StockListResponse, error)
	OutOfStock(context.Context, *OutOfStockRequest) (*StockListResponse, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InventoryLedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CheckAvailability", InventoryLedgerServer.CheckAvailability),
		unary("Decrement", InventoryLedgerServer.Decrement),
		unary("DecrementBatch", InventoryLedgerServer.DecrementBatch),
		unary("Increment", InventoryLedgerServer.Increment),
		unary("IncrementBatch", InventoryLedgerServer.IncrementBatch),
		unary("LowStock", InventoryLedgerServer.LowStock),
		unary("OutOfStock", InventoryLedgerServer.OutOfStock),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/inventory.proto",
}

func RegisterInventoryLedgerServer(s grpc.ServiceRegistrar, srv InventoryLedgerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unary[Req, Resp any](method string, call func(InventoryLedgerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InventoryLedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(InventoryLedgerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls the ledger service; every call uses the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) CheckAvailability(ctx context.Context, in *CheckAvailabilityRequest, opts ...grpc.CallOption) (*CheckAvailabilityResponse, error) {
	return invoke[CheckAvailabilityResponse](ctx, c.cc, "CheckAvailability", in, opts)
}

func (c *Client) Decrement(ctx context.Context, in *StockRequest, opts ...grpc.CallOption) (*StockChangeResponse, error) {
	return invoke[StockChangeResponse](ctx, c.cc, "Decrement", in, opts)
}

func (c *Client) DecrementBatch(ctx context.Context, in *BatchRequest, opts ...grpc.CallOption) (*BatchResponse, error) {
	return invoke[BatchResponse](ctx, c.cc, "DecrementBatch", in, opts)
}

func (c *Client) Increment(ctx context.Context, in *StockRequest, opts ...grpc.CallOption) (*StockChangeResponse, error) {
	return invoke[StockChangeResponse](ctx, c.cc, "Increment", in, opts)
}

func (c *Client) IncrementBatch(ctx context.Context, in *BatchRequest, opts ...grpc.CallOption) (*BatchResponse, error) {
	return invoke[BatchResponse](ctx, c.cc, "IncrementBatch", in, opts)
}

func (c *Client) LowStock(ctx context.Context, in *LowStockRequest, opts ...grpc.CallOption) (*StockListResponse, error) {
	return invoke[StockListResponse](ctx, c.cc, "LowStock", in, opts)
}

func (c *Client) OutOfStock(ctx context.Context, in *OutOfStockRequest, opts ...grpc.CallOption) (*StockListResponse, error) {
	return invoke[StockListResponse](ctx, c.cc, "OutOfStock", in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
