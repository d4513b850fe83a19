package admin_service_api

import (
	"context"

	"google.golang.org/grpc"
)

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("ListTimeSlots", AdminServer.ListTimeSlots),
		unary("UpsertTimeSlot", AdminServer.UpsertTimeSlot),
		unary("GetSettings", AdminServer.GetSettings),
		unary("UpdateSettings", AdminServer.UpdateSettings),
		unary("ListTimeSlotBookings", AdminServer.ListTimeSlotBookings),
		unary("ListBookingHistory", AdminServer.ListBookingHistory),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nikolaus/admin/v1",
}

func unary[Req, Resp any](method string, call func(AdminServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls the admin service over a connection using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListTimeSlots(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*TimeSlotList, error) {
	return invoke[TimeSlotList](ctx, c, "ListTimeSlots", in, opts...)
}

func (c *Client) UpsertTimeSlot(ctx context.Context, in *TimeSlotMessage, opts ...grpc.CallOption) (*TimeSlotMessage, error) {
	return invoke[TimeSlotMessage](ctx, c, "UpsertTimeSlot", in, opts...)
}

func (c *Client) GetSettings(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*SettingsMessage, error) {
	return invoke[SettingsMessage](ctx, c, "GetSettings", in, opts...)
}

func (c *Client) UpdateSettings(ctx context.Context, in *SettingsMessage, opts ...grpc.CallOption) (*SettingsMessage, error) {
	return invoke[SettingsMessage](ctx, c, "UpdateSettings", in, opts...)
}

func (c *Client) ListTimeSlotBookings(ctx context.Context, in *TimeSlotBookingsRequest, opts ...grpc.CallOption) (*BookingList, error) {
	return invoke[BookingList](ctx, c, "ListTimeSlotBookings", in, opts...)
}

func (c *Client) ListBookingHistory(ctx context.Context, in *BookingHistoryRequest, opts ...grpc.CallOption) (*BookingHistory, error) {
	return invoke[BookingHistory](ctx, c, "ListBookingHistory", in, opts...)
}
