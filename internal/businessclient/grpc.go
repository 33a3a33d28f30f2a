package businessclient

import (
	"context"

	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"google.golang.org/grpc"
)

// AggregateServiceClient is the subset of a generated gRPC aggregate
// client this package depends on. Kept narrow and hand-declared here
// (rather than importing generated protobuf stubs absent from this
// module) so any aggregate service speaking this shape can be wired in
// via grpc.ClientConnInterface, per the teacher's thin-wrapper-over-
// grpc.ClientConn convention (common/mgrpc).
type AggregateServiceClient interface {
	Handle(ctx context.Context, req *WireContextualCommand, opts ...grpc.CallOption) (*WireBusinessResponse, error)
}

// WireContextualCommand/WireBusinessResponse stand in for the
// generated protobuf messages a real deployment would exchange over
// the wire; the gRPC client translates to/from internal/model on
// either side of the call.
type WireContextualCommand struct {
	PriorEvents []byte
	Command     []byte
}

type WireBusinessResponse struct {
	NewEvents        [][]byte
	SnapshotState    []byte
	RevocationReason string
	Revoked          bool
}

// Codec converts between internal/model and the wire representation.
// A real deployment supplies a protobuf-backed Codec; tests may supply
// a trivial one.
type Codec interface {
	EncodeCommand(cmd ContextualCommand) (*WireContextualCommand, error)
	DecodeResponse(wire *WireBusinessResponse) (BusinessResponse, error)
}

// GRPCClient is a Client backed by an out-of-process aggregate
// service, grounded on angzarr's AggregateHandler.Handle/
// CommandRejectedError split between business rejection and transport
// failure.
type GRPCClient struct {
	domain string
	svc    AggregateServiceClient
	codec  Codec
}

// NewGRPCClient builds a GRPCClient for domain, backed by svc.
func NewGRPCClient(domain string, svc AggregateServiceClient, codec Codec) *GRPCClient {
	return &GRPCClient{domain: domain, svc: svc, codec: codec}
}

func (c *GRPCClient) Invoke(ctx context.Context, cmd ContextualCommand) (BusinessResponse, error) {
	wireReq, err := c.codec.EncodeCommand(cmd)
	if err != nil {
		return BusinessResponse{}, merr.InternalError{EntityType: "businessclient", Message: "encode command", Err: err}
	}

	wireResp, err := c.svc.Handle(ctx, wireReq)
	if err != nil {
		return BusinessResponse{}, merr.InternalError{EntityType: "businessclient", Message: "aggregate service call for domain " + c.domain, Err: err}
	}

	return c.codec.DecodeResponse(wireResp)
}
