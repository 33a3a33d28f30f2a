package merr

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToGRPCStatus maps the runtime's error taxonomy to the gRPC status codes
// named in spec §6: InvalidArgument, NotFound, FailedPrecondition,
// Aborted, Internal. Grounded on the angzarr Go client's
// CommandRejectedError -> codes.FailedPrecondition mapping, generalized
// to every kind the pipeline can produce.
func ToGRPCStatus(err error) error {
	if err == nil {
		return nil
	}

	var (
		validation ValidationError
		conflict   SequenceConflictError
		revocation RevocationError
		aborted    AbortedError
		notFound   NotFoundError
		outputDom  OutputDomainError
	)

	switch {
	case errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, validation.Error())
	case errors.As(err, &notFound):
		return status.Error(codes.NotFound, notFound.Error())
	case errors.As(err, &conflict):
		return status.Error(codes.FailedPrecondition, conflict.Error())
	case errors.As(err, &revocation):
		return status.Error(codes.FailedPrecondition, revocation.Error())
	case errors.As(err, &aborted):
		return status.Error(codes.Aborted, aborted.Error())
	case errors.As(err, &outputDom):
		return status.Error(codes.Internal, outputDom.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
