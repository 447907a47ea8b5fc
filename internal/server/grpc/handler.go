package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/dmitrijs2005/teadiary/internal/common"
	"github.com/dmitrijs2005/teadiary/internal/rpc"
)

func (s *GRPCServer) Authenticate(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	token, err := s.bins.Authenticate(ctx, req.GetValue())
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		s.logger.Error(ctx, "authenticate failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return wrapperspb.String(token), nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String(rpc.PingOK), nil
}

func (s *GRPCServer) Download(ctx context.Context, req *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	partition := firstMetadata(ctx, common.PartitionHeaderName)
	if partition == "" {
		return nil, status.Error(codes.FailedPrecondition, "missing partition")
	}

	b, err := s.bins.Download(ctx, partition)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.NotFound, "partition is empty")
		}
		s.logger.Error(ctx, "download failed", "partition", partition, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return wrapperspb.Bytes(b.Content), nil
}

func (s *GRPCServer) Upload(ctx context.Context, req *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	partition := firstMetadata(ctx, common.PartitionHeaderName)
	if partition == "" {
		return nil, status.Error(codes.FailedPrecondition, "missing partition")
	}

	if _, err := s.bins.Upload(ctx, partition, req.GetValue()); err != nil {
		if errors.Is(err, common.ErrorValidation) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		s.logger.Error(ctx, "upload failed", "partition", partition, "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info(ctx, "snapshot stored", "partition", partition, "client", ctx.Value(clientIDKey))
	return &emptypb.Empty{}, nil
}
