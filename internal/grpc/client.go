// Package grpc holds the clients for the identity and friendship
// collaborators. Requests and responses are google.protobuf.Struct values so
// the service contracts stay field-named without generated stubs.
//
// The auth and user services must accept and return google.protobuf.Struct
// on these methods; servers built from typed request messages such as
// ValidateTokenRequest or GetUserRequest cannot decode these payloads.
package grpc

import (
	"context"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	methodValidateToken = "/auth.AuthService/ValidateToken"
	methodGetUser       = "/user.UserInternal/GetUser"
	methodAreFriends    = "/user.UserInternal/AreFriends"
)

// caller invokes unary Struct methods with a per-call deadline.
type caller struct {
	conn    grpclib.ClientConnInterface
	timeout time.Duration
}

func (c caller) call(ctx context.Context, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func intField(s *structpb.Struct, key string) int {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0
	}
	return int(v.GetNumberValue())
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func boolField(s *structpb.Struct, key string) bool {
	return s.GetFields()[key].GetBoolValue()
}
