package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// A collaborator server sees Struct requests carrying the documented fields.
func TestClientsSendStructOverTheWire(t *testing.T) {
	seen := make(chan map[string]interface{}, 3)
	srv := grpclib.NewServer(grpclib.UnknownServiceHandler(func(_ any, stream grpclib.ServerStream) error {
		method, _ := grpclib.MethodFromServerStream(stream)
		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		fields := req.AsMap()
		fields["method"] = method
		seen <- fields

		var resp map[string]interface{}
		switch method {
		case methodValidateToken:
			resp = map[string]interface{}{"valid": true, "user_id": 3}
		case methodGetUser:
			resp = map[string]interface{}{"id": 3, "username": "carol"}
		default:
			resp = map[string]interface{}{"are_friends": true}
		}
		out, err := structpb.NewStruct(resp)
		if err != nil {
			return err
		}
		return stream.SendMsg(out)
	}))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = srv.Serve(ln) }()
	defer srv.Stop()

	conn, err := grpclib.NewClient(ln.Addr().String(), grpclib.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	ctx := context.Background()
	userID, err := NewAuthClient(conn, time.Second).ValidateToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 3, userID)
	users := NewUserClient(conn, time.Second)
	profile, err := users.GetUser(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "carol", profile.Username)
	friends, err := users.AreFriends(ctx, 3, 4)
	require.NoError(t, err)
	assert.True(t, friends)

	assert.Equal(t, map[string]interface{}{"method": methodValidateToken, "token": "tok"}, <-seen)
	assert.Equal(t, map[string]interface{}{"method": methodGetUser, "user_id": float64(3)}, <-seen)
	assert.Equal(t, map[string]interface{}{"method": methodAreFriends, "user_id": float64(3), "friend_id": float64(4)}, <-seen)
}
