package client

import (
	"fmt"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// invokeRPCRequest is a helper function used to send a request to a replica
// It takes the replica address, a request message, a transport layer and a serializer as parameters
// It returns the response message, failed responses are converted into dberr errors.
// A replica that cannot be reached is reported as Gone so the address caches get refreshed.
func invokeRPCRequest(addr Address, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, dberr.Internal("failed to serialize request", err)
	}

	// Send the request
	respBytes, err := transport.Send(addr.Host, addr.Replica, reqBytes)
	if err != nil {
		Logger.Debugf("Replica %s is unreachable: %v", addr, err)
		return nil, dberr.WithCause(dberr.Gone(fmt.Sprintf("replica %s is unreachable", addr)), err)
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, dberr.Internal(fmt.Sprintf("malformed response of replica %s", addr), err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError {
		status := resp.Status
		if status == 0 {
			status = dberr.StatusInternalServerError
		}
		return nil, dberr.FromResponse(status, resp.Headers, resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != common.MsgTSuccess {
		return nil, dberr.Internal(fmt.Sprintf("unexpected message type %s from replica %s", resp.MsgType, addr), nil)
	}

	// Return the response
	return resp, nil
}
