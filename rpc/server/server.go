package server

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
	"github.com/ValentinKolb/dDoc/rpc/common"
	"github.com/ValentinKolb/dDoc/rpc/serializer"
	"github.com/ValentinKolb/dDoc/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server hosting the replicas served by handler
// It takes a config, transport, serializer and handler as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//		server.NewMemoryReplicas(config.Replicas),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	handler IReplicaHandler,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	if config.Replicas < 1 {
		config.Replicas = 1
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		handler:    handler,
	}
}

// RPCServer exposes the replicas of an IReplicaHandler over a server transport
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	handler    IReplicaHandler
}

// Serve registers the request handler and blocks until the transport is closed
func (s *RPCServer) Serve() error {
	s.transport.RegisterHandler(s.handle)
	return s.transport.Listen(s.config.TransportConf)
}

// Close stops the transport
func (s *RPCServer) Close() error {
	return s.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handle is the transport.ServerHandleFunc of the server
func (s *RPCServer) handle(replicaId uint64, data []byte) []byte {
	var msg common.Message
	var resp *common.Message

	if err := s.serializer.Deserialize(data, &msg); err != nil {
		// Case malformed request -> error
		resp = common.NewErrorResponse(dberr.StatusBadRequest, nil, fmt.Sprintf("failed to deserialize request: %s", err))
	} else if replicaId >= uint64(s.config.Replicas) {
		// Case replica does not exist -> gone, the client refreshes its addresses
		resp = errorResponse(dberr.Gone(fmt.Sprintf("replica %d is not hosted here", replicaId)))
	} else if !msg.IsRequest() {
		resp = common.NewErrorResponse(dberr.StatusBadRequest, nil, fmt.Sprintf("unsupported message type: %s", msg.MsgType))
	} else {
		resp = s.dispatch(replicaId, &msg)
	}

	// Return result
	val, err := s.serializer.Serialize(*resp)
	if err != nil {
		Logger.Errorf("failed to serialize response: %v", err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(dberr.StatusInternalServerError, nil, fmt.Sprintf("failed to serialize response: %s", err)))
	}
	return val
}

// dispatch lets the handler serve one request
func (s *RPCServer) dispatch(replicaId uint64, msg *common.Message) *common.Message {
	ctx := context.Background()
	if timeout := time.Duration(s.config.TransportConf.TimeoutSecond) * time.Second; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := toRequest(msg)
	start := time.Now()
	out, err := s.handler.Handle(ctx, replicaId, req)
	Logger.Debugf("replica %d served %s %s in %s", replicaId, req.Operation, req.ResourceAddress, time.Since(start))

	if err != nil {
		return errorResponse(err)
	}
	return common.NewStoreResponse(out.Status, out.Headers, out.Body)
}

// toRequest converts a request message
func toRequest(msg *common.Message) *resource.Request {
	op, _ := msg.MsgType.Operation()
	headers := resource.Headers(msg.Headers)
	if headers == nil {
		headers = resource.Headers{}
	}
	return &resource.Request{
		ActivityID:      headers.Get(resource.HeaderActivityID),
		Operation:       op,
		ResourceType:    resource.Type(msg.ResourceType),
		ResourceAddress: msg.Address,
		IsNameBased:     true,
		Headers:         headers,
		Body:            msg.Body,
		Context: resource.RequestContext{
			QuorumSelectedLSN:          -1,
			GlobalCommittedSelectedLSN: -1,
		},
	}
}

// errorResponse converts err into an error message. The status pair and the
// retry hints travel as headers.
func errorResponse(err error) *common.Message {
	status := dberr.StatusCode(err)
	if status == 0 {
		status = dberr.StatusInternalServerError
	}

	headers := map[string]string{}
	for k, v := range dberr.Headers(err) {
		headers[k] = v
	}
	if sub := dberr.SubStatusOf(err); sub != dberr.SubStatusUnknown {
		headers[dberr.HeaderSubStatus] = strconv.Itoa(int(sub))
	}
	if after := dberr.RetryAfter(err); after > 0 {
		headers[dberr.HeaderRetryAfterMs] = strconv.FormatInt(after.Milliseconds(), 10)
	}
	if charge := dberr.RequestCharge(err); charge > 0 {
		headers[dberr.HeaderRequestCharge] = strconv.FormatFloat(charge, 'f', -1, 64)
	}

	return common.NewErrorResponse(status, headers, err.Error())
}
