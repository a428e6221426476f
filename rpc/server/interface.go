package server

import (
	"context"

	"github.com/ValentinKolb/dDoc/lib/resource"
)

// IReplicaHandler serves the requests of the replicas hosted by a server.
// Replica ids are 0..Replicas-1 of the server config.
type IReplicaHandler interface {
	// Handle serves req at the replica replicaId. A failed request is reported
	// as dberr error, its status, sub status and headers are sent back to the client.
	Handle(ctx context.Context, replicaId uint64, req *resource.Request) (*resource.StoreResponse, error)
}
