package replica

import (
	"context"
	"time"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

// QuorumOptions are the parameters of quorum reads
type QuorumOptions struct {
	// MaxReplicaSetSize is the replica count N the read quorum N - N/2 is
	// derived from
	MaxReplicaSetSize    int
	MaxReadQuorumRetries int
	MaxBarrierRetries    int
	BarrierRetryInterval time.Duration
}

// DefaultQuorumOptions returns the default quorum parameters
func DefaultQuorumOptions() QuorumOptions {
	return QuorumOptions{
		MaxReplicaSetSize:    4,
		MaxReadQuorumRetries: 6,
		MaxBarrierRetries:    6,
		BarrierRetryInterval: 5 * time.Millisecond,
	}
}

// ReadQuorum returns the number of replicas that must agree on the LSN
func (o QuorumOptions) ReadQuorum() int {
	return o.MaxReplicaSetSize - o.MaxReplicaSetSize/2
}

// QuorumReader serves BoundedStaleness and Strong reads.
//
// Every round reads from a quorum of secondaries. If they agree on the
// highest LSN, that result is returned. Otherwise read barriers (head
// requests to all replicas) are sent until a quorum reports the selected
// LSN. If not enough secondaries answer, the primary is read instead.
type QuorumReader struct {
	reader *StoreReader
	opts   QuorumOptions
}

// NewQuorumReader creates a quorum reader on top of reader
func NewQuorumReader(reader *StoreReader, opts QuorumOptions) *QuorumReader {
	return &QuorumReader{reader: reader, opts: opts}
}

// Read runs the quorum protocol for req. Topology errors (410 and the
// forbidden substatuses) are returned as they are, so the gone policy above
// can refresh the caches the substatus names. If no quorum is reached within
// MaxReadQuorumRetries rounds, 503 is returned with the last failure as
// cause.
func (q *QuorumReader) Read(ctx context.Context, req *resource.Request) (*resource.StoreResponse, error) {
	quorum := q.opts.ReadQuorum()
	tracker := req.ChargeTracker()

	var lastErr error
	for round := 0; round < q.opts.MaxReadQuorumRetries; round++ {
		results, err := q.reader.ReadMultiple(ctx, req, quorum, false, false)
		if err != nil {
			switch dberr.KindOf(err) {
			case dberr.KindClient:
				return nil, err
			case dberr.KindTopology:
				return nil, dberr.WithRequestCharge(err, tracker.Total())
			}
			lastErr = err
		}

		if len(results) < quorum {
			Logger.Debugf("%d of %d secondaries answered for %s, reading from the primary", len(results), quorum, req.ResourceAddress)
			primary, err := q.reader.ReadPrimary(ctx, req, false)
			if err != nil {
				if dberr.KindOf(err) == dberr.KindTopology {
					return nil, dberr.WithRequestCharge(err, tracker.Total())
				}
				lastErr = err
				continue
			}
			req.Context.QuorumSelectedLSN = primary.LSN
			return primary.ToResponse(tracker)
		}

		selected := highestLSN(results)
		req.Context.QuorumSelectedLSN = selected.LSN
		if countAtLeast(results, selected.LSN) >= quorum {
			return selected.ToResponse(tracker)
		}

		reached, err := q.waitForReadBarrier(ctx, req, quorum, selected.LSN)
		if err != nil {
			return nil, dberr.WithRequestCharge(err, tracker.Total())
		}
		if reached {
			return selected.ToResponse(tracker)
		}
		lastErr = dberr.Newf(dberr.StatusServiceUnavailable, dberr.SubStatusUnknown,
			"read barrier for lsn %d not met by %d replicas", selected.LSN, quorum)
	}

	Logger.Warningf("read quorum for %s not reached after %d rounds: %v", req.ResourceAddress, q.opts.MaxReadQuorumRetries, lastErr)
	return nil, dberr.WithRequestCharge(dberr.ServiceUnavailable("service unavailable: read quorum could not be reached", lastErr), tracker.Total())
}

// waitForReadBarrier polls all replicas with head requests until a quorum of
// them reached lsn
func (q *QuorumReader) waitForReadBarrier(ctx context.Context, req *resource.Request, quorum int, lsn int64) (bool, error) {
	barrier := req.Clone()
	barrier.Operation = resource.OpHead
	barrier.Body = nil

	for i := 0; i < q.opts.MaxBarrierRetries; i++ {
		results, err := q.reader.ReadMultiple(ctx, barrier, q.opts.MaxReplicaSetSize, true, false)
		if err != nil && dberr.KindOf(err) == dberr.KindTopology {
			return false, err
		}
		if countAtLeast(results, lsn) >= quorum {
			return true, nil
		}

		t := time.NewTimer(q.opts.BarrierRetryInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}
	return false, nil
}

func highestLSN(results []*StoreReadResult) *StoreReadResult {
	best := results[0]
	for _, r := range results[1:] {
		if r.LSN > best.LSN {
			best = r
		}
	}
	return best
}

func countAtLeast(results []*StoreReadResult, lsn int64) int {
	n := 0
	for _, r := range results {
		if r.LSN >= lsn {
			n++
		}
	}
	return n
}
