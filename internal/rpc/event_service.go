package rpc

import (
	"context"

	"google.golang.org/grpc/codes"

	"pokercore/internal/eventpipeline"
	"pokercore/internal/rpcerr"
)

// EventServer is the concrete EventService: reads materialized hand
// snapshots out of a Materializer, falling back to replaying the durable
// log when no in-memory snapshot survives (e.g. after a restart).
type EventServer struct {
	Materializer *eventpipeline.Materializer
	Log          *eventpipeline.Log
}

var _ EventService = (*EventServer)(nil)

func (e *EventServer) GetHandSnapshot(_ context.Context, req GetHandSnapshotRequest) (any, error) {
	if snap, ok := e.Materializer.Snapshot(req.HandID); ok {
		return snap, nil
	}

	rows, err := e.Log.ReadFrom(req.HandID, 0)
	if err != nil {
		return nil, rpcerr.Unavailable("read hand log: %v", err)
	}
	if len(rows) == 0 {
		return nil, rpcerr.NotFound("hand %s not found", req.HandID)
	}
	snap, err := eventpipeline.Replay(rows)
	if err != nil {
		return nil, rpcerr.New(codes.Internal, rpcerr.CodeInvariant, "replay hand %s: %v", req.HandID, err)
	}
	return snap, nil
}
