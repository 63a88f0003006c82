package sync

import (
	"context"
	"errors"
	"io"
	"log"

	"inventoried/pkg/bus"
	"inventoried/services/inventory"
)

const defaultChunkSize = 500

// Source yields stored hosts in stable id-ordered chunks.
type Source interface {
	CountHosts(ctx context.Context) (int64, error)
	HostChunk(ctx context.Context, offset, limit int) ([]inventory.Host, error)
}

// Publisher is the slice of the bus the synchronizer needs. *bus.Bus
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// Options tune a synchronization run.
type Options struct {
	// ChunkSize bounds how many hosts are read per store round-trip.
	ChunkSize int
	// Interrupt is polled between chunks; returning true stops the run
	// cleanly after the current chunk.
	Interrupt func() bool
	Logger    *log.Logger
}

// Result summarises a synchronization run.
type Result struct {
	Total       int64
	Emitted     int
	Failed      int
	Interrupted bool
}

// Synchronize walks every stored host in chunks and re-emits an updated
// event for each, so downstream consumers can rebuild derived state after
// an outage or a replay request. A publish failure on one host is counted
// and logged but never stops the walk.
func Synchronize(ctx context.Context, src Source, pub Publisher, opts Options) (*Result, error) {
	if src == nil {
		return nil, errors.New("source is required")
	}
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	total, err := src.CountHosts(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Total: total}
	for offset := 0; ; offset += chunkSize {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if opts.Interrupt != nil && opts.Interrupt() {
			res.Interrupted = true
			return res, nil
		}

		hosts, err := src.HostChunk(ctx, offset, chunkSize)
		if err != nil {
			return res, err
		}
		if len(hosts) == 0 {
			return res, nil
		}

		for _, h := range hosts {
			evt := bus.HostEvent{
				HostID:     h.ID,
				Account:    h.Account,
				InsightsID: h.InsightsID,
				At:         h.Updated,
			}
			if err := pub.Publish(ctx, bus.SubjectHostUpdated, evt); err != nil {
				logger.Printf("ERROR emit host %s: %v", h.ID, err)
				res.Failed++
				continue
			}
			synchronizedHosts.Inc()
			res.Emitted++
		}
	}
}
