package matching

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vamsianumula/sublinear-mpc-matching/enforce"
)

// ChunkLimit bounds how many records are ever framed into one underlying
// transport buffer, keeping every single message comfortably under 2 GiB
// regardless of Record's eventual wire size.
const ChunkLimit = 1 << 16

// FabricStats is the exchange fabric's accounting, updated atomically so it
// can be read by the Memory Guard between steps without racing a call in
// flight.
type FabricStats struct {
	BytesIn      atomic.Int64
	BytesOut     atomic.Int64
	MaxMessage   atomic.Int64
	Calls        atomic.Int64
	WallNanos    atomic.Int64
}

// Fabric is the thin collective-messaging primitive the phase driver sits
// on: one logical exchange, one barrier, and two allreduce shapes. It is
// invoked centrally by the phase driver after a goroutine wave has produced
// each worker's local send buckets, and before the next wave consumes the
// per-worker receive buckets - so, despite simulating p independent
// machines, a single call never races against another.
type Fabric struct {
	p     int
	Stats FabricStats
}

// NewFabric builds a fabric for p simulated workers.
func NewFabric(p int) *Fabric {
	return &Fabric{p: p}
}

const recordSize = int64(64) // approximate wire size of one Record, for accounting only

// Exchange realizes the one primitive the design assumes of the collective
// substrate: exchange(send_buckets[p]) -> recv_buckets[p]. Sends from worker
// i to worker j arrive at recv[j] in the order they were appended to
// send[i]; no ordering is promised across different source workers.
func (f *Fabric) Exchange(send [][]Record) (recv [][]Record, err error) {
	start := time.Now()
	if len(send) != f.p {
		return nil, wrapErr(KindFabricError, nil, "send bucket count does not match worker count")
	}
	recv = make([][]Record, f.p)

	// Chunk each source worker's bucket independently so no single framed
	// buffer ever exceeds ChunkLimit records, matching the contract that a large
	// bucket is split into multiple rounds of the underlying all-to-all
	// while remaining logically equivalent to one exchange call.
	for src := 0; src < f.p; src++ {
		bucket := send[src]
		if len(bucket) == 0 {
			continue
		}
		f.Stats.BytesOut.Add(int64(len(bucket)) * recordSize)
		for offset := 0; offset < len(bucket); offset += ChunkLimit {
			end := offset + ChunkLimit
			if end > len(bucket) {
				end = len(bucket)
			}
			frame := bucket[offset:end]
			msgBytes := int64(len(frame)) * recordSize
			if old := f.Stats.MaxMessage.Load(); msgBytes > old {
				f.Stats.MaxMessage.Store(msgBytes)
			}
			// Records route by worker, not by (src,dst) link, so a single
			// pass over the frame is enough to place each record - this is
			// the simulated equivalent of the underlying sparse all-to-all
			// round for this chunk.
			for _, rec := range frame {
				dst := routeDst(rec, f.p)
				recv[dst] = append(recv[dst], rec)
				f.Stats.BytesIn.Add(recordSize)
			}
		}
	}

	f.Stats.Calls.Add(1)
	f.Stats.WallNanos.Add(time.Since(start).Nanoseconds())
	return recv, nil
}

// routeDst resolves the destination worker a record is addressed to. Every
// Record kind carries enough information to recompute this deterministically
// via the hash service rather than stashing a destination field, keeping
// the wire shape uniform.
func routeDst(rec Record, p int) int {
	var hs Hasher
	switch rec.Kind {
	case KindPlaceEdge:
		return hs.EdgeOwner(hs.EdgeIDOf(rec.U, rec.V), p)
	case KindDegProbe, KindCandReg, KindFanout, KindMatchClaim:
		return hs.Owner(rec.U, p)
	case KindDegContrib, KindBallReturn, KindMatchVerdict:
		return hs.EdgeOwner(rec.EID, p)
	case KindResidualEdge:
		return 0
	default:
		enforce.ENFORCE(false, "unroutable record kind", rec.Kind)
		return 0
	}
}

// Barrier is the explicit synchronization point between logical steps. The
// simulation already serializes every step through goroutine waves joined
// on a done channel (see parallelFor), so Barrier is a no-op call kept only to
// give call sites the same shape a real collective substrate would expose.
func (f *Fabric) Barrier() {}

// AllreduceMaxU64 returns the maximum of the given per-worker values,
// broadcast identically to every worker - used to refresh Delta_est.
func AllreduceMaxU64(vals []uint64) uint64 {
	max := uint64(0)
	for _, v := range vals {
		if v > max {
			max = v
		}
	}
	return max
}

// AllreduceSumU64 returns the sum of per-worker values, broadcast to every
// worker - used for global active/matched edge counts.
func AllreduceSumU64(vals []uint64) uint64 {
	var sum uint64
	for _, v := range vals {
		sum += v
	}
	return sum
}

// Allgather concatenates every worker's local contribution into the single
// list every worker receives back - used to distribute the globally newly
// matched vertex set computed by the Integrator.
func Allgather[T any](locals [][]T) []T {
	total := 0
	for _, l := range locals {
		total += len(l)
	}
	out := make([]T, 0, total)
	for _, l := range locals {
		out = append(out, l...)
	}
	return out
}

// LogStats emits a structured summary of cumulative fabric accounting.
func (f *Fabric) LogStats() {
	log.Debug().
		Int64("bytes_in", f.Stats.BytesIn.Load()).
		Int64("bytes_out", f.Stats.BytesOut.Load()).
		Int64("max_message", f.Stats.MaxMessage.Load()).
		Int64("calls", f.Stats.Calls.Load()).
		Dur("wall", time.Duration(f.Stats.WallNanos.Load())).
		Msg("fabric accounting")
}
