// Package dlworker implements spec.md §4.6: DeepLearningConsensusWorker, a
// batching dispatcher in front of cnnconsensus.CnnConsensusStrategy.
package dlworker

import (
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/consensus/cnnconsensus"
	"github.com/grailbio/consensus/consensus"
	"github.com/grailbio/consensus/internal/cerrors"
	"github.com/grailbio/consensus/readrecord"
)

// Config carries the worker's batching knobs from spec.md §6.
type Config struct {
	// BatchSize is the number of accumulated clusters that triggers an
	// automatic dispatch. Default 4.
	BatchSize int `yaml:"batch_size"`
	// MinDepth drops a cluster before it ever reaches the strategy if it
	// has fewer reads than this. Default 2.
	MinDepth int `yaml:"min_depth"`
}

// DefaultConfig matches spec.md §6's stated defaults.
var DefaultConfig = Config{BatchSize: 4, MinDepth: 2}

// Validate rejects out-of-range knobs at construction time.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return cerrors.E(cerrors.ConfigurationError, "dlworker: BatchSize must be > 0, got", c.BatchSize)
	}
	if c.MinDepth < 0 {
		return cerrors.E(cerrors.ConfigurationError, "dlworker: MinDepth must be >= 0, got", c.MinDepth)
	}
	return nil
}

// Sink receives each successfully called ConsensusRead. Implementations
// typically write to a BAM/FASTQ writer upstream; that I/O is out of scope
// here (spec.md §1), so Sink is the seam.
type Sink interface {
	Consume(*consensus.ConsensusRead)
}

// state is the worker's lifecycle, spec.md §4.6: Idle with nothing queued,
// Accumulating once handle_work has queued at least one cluster,
// Dispatching while a batch is being inferred.
type state int

const (
	stateIdle state = iota
	stateAccumulating
	stateDispatching
)

type job struct {
	tag   string
	reads []readrecord.ReadRecord
}

// DeepLearningConsensusWorker accumulates clusters of reads and dispatches
// them to a CnnConsensusStrategy in batches: every cluster of a batch runs
// its own full CnnConsensusStrategy.Call (MSA build, features, one Infer
// call, calibration) in parallel under traverse.Each, mirroring
// pileup/snp/pileup.go's shard-parallel-then-join shape. Infer is therefore
// called once per cluster, concurrently across the clusters of a batch;
// a batch's clusters are not combined into a single Infer call.
type DeepLearningConsensusWorker struct {
	mu       sync.Mutex
	cfg      Config
	strategy *cnnconsensus.CnnConsensusStrategy
	pending  []job
	sinks    []Sink
	state    state
	shutdown bool
}

// NewDeepLearningConsensusWorker validates cfg and returns a ready worker.
func NewDeepLearningConsensusWorker(strategy *cnnconsensus.CnnConsensusStrategy, cfg Config) (*DeepLearningConsensusWorker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strategy == nil {
		return nil, cerrors.E(cerrors.ConfigurationError, "dlworker: strategy must not be nil")
	}
	return &DeepLearningConsensusWorker{cfg: cfg, strategy: strategy}, nil
}

// AddSink registers an output sink. Safe to call at any time before Shutdown.
func (w *DeepLearningConsensusWorker) AddSink(s Sink) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sinks = append(w.sinks, s)
}

// HandleWork queues one cluster of reads. A cluster with fewer than
// cfg.MinDepth reads is dropped before it ever reaches the strategy.
// Dispatch runs synchronously, inline with the call that crosses
// cfg.BatchSize, matching spec.md §4.6's "dispatch happens on the
// triggering call" semantics rather than a background goroutine.
func (w *DeepLearningConsensusWorker) HandleWork(tag string, reads []readrecord.ReadRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutdown {
		return cerrors.E(cerrors.WorkerShutdown, "dlworker: HandleWork called after Shutdown")
	}
	if len(reads) < w.cfg.MinDepth {
		log.Debug.Printf("dlworker: dropping cluster %s, %d reads below MinDepth %d", tag, len(reads), w.cfg.MinDepth)
		return nil
	}
	w.pending = append(w.pending, job{tag: tag, reads: reads})
	w.state = stateAccumulating
	if len(w.pending) >= w.cfg.BatchSize {
		return w.dispatchLocked()
	}
	return nil
}

// Flush dispatches whatever is currently pending, even if it's short of a
// full batch.
func (w *DeepLearningConsensusWorker) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dispatchLocked()
}

// Shutdown flushes any pending batch and then rejects further HandleWork
// calls with WorkerShutdown.
func (w *DeepLearningConsensusWorker) Shutdown() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.dispatchLocked()
	w.shutdown = true
	return err
}

// dispatchLocked must be called with w.mu held.
func (w *DeepLearningConsensusWorker) dispatchLocked() error {
	if len(w.pending) == 0 {
		w.state = stateIdle
		return nil
	}
	w.state = stateDispatching
	batch := w.pending
	w.pending = nil

	results := make([]*consensus.ConsensusRead, len(batch))
	err := traverse.Each(len(batch), func(i int) error {
		read, err := w.strategy.Call(batch[i].tag, batch[i].reads)
		if err != nil {
			log.Error.Printf("dlworker: cluster %s failed: %v", batch[i].tag, err)
			return nil
		}
		results[i] = read
		return nil
	})
	for _, r := range results {
		if r == nil {
			continue
		}
		for _, s := range w.sinks {
			s.Consume(r)
		}
	}
	w.state = stateIdle
	return err
}
