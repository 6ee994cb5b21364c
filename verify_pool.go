package main

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/omniledger/signet/pkg/log"
	"github.com/omniledger/signet/pkg/sign"
)

const verifyCancelledError = "batch cancelled before verification"

// VerifyRequest is one signature to check: a digest, a candidate signature
// and an optional expected signer address.
type VerifyRequest struct {
	Digest    []byte
	Signature []byte
	// Address, when set, must match the recovered signer for the item to
	// be valid. When nil any successful recovery is valid.
	Address *common.Address
}

// VerifyResult is the outcome for one VerifyRequest. Error is set when the
// item could not be verified at all; Valid reports the comparison result.
type VerifyResult struct {
	Valid   bool
	Address common.Address
	Error   string
}

type verifyJob struct {
	item   VerifyRequest
	result *VerifyResult
	wg     *sync.WaitGroup
}

// VerifyPool runs signature recovery across a fixed set of workers shared by
// all connections, so one large batch cannot monopolize the request loop.
type VerifyPool struct {
	jobs    chan verifyJob
	logger  log.Logger
	metrics *Metrics

	stopOnce sync.Once
	workerWg sync.WaitGroup
}

// NewVerifyPool starts a pool with the given number of workers.
func NewVerifyPool(workers int, metrics *Metrics, logger log.Logger) *VerifyPool {
	if workers <= 0 {
		workers = 1
	}

	p := &VerifyPool{
		jobs:    make(chan verifyJob, workers),
		logger:  logger.WithName("verify-pool"),
		metrics: metrics,
	}

	p.workerWg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	p.logger.Info("verification pool started", "workers", workers)

	return p
}

// VerifyBatch checks every item and returns one result per item, in input
// order. A malformed item fails only its own slot.
//
// When ctx is cancelled mid-batch, items already handed to workers run to
// completion and the remaining slots are marked cancelled; the caller is
// expected to discard the results.
func (p *VerifyPool) VerifyBatch(ctx context.Context, items []VerifyRequest) []VerifyResult {
	results := make([]VerifyResult, len(items))
	wg := &sync.WaitGroup{}

	for i := range items {
		wg.Add(1)
		p.metrics.VerifyQueueDepth.Inc()

		select {
		case p.jobs <- verifyJob{item: items[i], result: &results[i], wg: wg}:
		case <-ctx.Done():
			wg.Done()
			p.metrics.VerifyQueueDepth.Dec()
			for j := i; j < len(items); j++ {
				results[j] = VerifyResult{Error: verifyCancelledError}
			}
			wg.Wait()
			return results
		}
	}

	wg.Wait()
	return results
}

// Stop shuts the pool down after in-flight items complete. VerifyBatch must
// not be called after Stop.
func (p *VerifyPool) Stop() {
	p.stopOnce.Do(func() { close(p.jobs) })
	p.workerWg.Wait()
	p.logger.Info("verification pool stopped")
}

func (p *VerifyPool) worker() {
	defer p.workerWg.Done()

	for job := range p.jobs {
		*job.result = verifyOne(job.item)
		p.metrics.VerifyQueueDepth.Dec()
		job.wg.Done()
	}
}

// verifyOne recovers the signer of a single item and compares it against the
// expected address when one was supplied.
func verifyOne(item VerifyRequest) VerifyResult {
	pubKey, err := sign.Recover(item.Digest, item.Signature)
	if err != nil {
		return VerifyResult{Error: err.Error()}
	}

	address, err := sign.PubkeyToAddress(pubKey)
	if err != nil {
		return VerifyResult{Error: err.Error()}
	}

	valid := item.Address == nil || *item.Address == address
	return VerifyResult{Valid: valid, Address: address}
}
