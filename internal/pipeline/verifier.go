package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadforge/internal/lead"
)

// verifierWorker drains candidate addresses, deduplicating on the
// address string, and probes each against its MX.
func (p *Pipeline) verifierWorker(ctx context.Context) {
	zap.L().Info("verifier worker started")
	seen := newSeenSet()

	for {
		candidate, ok := p.emailQueue.Pop()
		if !ok {
			return
		}
		if !seen.Admit(candidate.Email) {
			continue
		}

		p.track.add()
		go func() {
			defer p.track.done()
			p.verifyCandidate(ctx, candidate)
		}()
	}
}

// verifyCandidate runs the RCPT probe. A positive reply publishes the
// address to the broadcast (best effort) and flips the row to Verified;
// anything else, including transport failures, flips it to Invalid.
func (p *Pipeline) verifyCandidate(ctx context.Context, candidate lead.Candidate) {
	deliverable, err := p.prober.Probe(ctx, candidate.Email)
	if err != nil {
		zap.L().Debug("verification probe failed",
			zap.String("email", candidate.Email),
			zap.Error(err),
		)
	}

	if deliverable {
		p.broadcast.Publish(candidate.Email)
		p.persistQueue.Push(EmailVerified{Address: candidate.Email})
		zap.L().Info("email verified", zap.String("email", candidate.Email))
		return
	}
	p.persistQueue.Push(EmailUnverified{Address: candidate.Email})
}
