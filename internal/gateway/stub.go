package gateway

import (
	"context"
	"sync"

	"github.com/dyluth/compass/pkg/canvas"
)

// Stub is an in-memory Gateway returning canned replies.
// Each field is returned by the matching method; Err, when set, is returned by every method instead.
// Calls are recorded by operation name.
type Stub struct {
	Findings       []string
	Refined        canvas.BlockTexts
	Fixed          canvas.BlockTexts
	Extracted      canvas.BlockTexts
	Mapped         canvas.BlockTexts
	Drafts         map[DraftKind]string
	Jargon         []JargonTerm
	Falsifiability Falsifiability
	Err            error

	// Block, if set, is waited on by every call before replying.
	Block chan struct{}

	mu    sync.Mutex
	calls []string
}

var _ Gateway = (*Stub)(nil)

// Calls returns the operations invoked so far, in order.
func (s *Stub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Stub) record(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.mu.Unlock()

	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.Err
}

// Diagnose implements Gateway.
func (s *Stub) Diagnose(ctx context.Context, _ canvas.BlockTexts) ([]string, error) {
	if err := s.record(ctx, "diagnose"); err != nil {
		return nil, err
	}
	return boundFindings(s.Findings), nil
}

// Refine implements Gateway.
func (s *Stub) Refine(ctx context.Context, snap canvas.BlockTexts) (canvas.BlockTexts, error) {
	if len(snap.NonEmpty()) == 0 {
		return canvas.BlockTexts{}, nil
	}
	if err := s.record(ctx, "refine"); err != nil {
		return nil, err
	}
	return s.Refined.Merge(nil), nil
}

// FixGap implements Gateway.
func (s *Stub) FixGap(ctx context.Context, _ canvas.BlockTexts, _ string) (canvas.BlockTexts, error) {
	if err := s.record(ctx, "fix-gap"); err != nil {
		return nil, err
	}
	return s.Fixed.Merge(nil), nil
}

// Extract implements Gateway.
func (s *Stub) Extract(ctx context.Context, _ Document) (canvas.BlockTexts, error) {
	if err := s.record(ctx, "extract"); err != nil {
		return nil, err
	}
	return s.Extracted.Merge(nil), nil
}

// MapAnswer implements Gateway.
func (s *Stub) MapAnswer(ctx context.Context, _ canvas.WizardQuestion, _ string) (canvas.BlockTexts, error) {
	if err := s.record(ctx, "map-answer"); err != nil {
		return nil, err
	}
	return s.Mapped.Merge(nil), nil
}

// Draft implements Gateway.
func (s *Stub) Draft(ctx context.Context, kind DraftKind, _ string, _ canvas.BlockTexts) (string, error) {
	if err := kind.Validate(); err != nil {
		return "", err
	}
	if err := s.record(ctx, "draft-"+string(kind)); err != nil {
		return "", err
	}
	return s.Drafts[kind], nil
}

// DetectJargon implements Gateway.
func (s *Stub) DetectJargon(ctx context.Context, _ string) ([]JargonTerm, error) {
	if err := s.record(ctx, "jargon"); err != nil {
		return nil, err
	}
	return append([]JargonTerm(nil), s.Jargon...), nil
}

// CheckFalsifiability implements Gateway.
func (s *Stub) CheckFalsifiability(ctx context.Context, _ string) (Falsifiability, error) {
	if err := s.record(ctx, "falsifiability"); err != nil {
		return Falsifiability{}, err
	}
	return s.Falsifiability, nil
}
