// Package gateway is the narrow port between the canvas core and an external
// large-language-model service.
//
// The core only ever sends block texts (canvas.BlockTexts, ids and metadata
// stripped) and receives one of three shapes back: short diagnostic strings,
// a block mapping, or free-form prose. Every structured response is checked
// against a JSON Schema declared once in schemas.go before it is decoded; a
// response that fails the check is reported as ErrMalformedResponse and must
// never be applied to a project.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/compass/pkg/canvas"
)

// ErrMalformedResponse is returned when a model reply does not match the expected shape.
var ErrMalformedResponse = errors.New("malformed AI response")

// MaxFindings bounds the number of gap findings Diagnose returns.
const MaxFindings = 3

// DraftKind selects the document Draft produces.
type DraftKind string

const (
	DraftAbstract DraftKind = "abstract"
	DraftGrant    DraftKind = "grant"
)

// Validate checks if the DraftKind is a valid enum value.
func (k DraftKind) Validate() error {
	switch k {
	case DraftAbstract, DraftGrant:
		return nil
	default:
		return fmt.Errorf("unknown draft kind: %q (expected abstract or grant)", string(k))
	}
}

// JargonTerm is one buzzword found by DetectJargon with a plainer alternative.
type JargonTerm struct {
	Term        string `json:"term"`
	Alternative string `json:"alternative"`
}

// Falsifiability is the verdict of CheckFalsifiability.
type Falsifiability struct {
	IsFalsifiable bool   `json:"isFalsifiable"`
	Suggestion    string `json:"suggestion"`
}

// Document is an uploaded file to extract blocks from.
type Document struct {
	Name     string
	MimeType string
	Data     []byte
}

// Gateway is the AI port. Implementations must not mutate their inputs and
// must return an error wrapping ErrMalformedResponse for unparseable replies.
type Gateway interface {
	// Diagnose returns at most MaxFindings structural gaps in the canvas.
	Diagnose(ctx context.Context, snap canvas.BlockTexts) ([]string, error)

	// Refine rewrites the non-empty blocks. An empty canvas yields an empty mapping.
	Refine(ctx context.Context, snap canvas.BlockTexts) (canvas.BlockTexts, error)

	// FixGap returns replacement texts for the blocks that resolve warning.
	FixGap(ctx context.Context, snap canvas.BlockTexts, warning string) (canvas.BlockTexts, error)

	// Extract maps a research document onto blocks.
	Extract(ctx context.Context, doc Document) (canvas.BlockTexts, error)

	// MapAnswer maps a wizard answer onto the question's target blocks.
	MapAnswer(ctx context.Context, q canvas.WizardQuestion, answer string) (canvas.BlockTexts, error)

	// Draft writes prose from the canvas.
	Draft(ctx context.Context, kind DraftKind, projectName string, snap canvas.BlockTexts) (string, error)

	// DetectJargon lists buzzwords in text.
	DetectJargon(ctx context.Context, text string) ([]JargonTerm, error)

	// CheckFalsifiability judges whether a hypothesis can be proven wrong.
	CheckFalsifiability(ctx context.Context, hypothesis string) (Falsifiability, error)
}

// IsMalformed reports whether err is a shape failure rather than a transport failure.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}
