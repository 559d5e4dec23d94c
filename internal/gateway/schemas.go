package gateway

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dyluth/compass/pkg/canvas"
)

// Response shapes
//
// Each shape is declared once as a JSON Schema document (draft 2020-12),
// compiled once, and used both to constrain the model (sent as the response
// schema) and to validate the reply before decoding it.

const schemaBaseURL = "https://compass.schemas.local/gateway/"

// shape is a compiled response schema.
type shape struct {
	name     string
	doc      map[string]any
	compiled *jsonschema.Schema
}

var (
	findingsShape = mustShape("findings", map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	})

	jargonShape = mustShape("jargon", map[string]any{
		"type": "array",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"term":        map[string]any{"type": "string"},
				"alternative": map[string]any{"type": "string"},
			},
			"required": []any{"term", "alternative"},
		},
	})

	falsifiabilityShape = mustShape("falsifiability", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isFalsifiable": map[string]any{"type": "boolean"},
			"suggestion":    map[string]any{"type": "string"},
		},
		"required": []any{"isFalsifiable", "suggestion"},
	})
)

// blockShapes caches block mapping shapes by key set.
var blockShapes sync.Map

// blockShape returns the shape of a mapping from the given block ids to string arrays.
// With required set, every id must be present in the reply.
func blockShape(ids []canvas.BlockID, required bool) (*shape, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	sort.Strings(keys)

	cacheKey := fmt.Sprintf("%t:%s", required, strings.Join(keys, ","))
	if cached, ok := blockShapes.Load(cacheKey); ok {
		return cached.(*shape), nil
	}

	props := make(map[string]any, len(keys))
	for _, k := range keys {
		props[k] = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	}
	doc := map[string]any{"type": "object", "properties": props}
	if required {
		req := make([]any, len(keys))
		for i, k := range keys {
			req[i] = k
		}
		doc["required"] = req
	}

	name := "blocks-" + shortHash(cacheKey)
	s, err := newShape(name, doc)
	if err != nil {
		return nil, err
	}
	actual, _ := blockShapes.LoadOrStore(cacheKey, s)
	return actual.(*shape), nil
}

func mustShape(name string, doc map[string]any) *shape {
	s, err := newShape(name, doc)
	if err != nil {
		panic(err)
	}
	return s
}

func newShape(name string, doc map[string]any) (*shape, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("schema %s: marshal: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	url := schemaBaseURL + name + ".schema.json"
	if err := c.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema %s: load: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: compile: %w", name, err)
	}
	return &shape{name: name, doc: doc, compiled: compiled}, nil
}

// decode validates a model reply against the shape and unmarshals it into v.
func (s *shape) decode(text string, v any) error {
	body := stripFences(text)

	var generic any
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return fmt.Errorf("%w: %s: not JSON: %v", ErrMalformedResponse, s.name, err)
	}
	if err := s.compiled.Validate(generic); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.name, err)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, s.name, err)
	}
	return nil
}

// responseSchema renders the shape in the OpenAPI subset the Gemini API accepts.
func (s *shape) responseSchema() map[string]any {
	return toOpenAPI(s.doc).(map[string]any)
}

func toOpenAPI(node any) any {
	switch n := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, v := range n {
			switch k {
			case "$schema", "$id", "additionalProperties":
				continue
			case "type":
				if t, ok := v.(string); ok {
					out[k] = strings.ToUpper(t)
					continue
				}
			}
			out[k] = toOpenAPI(v)
		}
		return out
	case []any:
		out := make([]any, len(n))
		for i, v := range n {
			out[i] = toOpenAPI(v)
		}
		return out
	default:
		return n
	}
}

// stripFences removes a Markdown code fence some models wrap JSON in.
func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if nl := strings.IndexByte(t, '\n'); nl >= 0 {
		t = t[nl+1:]
	}
	t = strings.TrimSuffix(strings.TrimSpace(t), "```")
	return strings.TrimSpace(t)
}

// decodeBlocks validates a block mapping reply. Keys outside the schema are
// dropped whatever their value, and returned in the second value.
func decodeBlocks(s *shape, text string) (canvas.BlockTexts, []string, error) {
	var raw map[string]json.RawMessage
	if err := s.decode(text, &raw); err != nil {
		return nil, nil, err
	}

	bt := make(canvas.BlockTexts, len(raw))
	var dropped []string
	for k, v := range raw {
		id := canvas.BlockID(k)
		if id.Validate() != nil {
			dropped = append(dropped, k)
			continue
		}
		var texts []string
		if err := json.Unmarshal(v, &texts); err != nil {
			return nil, nil, fmt.Errorf("%w: %s: block %s: %v", ErrMalformedResponse, s.name, k, err)
		}
		bt[id] = texts
	}
	sort.Strings(dropped)
	return bt, dropped, nil
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:6])
}
