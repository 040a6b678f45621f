// Package embed defines the text-to-vector collaborator and a local
// feature-hashing embedder for development and tests.
package embed

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/hupe1980/vecboard/distance"
	"github.com/hupe1980/vecboard/model"
)

// ErrEmptyText is returned when there is nothing to embed.
var ErrEmptyText = errors.New("embed: empty text")

// Embedder turns text into a semantic vector. All vectors of one embedder
// have the same dimension.
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
	Dimension() int
}

// Caption is the derived description of an uploaded item.
type Caption struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Keywords is a comma-separated keyword list.
	Keywords string `json:"keywords"`
}

// Text returns the text that is embedded for the caption.
func (c Caption) Text() string {
	return c.Name + " " + c.Description + " " + c.Keywords
}

// DefaultHashingDimension is the dimension of NewHashing(0).
const DefaultHashingDimension = 256

// Hashing embeds text by hashing word unigrams and bigrams into a fixed
// number of signed buckets and normalising the result to unit length. Texts
// that share words end up close under cosine distance.
type Hashing struct {
	dim int
}

// NewHashing creates a hashing embedder with dim buckets. dim <= 0 selects
// DefaultHashingDimension.
func NewHashing(dim int) *Hashing {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &Hashing{dim: dim}
}

// Dimension implements Embedder.
func (h *Hashing) Dimension() int { return h.dim }

// Embed implements Embedder.
func (h *Hashing) Embed(ctx context.Context, text string) (model.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	v := make(model.Vector, h.dim)
	for i, tok := range tokens {
		h.add(v, tok, 1)
		if i > 0 {
			h.add(v, tokens[i-1]+" "+tok, 0.5)
		}
	}
	if !distance.NormalizeL2InPlace(v) {
		// Every bucket cancelled out.
		v[int(xxhash.Sum64String(text)%uint64(h.dim))] = 1
	}
	return v, nil
}

func (h *Hashing) add(v model.Vector, feature string, weight float32) {
	sum := xxhash.Sum64String(feature)
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}

// Tokenize lowercases text and splits it into letter and digit runs.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
