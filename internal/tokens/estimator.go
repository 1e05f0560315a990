// Package tokens estimates prompt token counts for cost-based provider
// selection and generation budgeting.
package tokens

import (
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with tiktoken where an encoding is known and
// falls back to a chars/4 heuristic otherwise. Codecs are cached since
// building them is expensive.
type Estimator struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewEstimator creates an Estimator.
func NewEstimator() *Estimator {
	return &Estimator{codecs: make(map[tokenizer.Encoding]tokenizer.Codec)}
}

// Estimate returns the approximate token count of text for model.
func (e *Estimator) Estimate(model, text string) int {
	if text == "" {
		return 0
	}

	codec, err := e.codecForModel(model)
	if err != nil {
		return heuristicCount(text)
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return heuristicCount(text)
	}
	return len(ids)
}

// EstimateMessages sums Estimate over message contents plus a small
// fixed per-message overhead for role framing.
func (e *Estimator) EstimateMessages(model string, contents []string) int {
	const perMessageOverhead = 4
	total := 0
	for _, c := range contents {
		total += e.Estimate(model, c) + perMessageOverhead
	}
	return total
}

func (e *Estimator) codecForModel(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(tokenizer.Model(strings.ToLower(model))); err == nil {
		return codec, nil
	}

	// Anything we do not recognize gets cl100k_base, which is close
	// enough for a cost estimate.
	encoding := tokenizer.Cl100kBase
	if strings.HasPrefix(strings.ToLower(model), "gpt-4o") {
		encoding = tokenizer.O200kBase
	}

	e.mu.RLock()
	cached, ok := e.codecs[encoding]
	e.mu.RUnlock()
	if ok {
		return cached, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.codecs[encoding] = codec
	e.mu.Unlock()
	return codec, nil
}

func heuristicCount(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}
