package logits

import (
	"math"
	"math/rand"
)

// Config fixes the sampling behaviour for one generation request.
type Config struct {
	Seed          int64
	Temperature   float32
	TopK          int
	TopP          float32
	MinP          float32
	RepeatPenalty float32
	RepeatLastN   int
}

// Pipeline draws the next token from a logit vector under the configured
// temperature, top-k, top-p, min-p and repeat-penalty semantics. Build a
// fresh pipeline per generation request with NewPipeline: the repeat-penalty
// history it accumulates through Accept must never leak into an unrelated
// request. Given the same config, seed and logits, Sample is deterministic.
type Pipeline struct {
	rng    *rand.Rand
	cfg    Config
	greedy bool

	recent []int32

	topIdx []int
	topVal []float32
	prob   []float64
}

// NewPipeline returns a pipeline with clean penalty history. Out-of-range
// config values fall back to defaults; Temperature <= 0 selects greedy
// decoding.
func NewPipeline(cfg Config) *Pipeline {
	greedy := cfg.Temperature <= 0
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 40
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.RepeatPenalty <= 0 {
		cfg.RepeatPenalty = 1.0
	}
	if cfg.RepeatLastN <= 0 {
		cfg.RepeatLastN = 64
	}
	return &Pipeline{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		greedy: greedy,
	}
}

// Accept records a chosen token into the repeat-penalty window.
func (p *Pipeline) Accept(tok int32) {
	p.recent = append(p.recent, tok)
	if n := p.cfg.RepeatLastN; len(p.recent) > n {
		p.recent = p.recent[len(p.recent)-n:]
	}
}

// Sample selects the next token id from logits. The slice is modified in
// place when a repeat penalty applies.
//
// The pipeline is: penalise recently accepted tokens, then either argmax
// (greedy) or temperature-scaled top-k shortlist, softmax, min-p and top-p
// truncation, and a seeded random draw from what remains.
func (p *Pipeline) Sample(logits []float32) int32 {
	if p.cfg.RepeatPenalty > 1.0 && len(p.recent) > 0 {
		p.penalise(logits)
	}

	if p.greedy || (p.cfg.TopK == 1 && p.cfg.TopP >= 1 && p.cfg.Temperature == 1) {
		return int32(argmax(logits))
	}

	invTemp := 1.0 / p.cfg.Temperature
	k := min(p.cfg.TopK, len(logits))
	topIdx, topVal := p.topK(logits, k, invTemp)
	if len(topVal) == 0 {
		return 0
	}

	// Softmax over the shortlist, shifted by the max for stability.
	maxv := topVal[0]
	for _, v := range topVal[1:] {
		if v > maxv {
			maxv = v
		}
	}
	if cap(p.prob) < len(topVal) {
		p.prob = make([]float64, len(topVal))
	}
	prob := p.prob[:len(topVal)]
	var sum float64
	for i, v := range topVal {
		e := math.Exp(float64(v - maxv))
		prob[i] = e
		sum += e
	}
	if sum == 0 {
		return int32(topIdx[0])
	}
	for i := range prob {
		prob[i] /= sum
	}

	if p.cfg.MinP > 0 {
		threshold := prob[0] * float64(p.cfg.MinP)
		keep := 0
		var kept float64
		for i := range prob {
			if prob[i] >= threshold {
				prob[keep] = prob[i]
				topIdx[keep] = topIdx[i]
				kept += prob[i]
				keep++
			}
		}
		if keep < len(prob) && kept > 0 {
			prob = prob[:keep]
			for i := range prob {
				prob[i] /= kept
			}
		}
	}

	cut := len(prob)
	if p.cfg.TopP < 1 {
		var c float64
		for i := range prob {
			c += prob[i]
			if float32(c) >= p.cfg.TopP {
				cut = i + 1
				break
			}
		}
	}

	r := p.rng.Float64()
	var c float64
	for i := 0; i < cut; i++ {
		c += prob[i]
		if r <= c {
			return int32(topIdx[i])
		}
	}
	return int32(topIdx[cut-1])
}

// penalise divides positive logits of recently accepted tokens by the
// repeat penalty and multiplies negative ones, matching the usual
// repetition-penalty formulation.
func (p *Pipeline) penalise(logits []float32) {
	seen := make(map[int32]struct{}, len(p.recent))
	for _, id := range p.recent {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if id < 0 || int(id) >= len(logits) {
			continue
		}
		if logits[id] > 0 {
			logits[id] /= p.cfg.RepeatPenalty
		} else {
			logits[id] *= p.cfg.RepeatPenalty
		}
	}
}

func argmax(x []float32) int {
	if len(x) == 0 {
		return 0
	}
	bestI := 0
	bestV := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > bestV {
			bestV = x[i]
			bestI = i
		}
	}
	return bestI
}

// topK returns the indices and temperature-scaled values of the k largest
// logits, ordered descending. O(V*K) insertion keeps allocations reused
// across steps; fine for the small K used in practice.
func (p *Pipeline) topK(logits []float32, k int, invTemp float32) ([]int, []float32) {
	if k <= 0 {
		return nil, nil
	}
	if cap(p.topIdx) < k+1 {
		p.topIdx = make([]int, 0, k+1)
		p.topVal = make([]float32, 0, k+1)
	}
	topIdx := p.topIdx[:0]
	topVal := p.topVal[:0]

	for i, l := range logits {
		v := l * invTemp
		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}
		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v
		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	if len(topIdx) == 0 {
		return []int{0}, []float32{0}
	}
	p.topIdx = topIdx
	p.topVal = topVal
	return topIdx, topVal
}
