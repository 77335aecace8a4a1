package embedding

import (
	"fmt"
	"math"
	"math/rand"
)

// Network is a small feed-forward similarity transform: two hidden
// layers with ReLU and dropout, and a tanh-bounded output layer. It is
// not a classifier; a deterministically seeded random initialization is
// an acceptable default since its purpose is smooth dimensionality
// reduction for cosine comparison. Callers may retrain it later.
type Network struct {
	layers   []*denseLayer
	dropout  float64
	training bool
	rng      *rand.Rand
}

type denseLayer struct {
	weights [][]float64 // [out][in]
	biases  []float64
	output  activation
}

type activation int

const (
	actReLU activation = iota
	actTanh
)

// NewNetwork builds the default topology: in → 64 → 48 → out.
func NewNetwork(inputDim, outputDim int, dropout float64, seed int64) (*Network, error) {
	if inputDim <= 0 || outputDim <= 0 {
		return nil, fmt.Errorf("invalid network dimensions %d -> %d", inputDim, outputDim)
	}
	if dropout < 0 || dropout >= 1 {
		return nil, fmt.Errorf("dropout must be within [0,1), got %v", dropout)
	}

	rng := rand.New(rand.NewSource(seed))
	dims := []int{inputDim, 64, 48, outputDim}

	n := &Network{dropout: dropout, rng: rng}
	for i := 0; i < len(dims)-1; i++ {
		out := actReLU
		if i == len(dims)-2 {
			out = actTanh
		}
		n.layers = append(n.layers, newDenseLayer(dims[i], dims[i+1], out, rng))
	}

	return n, nil
}

// newDenseLayer initializes weights with scaled uniform noise
// (He-style fan-in scaling) so activations stay well conditioned.
func newDenseLayer(inDim, outDim int, out activation, rng *rand.Rand) *denseLayer {
	scale := math.Sqrt(2.0 / float64(inDim))
	l := &denseLayer{
		weights: make([][]float64, outDim),
		biases:  make([]float64, outDim),
		output:  out,
	}
	for o := range l.weights {
		row := make([]float64, inDim)
		for i := range row {
			row[i] = (rng.Float64()*2 - 1) * scale
		}
		l.weights[o] = row
	}
	return l
}

// SetTraining toggles dropout. Inference mode (the default) applies no
// dropout, so forward passes are deterministic.
func (n *Network) SetTraining(training bool) {
	n.training = training
}

// Forward runs one input through the network.
func (n *Network) Forward(input []float64) ([]float64, error) {
	if len(n.layers) == 0 {
		return nil, fmt.Errorf("network not initialized")
	}
	if len(input) != len(n.layers[0].weights[0]) {
		return nil, fmt.Errorf("input dimension %d does not match network input %d",
			len(input), len(n.layers[0].weights[0]))
	}

	x := input
	for i, layer := range n.layers {
		x = layer.forward(x)
		// Dropout applies to hidden layers only, and only in training.
		if n.training && i < len(n.layers)-1 && n.dropout > 0 {
			x = n.applyDropout(x)
		}
	}

	return x, nil
}

// OutputDim returns the embedding dimension.
func (n *Network) OutputDim() int {
	return len(n.layers[len(n.layers)-1].weights)
}

func (l *denseLayer) forward(x []float64) []float64 {
	out := make([]float64, len(l.weights))
	for o, row := range l.weights {
		sum := l.biases[o]
		for i, w := range row {
			sum += w * x[i]
		}
		switch l.output {
		case actTanh:
			out[o] = math.Tanh(sum)
		default:
			if sum > 0 {
				out[o] = sum
			}
		}
	}
	return out
}

// applyDropout uses inverted dropout so inference needs no rescaling.
func (n *Network) applyDropout(x []float64) []float64 {
	keep := 1 - n.dropout
	out := make([]float64, len(x))
	for i, v := range x {
		if n.rng.Float64() < keep {
			out[i] = v / keep
		}
	}
	return out
}

// Cosine returns the cosine similarity of two vectors, in [-1,1].
// Zero-magnitude vectors yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(magA) * math.Sqrt(magB))
	// Guard against rounding drift outside the valid range.
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}
