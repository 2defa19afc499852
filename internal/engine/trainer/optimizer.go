package trainer

import "math"

// param is one trainable tensor with its gradient and optimizer state.
type param struct {
	values []float64
	grads  []float64
	decay  bool // apply weight decay; biases are exempt

	m, v []float64 // AdamW moments
}

func (p *param) zeroGrad() {
	clear(p.grads)
}

type optimizer interface {
	step(params []*param, lr float64)
}

func newOptimizer(name string, weightDecay float64) optimizer {
	if name == OptimizerSGD {
		return &sgd{weightDecay: weightDecay}
	}
	return &adamW{beta1: 0.9, beta2: 0.999, eps: 1e-8, weightDecay: weightDecay}
}

// adamW is Adam with decoupled weight decay.
type adamW struct {
	beta1, beta2, eps float64
	weightDecay       float64
	t                 int
}

func (o *adamW) step(params []*param, lr float64) {
	o.t++
	bc1 := 1 - math.Pow(o.beta1, float64(o.t))
	bc2 := 1 - math.Pow(o.beta2, float64(o.t))

	for _, p := range params {
		if p.m == nil {
			p.m = make([]float64, len(p.values))
			p.v = make([]float64, len(p.values))
		}
		for i, g := range p.grads {
			p.m[i] = o.beta1*p.m[i] + (1-o.beta1)*g
			p.v[i] = o.beta2*p.v[i] + (1-o.beta2)*g*g
			if p.decay {
				p.values[i] -= lr * o.weightDecay * p.values[i]
			}
			p.values[i] -= lr * (p.m[i] / bc1) / (math.Sqrt(p.v[i]/bc2) + o.eps)
		}
	}
}

// sgd is plain gradient descent with L2 weight decay.
type sgd struct {
	weightDecay float64
}

func (o *sgd) step(params []*param, lr float64) {
	for _, p := range params {
		for i, g := range p.grads {
			if p.decay {
				g += o.weightDecay * p.values[i]
			}
			p.values[i] -= lr * g
		}
	}
}
