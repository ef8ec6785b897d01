package orbital

// Dormand-Prince 5(4) coefficients. Only the 5th-order weights are used: the
// step size is fixed, so the embedded 4th-order solution has nothing to
// control.
var (
	cDP = [7]float64{0, 1 / 5., 3 / 10., 4 / 5., 8 / 9., 1, 1}

	aDP = [7][6]float64{
		{},
		{1 / 5.},
		{3 / 40., 9 / 40.},
		{44 / 45., -56 / 15., 32 / 9.},
		{19372 / 6561., -25360 / 2187., 64448 / 6561., -212 / 729.},
		{9017 / 3168., -355 / 33., 46732 / 5247., 49 / 176., -5103 / 18656.},
		{35 / 384., 0, 500 / 1113., 125 / 192., -2187 / 6784., 11 / 84.},
	}

	bDP = [7]float64{35 / 384., 0, 500 / 1113., 125 / 192., -2187 / 6784., 11 / 84., 0}
)

// Dopri54 defines a fixed-step Dormand-Prince 5(4) integrator. Same contract
// as the RK4 and Midpoint solvers, two orders more accurate per step, seven
// derivative evaluations.
type Dopri54 struct {
	X0        float64    // The initial x0.
	StepSize  float64    // The step size.
	Integator Integrable // What is to be integrated.
}

// NewDopri54 returns a new Dopri54 integrator instance.
func NewDopri54(x0 float64, stepSize float64, inte Integrable) (d *Dopri54) {
	if stepSize <= 0 {
		panic("config StepSize must be positive")
	}
	if inte == nil {
		panic("config Integator may not be nil")
	}
	d = &Dopri54{X0: x0, StepSize: stepSize, Integator: inte}
	return
}

// Solve solves the configured Dopri54 integrator.
// Returns the number of iterations performed and the last X_i, or an error.
func (d *Dopri54) Solve() (uint64, float64, error) {
	iterNum := uint64(0)
	xi := d.X0
	for !d.Integator.Stop(xi) {
		state := d.Integator.GetState()
		n := len(state)
		var k [7][]float64

		k[0] = d.Integator.Func(xi, state)
		for i := 1; i < 7; i++ {
			tState := make([]float64, n)
			copy(tState, state)
			for j := 0; j < i; j++ {
				if aDP[i][j] == 0 {
					continue
				}
				for p := 0; p < n; p++ {
					tState[p] += d.StepSize * aDP[i][j] * k[j][p]
				}
			}
			k[i] = d.Integator.Func(xi+cDP[i]*d.StepSize, tState)
		}

		newState := make([]float64, n)
		copy(newState, state)
		for i := 0; i < 7; i++ {
			if bDP[i] == 0 {
				continue
			}
			for p := 0; p < n; p++ {
				newState[p] += d.StepSize * bDP[i] * k[i][p]
			}
		}
		d.Integator.SetState(xi, newState)

		xi += d.StepSize
		iterNum++
	}

	return iterNum, xi, nil
}
