package sdp

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Options tunes the interior-point solver.
type Options struct {
	MaxIterations int
	// Tolerance bounds the relative duality gap and the relative primal
	// and dual infeasibilities at termination.
	Tolerance float64
}

// DefaultOptions returns the solver defaults.
func DefaultOptions() Options {
	return Options{MaxIterations: 100, Tolerance: 1e-8}
}

const (
	stepFactor = 0.95
	// A solve that stops early is still accepted, flagged Inaccurate, when
	// its residuals are within acceptFactor·Tolerance.
	acceptFactor = 100
)

// InteriorPoint is an infeasible-start primal-dual path-following method
// with the HKM search direction and Mehrotra's predictor-corrector.
//
// The LMI is solved as the dual of the standard pair
//
//	(P) min ⟨C,X⟩  s.t. ⟨Aᵢ,X⟩ = bᵢ, X ⪰ 0
//	(D) max bᵀy    s.t. Σ yᵢAᵢ + Z = C, Z ⪰ 0
//
// with C = F₀ and Aᵢ = −Fᵢ, so that Z is the LMI slack F₀ + Σ yᵢFᵢ.
type InteriorPoint struct {
	opts Options
}

// NewInteriorPoint creates a solver. Zero option fields take their defaults.
func NewInteriorPoint(opts Options) *InteriorPoint {
	def := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	return &InteriorPoint{opts: opts}
}

// Name implements Solver.
func (s *InteriorPoint) Name() string { return NameInteriorPoint }

// Options returns the effective options.
func (s *InteriorPoint) Options() Options { return s.opts }

// compiled is a Problem in standard form with expanded coefficients.
type compiled struct {
	sizes []int
	dim   float64
	c     blocks
	a     [][][]term
	aNorm []float64
	b     []float64
}

func compile(p *Problem) *compiled {
	cp := &compiled{
		sizes: p.BlockSizes,
		b:     p.B,
		a:     make([][][]term, len(p.F)),
		aNorm: make([]float64, len(p.F)),
	}
	for _, n := range p.BlockSizes {
		cp.dim += float64(n)
	}
	cp.c = blocks(p.F0.Dense(p.BlockSizes))
	for i, f := range p.F {
		cp.a[i] = expand(f, len(p.BlockSizes), -1)
		var sq float64
		for _, ts := range cp.a[i] {
			for _, t := range ts {
				sq += t.val * t.val
			}
		}
		cp.aNorm[i] = math.Sqrt(sq)
	}
	return cp
}

// inner returns ⟨Aᵢ, G⟩ = Tr(Aᵢ G).
func (cp *compiled) inner(i int, g blocks) float64 {
	var sum float64
	for k, ts := range cp.a[i] {
		for _, t := range ts {
			sum += t.val * g[k].At(t.col, t.row)
		}
	}
	return sum
}

// apply returns the vector of ⟨Aᵢ, G⟩.
func (cp *compiled) apply(g blocks) []float64 {
	out := make([]float64, len(cp.b))
	for i := range out {
		out[i] = cp.inner(i, g)
	}
	return out
}

// adjoint returns Σ yᵢAᵢ.
func (cp *compiled) adjoint(y []float64) blocks {
	out := newBlocks(cp.sizes)
	for i, yi := range y {
		if yi == 0 {
			continue
		}
		for k, ts := range cp.a[i] {
			for _, t := range ts {
				out[k].Set(t.row, t.col, out[k].At(t.row, t.col)+yi*t.val)
			}
		}
	}
	return out
}

// schur returns the HKM Schur complement Mᵢⱼ = Tr(Aᵢ X Aⱼ W) with W = Z⁻¹.
func (cp *compiled) schur(x, w blocks) *mat.SymDense {
	m := len(cp.b)
	out := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		for j := i; j < m; j++ {
			var sum float64
			for k := range cp.sizes {
				ai, aj := cp.a[i][k], cp.a[j][k]
				if len(ai) == 0 || len(aj) == 0 {
					continue
				}
				xk, wk := x[k], w[k]
				for _, p := range ai {
					for _, q := range aj {
						sum += p.val * q.val * xk.At(p.col, q.row) * wk.At(q.col, p.row)
					}
				}
			}
			out.SetSym(i, j, sum)
		}
	}
	return out
}

// iterate is the current primal-dual point.
type iterate struct {
	x, z blocks
	y    []float64
}

// residuals summarizes an iterate.
type residuals struct {
	rp         []float64
	rd         blocks
	aty        blocks
	pobj, dobj float64
	mu         float64
	relGap     float64
	pinf, dinf float64
}

func (r residuals) worst() float64 {
	return math.Max(r.relGap, math.Max(r.pinf, r.dinf))
}

func (cp *compiled) residuals(it iterate, normB, normC float64) residuals {
	var r residuals
	ax := cp.apply(it.x)
	r.rp = make([]float64, len(cp.b))
	floats.SubTo(r.rp, cp.b, ax)

	r.aty = cp.adjoint(it.y)
	r.rd = cp.c.clone()
	r.rd.addScaled(-1, it.z)
	r.rd.addScaled(-1, r.aty)

	r.pobj = cp.c.dot(it.x)
	r.dobj = floats.Dot(cp.b, it.y)
	r.mu = it.x.dot(it.z) / cp.dim
	r.relGap = math.Abs(r.pobj-r.dobj) / (1 + math.Abs(r.pobj) + math.Abs(r.dobj))
	r.pinf = floats.Norm(r.rp, 2) / (1 + normB)
	r.dinf = r.rd.norm() / (1 + normC)
	return r
}

// Solve implements Solver. Numerical breakdown is reported through
// StatusFailed, not as an error; errors are reserved for invalid problems
// and cancellation.
func (s *InteriorPoint) Solve(ctx context.Context, p *Problem) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	cp := compile(p)
	m := len(cp.b)
	tol := s.opts.Tolerance

	normB := floats.Norm(cp.b, 2)
	normC := cp.c.norm()

	xi := math.Max(10, math.Sqrt(cp.dim))
	eta := math.Max(xi, normC)
	for i := 0; i < m; i++ {
		xi = math.Max(xi, cp.dim*(1+math.Abs(cp.b[i]))/(1+cp.aNorm[i]))
		eta = math.Max(eta, cp.aNorm[i])
	}
	it := iterate{
		x: identityBlocks(cp.sizes, xi),
		z: identityBlocks(cp.sizes, eta),
		y: make([]float64, m),
	}

	res := &Result{Status: StatusFailed}
	record := func(r residuals, iter int) {
		res.Iterations = iter
		res.Value = r.dobj
		res.PrimalObjective = r.pobj
		res.DualObjective = r.dobj
		res.Gap = r.relGap
		res.Y = append(res.Y[:0], it.y...)
	}

	var r residuals
	for iter := 0; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r = cp.residuals(it, normB, normC)
		record(r, iter)
		if r.worst() <= tol {
			res.Status = StatusOptimal
			return res, nil
		}
		if status, ok := certificate(cp, it, r, normB, tol); ok {
			res.Status = status
			return res, nil
		}
		if iter == s.opts.MaxIterations {
			break
		}

		next, ok := step(cp, it, r)
		if !ok {
			break
		}
		it = next
	}

	if r.worst() <= acceptFactor*tol {
		res.Status = StatusOptimal
		res.Inaccurate = true
	}
	return res, nil
}

// certificate detects infeasibility or unboundedness of the LMI from
// normalized rays of the current iterate.
func certificate(cp *compiled, it iterate, r residuals, normB, tol float64) (Status, bool) {
	// Σ yᵢAᵢ + Z ≈ 0 with bᵀy > 0: the LMI admits an improving ray.
	if r.dobj > 1 {
		ray := r.aty.clone()
		ray.addScaled(1, it.z)
		if ray.norm() <= tol*r.dobj {
			return StatusUnbounded, true
		}
	}
	// A(X) ≈ 0 with ⟨C,X⟩ < 0: X separates C from the feasible slacks.
	if r.pobj < -1 {
		ax := make([]float64, len(cp.b))
		floats.SubTo(ax, cp.b, r.rp)
		if floats.Norm(ax, 2) <= tol*(-r.pobj) {
			return StatusInfeasible, true
		}
	}
	return 0, false
}

// step takes one predictor-corrector step. ok is false on numerical
// breakdown.
func step(cp *compiled, it iterate, r residuals) (iterate, bool) {
	if r.mu <= 0 {
		return it, false
	}
	w, ok := inverse(it.z)
	if !ok {
		return it, false
	}
	solve := factorSchur(cp.schur(it.x, w))

	// Predictor: affine scaling direction.
	dxa, _, dza, ok := direction(cp, it, w, r, 0, nil, solve)
	if !ok {
		return it, false
	}
	ap, okp := stepLength(it.x, dxa, 1)
	ad, okd := stepLength(it.z, dza, 1)
	if !okp || !okd {
		return it, false
	}
	xa := it.x.clone()
	xa.addScaled(ap, dxa)
	za := it.z.clone()
	za.addScaled(ad, dza)
	muAff := xa.dot(za) / cp.dim
	sigma := math.Min(1, math.Pow(math.Max(0, muAff)/r.mu, 3))

	// Corrector with Mehrotra's second-order term.
	k := make(blocks, len(cp.sizes))
	for b := range cp.sizes {
		var kb mat.Dense
		kb.Mul(dxa[b], dza[b])
		k[b] = &kb
	}
	dx, dy, dz, ok := direction(cp, it, w, r, sigma*r.mu, k, solve)
	if !ok {
		return it, false
	}
	ap, okp = stepLength(it.x, dx, stepFactor)
	ad, okd = stepLength(it.z, dz, stepFactor)
	if !okp || !okd {
		return it, false
	}

	next := iterate{x: it.x.clone(), z: it.z.clone(), y: make([]float64, len(it.y))}
	next.x.addScaled(ap, dx)
	next.z.addScaled(ad, dz)
	floats.AddScaledTo(next.y, it.y, ad, dy)
	next.x.symmetrize()
	next.z.symmetrize()
	return next, true
}

// direction solves the HKM Newton system with centering target sigmaMu and
// optional second-order correction K:
//
//	dX = σμW − X − X·dZ·W − K·W,  dZ = Rd − Σ dyᵢAᵢ,  A(dX) = rp.
func direction(cp *compiled, it iterate, w blocks, r residuals, sigmaMu float64, k blocks,
	solve func([]float64) ([]float64, bool)) (blocks, []float64, blocks, bool) {

	// kernel returns σμW − X − X·D·W − K·W.
	kernel := func(d blocks) blocks {
		out := make(blocks, len(cp.sizes))
		for b := range cp.sizes {
			g := mat.DenseCopyOf(w[b])
			g.Scale(sigmaMu, g)
			g.Sub(g, it.x[b])
			var xd, xdw mat.Dense
			xd.Mul(it.x[b], d[b])
			xdw.Mul(&xd, w[b])
			g.Sub(g, &xdw)
			if k != nil {
				var kw mat.Dense
				kw.Mul(k[b], w[b])
				g.Sub(g, &kw)
			}
			out[b] = g
		}
		return out
	}

	g := kernel(r.rd)
	rhs := cp.apply(g)
	floats.SubTo(rhs, r.rp, rhs)
	dy, ok := solve(rhs)
	if !ok {
		return nil, nil, nil, false
	}

	dz := r.rd.clone()
	dz.addScaled(-1, cp.adjoint(dy))
	dx := kernel(dz)
	dx.symmetrize()
	return dx, dy, dz, true
}

// stepLength returns min(1, factor·α) where α is the largest step keeping
// x + α·dx positive semidefinite across all blocks.
func stepLength(x, dx blocks, factor float64) (float64, bool) {
	alpha := math.Inf(1)
	for b := range x {
		a, ok := maxStep(x[b], dx[b])
		if !ok {
			return 0, false
		}
		alpha = math.Min(alpha, a)
	}
	return math.Min(1, factor*alpha), true
}

// maxStep returns the largest α with x + α·dx ⪰ 0, or +Inf when every
// α ≥ 0 qualifies. ok is false when x is not positive definite.
func maxStep(x, dx *mat.Dense) (float64, bool) {
	var chol mat.Cholesky
	if !chol.Factorize(symmetric(x)) {
		return 0, false
	}
	var l, li mat.TriDense
	chol.LTo(&l)
	if err := li.InverseTri(&l); err != nil && !isCondition(err) {
		return 0, false
	}
	var t, s mat.Dense
	t.Mul(&li, dx)
	s.Mul(&t, li.T())

	var eig mat.EigenSym
	if !eig.Factorize(symmetric(&s), false) {
		return 0, false
	}
	lo := floats.Min(eig.Values(nil))
	if lo >= 0 {
		return math.Inf(1), true
	}
	return -1 / lo, true
}

// inverse returns the block-wise inverse of a positive definite matrix.
func inverse(z blocks) (blocks, bool) {
	out := make(blocks, len(z))
	for b, m := range z {
		var chol mat.Cholesky
		if !chol.Factorize(symmetric(m)) {
			return nil, false
		}
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err != nil && !isCondition(err) {
			return nil, false
		}
		out[b] = mat.DenseCopyOf(&inv)
	}
	return out, true
}

// factorSchur prepares a solver for M·dy = r. It tries a Cholesky
// factorization, then a diagonally regularized one, then LU.
func factorSchur(m *mat.SymDense) func([]float64) ([]float64, bool) {
	var chol mat.Cholesky
	if chol.Factorize(m) {
		return cholSolver(&chol)
	}

	n, _ := m.Dims()
	var maxDiag float64
	for i := 0; i < n; i++ {
		maxDiag = math.Max(maxDiag, math.Abs(m.At(i, i)))
	}
	reg := mat.NewSymDense(n, nil)
	reg.CopySym(m)
	shift := 1e-12 * math.Max(1, maxDiag)
	for i := 0; i < n; i++ {
		reg.SetSym(i, i, m.At(i, i)+shift)
	}
	if chol.Factorize(reg) {
		return cholSolver(&chol)
	}

	dense := mat.DenseCopyOf(m)
	return func(r []float64) ([]float64, bool) {
		var x mat.VecDense
		if err := x.SolveVec(dense, mat.NewVecDense(len(r), append([]float64(nil), r...))); err != nil && !isCondition(err) {
			return nil, false
		}
		return finite(mat.Col(nil, 0, &x))
	}
}

func cholSolver(chol *mat.Cholesky) func([]float64) ([]float64, bool) {
	return func(r []float64) ([]float64, bool) {
		var x mat.VecDense
		if err := chol.SolveVecTo(&x, mat.NewVecDense(len(r), append([]float64(nil), r...))); err != nil && !isCondition(err) {
			return nil, false
		}
		return finite(mat.Col(nil, 0, &x))
	}
}

func finite(v []float64) ([]float64, bool) {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, false
		}
	}
	return v, true
}

func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}
