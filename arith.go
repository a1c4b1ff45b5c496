package harold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/andresbh/harold/matutil"
	"github.com/andresbh/harold/poly"
)

// operandKind tags the classification every operator performs once on
// its right hand side before dispatching.
type operandKind int

const (
	kindTransfer operandKind = iota
	kindState
	kindMatrix
	kindScalar
)

type operand struct {
	kind   operandKind
	tf     *Transfer
	ss     *State
	mtx    *mat.Dense
	scalar float64
}

// classifyOperand sorts a raw operand into model, matrix or scalar. A
// 1x1 matrix degrades to a scalar; complex values with a nonzero
// imaginary part are rejected outright.
func classifyOperand(v any) (operand, error) {
	switch t := v.(type) {
	case *Transfer:
		return operand{kind: kindTransfer, tf: t}, nil
	case *State:
		return operand{kind: kindState, ss: t}, nil
	case int:
		return operand{kind: kindScalar, scalar: float64(t)}, nil
	case float64:
		return operand{kind: kindScalar, scalar: t}, nil
	case complex128:
		if imag(t) != 0 {
			return operand{}, fmt.Errorf("%w: complex valued operands", ErrUnsupported)
		}
		return operand{kind: kindScalar, scalar: real(t)}, nil
	case []float64, [][]float64, mat.Matrix:
		m, err := toDense(t, "operand")
		if err != nil {
			return operand{}, err
		}
		if r, c := m.Dims(); r == 1 && c == 1 {
			return operand{kind: kindScalar, scalar: m.At(0, 0)}, nil
		}
		return operand{kind: kindMatrix, mtx: m}, nil
	default:
		return operand{}, fmt.Errorf("%w: operand of type %T", ErrType, v)
	}
}

func checkSampling(a, b System) error {
	if !sameSampling(a.SamplingPeriod(), b.SamplingPeriod()) {
		return fmt.Errorf("%w: %v vs %v", ErrSamplingMismatch,
			a.SamplingPeriod(), b.SamplingPeriod())
	}
	return nil
}

func checkShapes(a, b System, op string) error {
	ap, am := a.Shape()
	bp, bm := b.Shape()
	if ap != bp || am != bm {
		return fmt.Errorf("%w: %s requires matching shapes, got %dx%d vs %dx%d",
			ErrShape, op, ap, am, bp, bm)
	}
	return nil
}

// Neg returns the negation of a model.
func Neg(g System) (System, error) {
	switch t := g.(type) {
	case *Transfer:
		return t.Neg(), nil
	case *State:
		return t.Neg(), nil
	default:
		return nil, fmt.Errorf("%w: cannot negate %T", ErrType, g)
	}
}

// Add returns left + right. The right operand may be a model, a plain
// matrix of matching shape or a scalar; a scalar is broadcast through a
// same shaped ones matrix, not an identity. Two models must carry the
// same sampling period.
func Add(left System, right any) (System, error) {
	op, err := classifyOperand(right)
	if err != nil {
		return nil, err
	}
	switch l := left.(type) {
	case *Transfer:
		switch op.kind {
		case kindScalar:
			g, err := gainTransfer(matutil.Full(l.p, l.m, op.scalar), l.dt)
			if err != nil {
				return nil, err
			}
			return addTransfers(l, g)
		case kindMatrix:
			if err := checkMatrixShape(l, op.mtx, "addition"); err != nil {
				return nil, err
			}
			g, err := gainTransfer(op.mtx, l.dt)
			if err != nil {
				return nil, err
			}
			return addTransfers(l, g)
		case kindTransfer:
			if err := checkSampling(l, op.tf); err != nil {
				return nil, err
			}
			if err := checkShapes(l, op.tf, "addition"); err != nil {
				return nil, err
			}
			return addTransfers(l, op.tf)
		default:
			if err := checkSampling(l, op.ss); err != nil {
				return nil, err
			}
			if err := checkShapes(l, op.ss, "addition"); err != nil {
				return nil, err
			}
			ls, err := TransferToState(l)
			if err != nil {
				return nil, err
			}
			return addStates(ls, op.ss)
		}
	case *State:
		switch op.kind {
		case kindScalar:
			g, err := newStateFromMatrices(nil, nil, nil, matutil.Full(l.p, l.m, op.scalar), l.dt)
			if err != nil {
				return nil, err
			}
			return addStates(l, g)
		case kindMatrix:
			if err := checkMatrixShape(l, op.mtx, "addition"); err != nil {
				return nil, err
			}
			g, err := newStateFromMatrices(nil, nil, nil, op.mtx, l.dt)
			if err != nil {
				return nil, err
			}
			return addStates(l, g)
		case kindState:
			if err := checkSampling(l, op.ss); err != nil {
				return nil, err
			}
			if err := checkShapes(l, op.ss, "addition"); err != nil {
				return nil, err
			}
			return addStates(l, op.ss)
		default:
			if err := checkSampling(l, op.tf); err != nil {
				return nil, err
			}
			if err := checkShapes(l, op.tf, "addition"); err != nil {
				return nil, err
			}
			rs, err := TransferToState(op.tf)
			if err != nil {
				return nil, err
			}
			return addStates(l, rs)
		}
	default:
		return nil, fmt.Errorf("%w: left operand of type %T", ErrType, left)
	}
}

// Sub returns left - right by negating the right operand first.
func Sub(left System, right any) (System, error) {
	op, err := classifyOperand(right)
	if err != nil {
		return nil, err
	}
	switch op.kind {
	case kindScalar:
		return Add(left, -op.scalar)
	case kindMatrix:
		neg := denseCopy(op.mtx)
		neg.Scale(-1, neg)
		return Add(left, neg)
	case kindTransfer:
		return Add(left, op.tf.Neg())
	default:
		return Add(left, op.ss.Neg())
	}
}

// Mul returns the elementwise (Hadamard) product of left and right. A
// SISO model broadcasts across a MIMO operand; otherwise the shapes
// must match. State models use a Kronecker construction so the product
// never takes a detour through transfer functions.
func Mul(left System, right any) (System, error) {
	op, err := classifyOperand(right)
	if err != nil {
		return nil, err
	}
	switch l := left.(type) {
	case *Transfer:
		switch op.kind {
		case kindScalar:
			return scaleTransfer(l, op.scalar)
		case kindMatrix:
			return mulTransferMatrix(l, op.mtx)
		case kindTransfer:
			if err := checkSampling(l, op.tf); err != nil {
				return nil, err
			}
			return mulTransfers(l, op.tf)
		default:
			if err := checkSampling(l, op.ss); err != nil {
				return nil, err
			}
			if err := checkShapes(l, op.ss, "elementwise multiplication"); err != nil {
				return nil, err
			}
			ls, err := TransferToState(l)
			if err != nil {
				return nil, err
			}
			return mulStates(ls, op.ss)
		}
	case *State:
		switch op.kind {
		case kindScalar:
			return MatMul(l, op.scalar)
		case kindMatrix:
			if err := checkMatrixShape(l, op.mtx, "elementwise multiplication"); err != nil {
				return nil, err
			}
			g, err := newStateFromMatrices(nil, nil, nil, op.mtx, l.dt)
			if err != nil {
				return nil, err
			}
			return mulStates(l, g)
		case kindState:
			if err := checkSampling(l, op.ss); err != nil {
				return nil, err
			}
			if err := checkShapes(l, op.ss, "elementwise multiplication"); err != nil {
				return nil, err
			}
			return mulStates(l, op.ss)
		default:
			if err := checkSampling(l, op.tf); err != nil {
				return nil, err
			}
			if err := checkShapes(l, op.tf, "elementwise multiplication"); err != nil {
				return nil, err
			}
			rs, err := TransferToState(op.tf)
			if err != nil {
				return nil, err
			}
			return mulStates(l, rs)
		}
	default:
		return nil, fmt.Errorf("%w: left operand of type %T", ErrType, left)
	}
}

// MatMul returns the cascade product left @ right, contracting the
// inputs of left against the outputs of right. A SISO operand on either
// side degrades the operation to elementwise multiplication.
func MatMul(left System, right any) (System, error) {
	op, err := classifyOperand(right)
	if err != nil {
		return nil, err
	}
	switch l := left.(type) {
	case *Transfer:
		switch op.kind {
		case kindScalar:
			return scaleTransfer(l, op.scalar)
		case kindMatrix:
			if l.siso {
				return mulTransferMatrix(l, op.mtx)
			}
			return matmulTransferMatrix(l, op.mtx)
		case kindTransfer:
			if err := checkSampling(l, op.tf); err != nil {
				return nil, err
			}
			if l.siso || op.tf.siso {
				return mulTransfers(l, op.tf)
			}
			return matmulTransfers(l, op.tf)
		default:
			if err := checkSampling(l, op.ss); err != nil {
				return nil, err
			}
			ls, err := TransferToState(l)
			if err != nil {
				return nil, err
			}
			return matmulStates(ls, op.ss)
		}
	case *State:
		switch op.kind {
		case kindScalar:
			return scaleState(l, op.scalar)
		case kindMatrix:
			return matmulStateMatrix(l, op.mtx)
		case kindState:
			if err := checkSampling(l, op.ss); err != nil {
				return nil, err
			}
			return matmulStates(l, op.ss)
		default:
			if err := checkSampling(l, op.tf); err != nil {
				return nil, err
			}
			rs, err := TransferToState(op.tf)
			if err != nil {
				return nil, err
			}
			return matmulStates(l, rs)
		}
	default:
		return nil, fmt.Errorf("%w: left operand of type %T", ErrType, left)
	}
}

// Div returns left scaled by the reciprocal of a real scalar. Division
// by a model or a matrix is not defined.
func Div(left System, right any) (System, error) {
	op, err := classifyOperand(right)
	if err != nil {
		return nil, err
	}
	if op.kind != kindScalar {
		return nil, fmt.Errorf("%w: division is only defined by a real scalar", ErrUnsupported)
	}
	return DivScalar(left, op.scalar)
}

// DivScalar scales the model by 1/s.
func DivScalar(left System, s float64) (System, error) {
	if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		return nil, fmt.Errorf("%w: division by %v", ErrType, s)
	}
	switch l := left.(type) {
	case *Transfer:
		return scaleTransfer(l, 1/s)
	case *State:
		return scaleState(l, 1/s)
	default:
		return nil, fmt.Errorf("%w: left operand of type %T", ErrType, left)
	}
}

func checkMatrixShape(g System, m *mat.Dense, op string) error {
	p, q := g.Shape()
	r, c := m.Dims()
	if r != p || c != q {
		return fmt.Errorf("%w: %s requires matching shapes, got %dx%d vs %dx%d",
			ErrShape, op, p, q, r, c)
	}
	return nil
}

// gainTransfer wraps a plain matrix as a static gain transfer model.
func gainTransfer(m *mat.Dense, dt float64) (*Transfer, error) {
	p, q := m.Dims()
	nums := make([][]poly.Poly, p)
	dens := make([][]poly.Poly, p)
	for r := 0; r < p; r++ {
		nums[r] = make([]poly.Poly, q)
		dens[r] = make([]poly.Poly, q)
		for c := 0; c < q; c++ {
			nums[r][c] = poly.Poly{m.At(r, c)}
			dens[r][c] = poly.Poly{1}
		}
	}
	return newTransferFromGrids(nums, dens, dt)
}

// addSISOPair adds two rational entries over the least common multiple
// of their denominators.
func addSISOPair(n1, d1, n2, d2 poly.Poly) (poly.Poly, poly.Poly, error) {
	lcm, mults, err := poly.LCM(d1, d2)
	if err != nil {
		return nil, nil, err
	}
	num := poly.Add(poly.Mul(n1, mults[0]), poly.Mul(n2, mults[1]))
	return poly.Trim(num), lcm, nil
}

func addTransfers(a, b *Transfer) (*Transfer, error) {
	nums := make([][]poly.Poly, a.p)
	dens := make([][]poly.Poly, a.p)
	anyNonzero := false
	for r := 0; r < a.p; r++ {
		nums[r] = make([]poly.Poly, a.m)
		dens[r] = make([]poly.Poly, a.m)
		for c := 0; c < a.m; c++ {
			num, den, err := addSISOPair(a.nums[r][c], a.dens[r][c], b.nums[r][c], b.dens[r][c])
			if err != nil {
				return nil, err
			}
			nums[r][c], dens[r][c] = num, den
			if !num.IsZero() {
				anyNonzero = true
			}
		}
	}
	if !anyNonzero {
		return zeroTransfer(a.p, a.m, a.dt)
	}
	return newTransferFromGrids(nums, dens, a.dt)
}

func scaleTransfer(g *Transfer, s float64) (*Transfer, error) {
	if s == 0 {
		return zeroTransfer(g.p, g.m, g.dt)
	}
	nums := make([][]poly.Poly, g.p)
	for r := 0; r < g.p; r++ {
		nums[r] = make([]poly.Poly, g.m)
		for c := 0; c < g.m; c++ {
			nums[r][c] = g.nums[r][c].Scale(s)
		}
	}
	return newTransferFromGrids(nums, copyGrid(g.dens), g.dt)
}

// mulTransferMatrix multiplies elementwise by a plain matrix. A SISO
// model broadcasts to the matrix shape.
func mulTransferMatrix(g *Transfer, arr *mat.Dense) (*Transfer, error) {
	ar, ac := arr.Dims()
	if !g.siso {
		if err := checkMatrixShape(g, arr, "elementwise multiplication"); err != nil {
			return nil, err
		}
	}
	nums := make([][]poly.Poly, ar)
	dens := make([][]poly.Poly, ar)
	for r := 0; r < ar; r++ {
		nums[r] = make([]poly.Poly, ac)
		dens[r] = make([]poly.Poly, ac)
		for c := 0; c < ac; c++ {
			num, den := g.nums[0][0], g.dens[0][0]
			if !g.siso {
				num, den = g.nums[r][c], g.dens[r][c]
			}
			if v := arr.At(r, c); v == 0 || num.IsZero() {
				nums[r][c], dens[r][c] = poly.Poly{0}, poly.Poly{1}
			} else {
				nums[r][c], dens[r][c] = num.Scale(v), den.Clone()
			}
		}
	}
	return newTransferFromGrids(nums, dens, g.dt)
}

func mulTransfers(a, b *Transfer) (*Transfer, error) {
	// Static gains multiply through their plain matrices.
	if a.gain {
		arr, err := a.ToArray()
		if err != nil {
			return nil, err
		}
		return mulTransferMatrix(b, arr)
	}
	if b.gain {
		arr, err := b.ToArray()
		if err != nil {
			return nil, err
		}
		return mulTransferMatrix(a, arr)
	}
	if a.siso && b.siso {
		if a.nums[0][0].IsZero() || b.nums[0][0].IsZero() {
			return zeroTransfer(1, 1, a.dt)
		}
		num := poly.Mul(a.nums[0][0], b.nums[0][0])
		den := poly.Mul(a.dens[0][0], b.dens[0][0])
		return newTransferFromGrids([][]poly.Poly{{num}}, [][]poly.Poly{{den}}, a.dt)
	}
	// One side SISO broadcasts across the other.
	if a.siso || b.siso {
		s, mm := a, b
		if b.siso {
			s, mm = b, a
		}
		nums := make([][]poly.Poly, mm.p)
		dens := make([][]poly.Poly, mm.p)
		for r := 0; r < mm.p; r++ {
			nums[r] = make([]poly.Poly, mm.m)
			dens[r] = make([]poly.Poly, mm.m)
			for c := 0; c < mm.m; c++ {
				if s.nums[0][0].IsZero() || mm.nums[r][c].IsZero() {
					nums[r][c], dens[r][c] = poly.Poly{0}, poly.Poly{1}
				} else {
					nums[r][c] = poly.Mul(s.nums[0][0], mm.nums[r][c])
					dens[r][c] = poly.Mul(s.dens[0][0], mm.dens[r][c])
				}
			}
		}
		return newTransferFromGrids(nums, dens, a.dt)
	}
	if err := checkShapes(a, b, "elementwise multiplication"); err != nil {
		return nil, err
	}
	nums := make([][]poly.Poly, a.p)
	dens := make([][]poly.Poly, a.p)
	for r := 0; r < a.p; r++ {
		nums[r] = make([]poly.Poly, a.m)
		dens[r] = make([]poly.Poly, a.m)
		for c := 0; c < a.m; c++ {
			if a.nums[r][c].IsZero() || b.nums[r][c].IsZero() {
				nums[r][c], dens[r][c] = poly.Poly{0}, poly.Poly{1}
			} else {
				nums[r][c] = poly.Mul(a.nums[r][c], b.nums[r][c])
				dens[r][c] = poly.Mul(a.dens[r][c], b.dens[r][c])
			}
		}
	}
	return newTransferFromGrids(nums, dens, a.dt)
}

// matmulTransferMatrix contracts a MIMO transfer model against a plain
// matrix: the result has the model's outputs and the matrix's columns,
// entry (r, c) being the sum over k of entry (r, k) scaled by
// arr(k, c).
func matmulTransferMatrix(g *Transfer, arr *mat.Dense) (*Transfer, error) {
	ar, ac := arr.Dims()
	if g.m != ar {
		return nil, fmt.Errorf("%w: model has %d inputs but the matrix has %d rows", ErrShape, g.m, ar)
	}
	if g.gain {
		ga, err := g.ToArray()
		if err != nil {
			return nil, err
		}
		var prod mat.Dense
		prod.Mul(ga, arr)
		return gainTransfer(&prod, g.dt)
	}
	nums := make([][]poly.Poly, g.p)
	dens := make([][]poly.Poly, g.p)
	for r := 0; r < g.p; r++ {
		nums[r] = make([]poly.Poly, ac)
		dens[r] = make([]poly.Poly, ac)
		for c := 0; c < ac; c++ {
			accNum, accDen := poly.Poly{0}, poly.Poly{1}
			for k := 0; k < g.m; k++ {
				v := arr.At(k, c)
				if v == 0 || g.nums[r][k].IsZero() {
					continue
				}
				var err error
				accNum, accDen, err = addSISOPair(accNum, accDen, g.nums[r][k].Scale(v), g.dens[r][k])
				if err != nil {
					return nil, err
				}
			}
			if accNum.IsZero() {
				accNum, accDen = poly.Poly{0}, poly.Poly{1}
			}
			nums[r][c], dens[r][c] = accNum, accDen
		}
	}
	return newTransferFromGrids(nums, dens, g.dt)
}

// matmulTransfers contracts two MIMO transfer models, each result entry
// the rational sum over the shared dimension.
func matmulTransfers(a, b *Transfer) (*Transfer, error) {
	if a.m != b.p {
		return nil, fmt.Errorf("%w: left has %d inputs but right has %d outputs", ErrShape, a.m, b.p)
	}
	nums := make([][]poly.Poly, a.p)
	dens := make([][]poly.Poly, a.p)
	for r := 0; r < a.p; r++ {
		nums[r] = make([]poly.Poly, b.m)
		dens[r] = make([]poly.Poly, b.m)
		for c := 0; c < b.m; c++ {
			accNum, accDen := poly.Poly{0}, poly.Poly{1}
			for k := 0; k < a.m; k++ {
				if a.nums[r][k].IsZero() || b.nums[k][c].IsZero() {
					continue
				}
				termNum := poly.Mul(a.nums[r][k], b.nums[k][c])
				termDen := poly.Mul(a.dens[r][k], b.dens[k][c])
				var err error
				accNum, accDen, err = addSISOPair(accNum, accDen, termNum, termDen)
				if err != nil {
					return nil, err
				}
			}
			if accNum.IsZero() {
				accNum, accDen = poly.Poly{0}, poly.Poly{1}
			}
			nums[r][c], dens[r][c] = accNum, accDen
		}
	}
	return newTransferFromGrids(nums, dens, a.dt)
}

func addStates(a, b *State) (*State, error) {
	if a.gain && b.gain {
		d := denseCopy(a.d)
		d.Add(d, b.d)
		return newStateFromMatrices(nil, nil, nil, d, a.dt)
	}
	if a.gain {
		a, b = b, a
	}
	if b.gain {
		d := denseCopy(a.d)
		d.Add(d, b.d)
		return newStateFromMatrices(denseCopy(a.a), denseCopy(a.b), denseCopy(a.c), d, a.dt)
	}
	adda := matutil.BlockDiag(a.a, b.a)
	addb := matutil.VStack(a.b, b.b)
	addc := matutil.HStack(a.c, b.c)
	addd := denseCopy(a.d)
	addd.Add(addd, b.d)
	return newStateFromMatrices(adda, addb, addc, addd, a.dt)
}

// scaleState scales the model by s through the input side: B and D are
// scaled, the state dynamics stay put.
func scaleState(g *State, s float64) (*State, error) {
	d := denseCopy(g.d)
	d.Scale(s, d)
	if g.gain {
		return newStateFromMatrices(nil, nil, nil, d, g.dt)
	}
	b := denseCopy(g.b)
	b.Scale(s, b)
	return newStateFromMatrices(denseCopy(g.a), b, denseCopy(g.c), d, g.dt)
}

// mulStates builds the elementwise product of two same shaped state
// models. The construction is a Kronecker composition: the left model
// is replicated per entry and the right model per input column, with B
// and C wired so that entry (r, c) of the result realizes the product
// of the operand entries. SISO pairs degrade to the cascade product.
func mulStates(a, b *State) (*State, error) {
	if a.gain && b.gain {
		return newStateFromMatrices(nil, nil, nil, hadamard(a.d, b.d), a.dt)
	}
	if a.gain {
		a, b = b, a
	}
	if a.siso {
		return matmulStates(a, b)
	}
	if b.gain {
		return mulStateGain(a, b.d)
	}

	n1, n2, p, m := a.n, b.n, a.p, a.m

	var k1, k2 mat.Dense
	k1.Kronecker(matutil.Eye(p*m), a.a)
	k2.Kronecker(matutil.Eye(m), b.a)
	atemp := matutil.BlockDiag(&k1, &k2)

	// Each right column replica feeds its left replicas through the
	// series coupling B1*C2, so the product of two strictly proper
	// entries keeps its dynamics.
	for x := 0; x < m; x++ {
		for y := 0; y < p; y++ {
			for i := 0; i < n1; i++ {
				for j := 0; j < n2; j++ {
					atemp.Set(n1*p*x+n1*y+i, n1*p*m+n2*x+j, a.b.At(i, x)*b.c.At(y, j))
				}
			}
		}
	}

	// Left block states are grouped input major, then output: column x
	// feeds p replicas of the left model weighted by the right
	// feedthrough.
	btop := mat.NewDense(n1*p*m, m, nil)
	for x := 0; x < m; x++ {
		for y := 0; y < p; y++ {
			for i := 0; i < n1; i++ {
				btop.Set(n1*p*x+n1*y+i, x, b.d.At(y, x)*a.b.At(i, x))
			}
		}
	}
	bbot := mat.NewDense(n2*m, m, nil)
	for x := 0; x < m; x++ {
		for i := 0; i < n2; i++ {
			bbot.Set(n2*x+i, x, b.b.At(i, x))
		}
	}
	btemp := matutil.VStack(btop, bbot)

	cleft := mat.NewDense(p, n1*p*m, nil)
	for x := 0; x < m; x++ {
		for y := 0; y < p; y++ {
			for j := 0; j < n1; j++ {
				cleft.Set(y, n1*p*x+n1*y+j, a.c.At(y, j))
			}
		}
	}
	cright := mat.NewDense(p, n2*m, nil)
	for y := 0; y < p; y++ {
		for x := 0; x < m; x++ {
			for j := 0; j < n2; j++ {
				cright.Set(y, n2*x+j, a.d.At(y, x)*b.c.At(y, j))
			}
		}
	}
	ctemp := matutil.HStack(cleft, cright)

	return newStateFromMatrices(atemp, btemp, ctemp, hadamard(a.d, b.d), a.dt)
}

// mulStateGain is the elementwise product of a dynamic model with a
// plain gain matrix of the same shape, the degenerate half of the
// construction in mulStates.
func mulStateGain(a *State, arr *mat.Dense) (*State, error) {
	n, p, m := a.n, a.p, a.m
	var atemp mat.Dense
	atemp.Kronecker(matutil.Eye(p*m), a.a)
	btemp := mat.NewDense(n*p*m, m, nil)
	for x := 0; x < m; x++ {
		for y := 0; y < p; y++ {
			for i := 0; i < n; i++ {
				btemp.Set(n*p*x+n*y+i, x, arr.At(y, x)*a.b.At(i, x))
			}
		}
	}
	ctemp := mat.NewDense(p, n*p*m, nil)
	for x := 0; x < m; x++ {
		for y := 0; y < p; y++ {
			for j := 0; j < n; j++ {
				ctemp.Set(y, n*p*x+n*y+j, a.c.At(y, j))
			}
		}
	}
	return newStateFromMatrices(&atemp, btemp, ctemp, hadamard(a.d, arr), a.dt)
}

// matmulStateMatrix contracts the model inputs against a plain matrix,
// which only touches B and D.
func matmulStateMatrix(g *State, arr *mat.Dense) (*State, error) {
	ar, _ := arr.Dims()
	if g.m != ar {
		return nil, fmt.Errorf("%w: model has %d inputs but the matrix has %d rows", ErrShape, g.m, ar)
	}
	var d mat.Dense
	d.Mul(g.d, arr)
	if g.gain {
		return newStateFromMatrices(nil, nil, nil, &d, g.dt)
	}
	var b mat.Dense
	b.Mul(g.b, arr)
	return newStateFromMatrices(denseCopy(g.a), &b, denseCopy(g.c), &d, g.dt)
}

// matmulStates builds the series realization of a @ b, b feeding a. The
// coupling block B1*C2 sits in the upper right of the combined state
// matrix.
func matmulStates(a, b *State) (*State, error) {
	if a.m != b.p {
		return nil, fmt.Errorf("%w: left has %d inputs but right has %d outputs", ErrShape, a.m, b.p)
	}
	if b.gain {
		return matmulStateMatrix(a, b.d)
	}
	if a.gain {
		// Gain on the left scales the output side of b.
		var c, d mat.Dense
		c.Mul(a.d, b.c)
		d.Mul(a.d, b.d)
		return newStateFromMatrices(denseCopy(b.a), denseCopy(b.b), &c, &d, a.dt)
	}

	multa := matutil.BlockDiag(a.a, b.a)
	var coupling mat.Dense
	coupling.Mul(a.b, b.c)
	multa.Slice(0, a.n, a.n, a.n+b.n).(*mat.Dense).Copy(&coupling)

	var bd, dc, dd mat.Dense
	bd.Mul(a.b, b.d)
	multb := matutil.VStack(&bd, b.b)
	dc.Mul(a.d, b.c)
	multc := matutil.HStack(a.c, &dc)
	dd.Mul(a.d, b.d)
	return newStateFromMatrices(multa, multb, multc, &dd, a.dt)
}

func hadamard(a, b *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(i, j)*b.At(i, j))
		}
	}
	return out
}
