package fixedpoint

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// Declared scales. Raw oracle quotes carry 8 decimals, accrual rates 18,
// USD-denominated values 30. Conversions between scales are explicit and
// exact when widening.
const (
	OracleDecimals int32 = 8
	RateDecimals   int32 = 18
	USDDecimals    int32 = 30
)

var (
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
	ErrOverflow       = errors.New("fixedpoint: value exceeds representable range")
)

var bigOne = big.NewInt(1)

// unit returns 10^decimals. Small scales are served from a precomputed table.
var unitTable = buildUnitTable()

func buildUnitTable() []*big.Int {
	table := make([]*big.Int, 40)
	u := big.NewInt(1)
	ten := big.NewInt(10)
	for i := range table {
		table[i] = new(big.Int).Set(u)
		u.Mul(u, ten)
	}
	return table
}

func unit(decimals int32) *big.Int {
	if decimals >= 0 && int(decimals) < len(unitTable) {
		return unitTable[decimals]
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}

// Dec is a fixed-point decimal: an integer mantissa plus the number of
// decimal places it carries. The scale travels with the value so the
// 8-decimal oracle boundary and the 30-decimal USD boundary can never be
// mixed silently.
//
// Dec values are immutable. The zero value is 0 at scale 0.
type Dec struct {
	mant     *big.Int
	decimals int32
}

// New returns mant * 10^-decimals.
func New(mant int64, decimals int32) Dec {
	return Dec{mant: big.NewInt(mant), decimals: decimals}
}

// FromBigInt returns mant * 10^-decimals. The mantissa is copied.
func FromBigInt(mant *big.Int, decimals int32) Dec {
	return Dec{mant: new(big.Int).Set(mant), decimals: decimals}
}

// Zero returns 0 at the given scale.
func Zero(decimals int32) Dec {
	return Dec{mant: new(big.Int), decimals: decimals}
}

// One returns 1 at the given scale.
func One(decimals int32) Dec {
	return Dec{mant: new(big.Int).Set(unit(decimals)), decimals: decimals}
}

// FromFloat64 converts f to a Dec at the given scale, rounding to nearest.
// Non-finite inputs are rejected.
func FromFloat64(f float64, decimals int32) (Dec, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Dec{}, fmt.Errorf("%w: non-finite value", ErrOverflow)
	}
	bf := new(big.Float).SetPrec(128).SetFloat64(f)
	bf.Mul(bf, new(big.Float).SetPrec(128).SetInt(unit(decimals)))
	if bf.Sign() >= 0 {
		bf.Add(bf, big.NewFloat(0.5))
	} else {
		bf.Sub(bf, big.NewFloat(0.5))
	}
	mant, _ := bf.Int(nil)
	return Dec{mant: mant, decimals: decimals}, nil
}

// Parse reads a decimal string ("1900.02", "-0.5") into a Dec at the given
// scale. Digits beyond the declared scale are an error, never truncated.
func Parse(s string, decimals int32) (Dec, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Dec{}, fmt.Errorf("fixedpoint: empty input")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
	}
	if intPart == "" && fracPart == "" {
		return Dec{}, fmt.Errorf("fixedpoint: invalid decimal %q", s)
	}

	if int32(len(fracPart)) > decimals {
		extra := fracPart[decimals:]
		if strings.Trim(extra, "0") != "" {
			return Dec{}, fmt.Errorf("fixedpoint: %q exceeds %d decimal places", s, decimals)
		}
		fracPart = fracPart[:decimals]
	}
	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))

	digits := intPart + fracPart
	if digits == "" {
		digits = "0"
	}
	mant, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Dec{}, fmt.Errorf("fixedpoint: invalid decimal %q", s)
	}
	if neg {
		mant.Neg(mant)
	}
	return Dec{mant: mant, decimals: decimals}, nil
}

// MustParse is Parse for constants in tests and config defaults.
func MustParse(s string, decimals int32) Dec {
	d, err := Parse(s, decimals)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Dec) m() *big.Int {
	if d.mant == nil {
		return new(big.Int)
	}
	return d.mant
}

// Decimals returns the declared scale.
func (d Dec) Decimals() int32 { return d.decimals }

// BigInt returns a copy of the mantissa.
func (d Dec) BigInt() *big.Int { return new(big.Int).Set(d.m()) }

func (d Dec) IsZero() bool { return d.m().Sign() == 0 }

func (d Dec) Sign() int { return d.m().Sign() }

// align brings both mantissas to the wider of the two scales. Widening is
// exact, so no precision is lost here.
func align(a, b Dec) (x, y *big.Int, decimals int32) {
	ad, bd := a.decimals, b.decimals
	switch {
	case ad == bd:
		return a.m(), b.m(), ad
	case ad > bd:
		shifted := new(big.Int).Mul(b.m(), unit(ad-bd))
		return a.m(), shifted, ad
	default:
		shifted := new(big.Int).Mul(a.m(), unit(bd-ad))
		return shifted, b.m(), bd
	}
}

func (d Dec) Cmp(o Dec) int {
	x, y, _ := align(d, o)
	return x.Cmp(y)
}

func (d Dec) Equal(o Dec) bool { return d.Cmp(o) == 0 }

func (d Dec) Add(o Dec) Dec {
	x, y, decimals := align(d, o)
	return Dec{mant: new(big.Int).Add(x, y), decimals: decimals}
}

func (d Dec) Sub(o Dec) Dec {
	x, y, decimals := align(d, o)
	return Dec{mant: new(big.Int).Sub(x, y), decimals: decimals}
}

func (d Dec) Neg() Dec {
	return Dec{mant: new(big.Int).Neg(d.m()), decimals: d.decimals}
}

func (d Dec) Abs() Dec {
	return Dec{mant: new(big.Int).Abs(d.m()), decimals: d.decimals}
}

// Mul returns d * o at d's scale: the full-width product is divided by o's
// unit with half-even rounding, so intermediate precision is never lost.
func (d Dec) Mul(o Dec) Dec {
	prod := new(big.Int).Mul(d.m(), o.m())
	return Dec{mant: divRoundHalfEven(prod, unit(o.decimals)), decimals: d.decimals}
}

// MulInt64 returns d * n at d's scale, exactly.
func (d Dec) MulInt64(n int64) Dec {
	return Dec{mant: new(big.Int).Mul(d.m(), big.NewInt(n)), decimals: d.decimals}
}

// Quo returns d / o at d's scale with half-even rounding.
func (d Dec) Quo(o Dec) (Dec, error) {
	if o.m().Sign() == 0 {
		return Dec{}, ErrDivisionByZero
	}
	num := new(big.Int).Mul(d.m(), unit(o.decimals))
	return Dec{mant: divRoundHalfEven(num, o.m()), decimals: d.decimals}, nil
}

// Rescale converts d to another scale. Widening is exact; narrowing rounds
// half-even to the declared precision.
func (d Dec) Rescale(decimals int32) Dec {
	switch {
	case decimals == d.decimals:
		return d
	case decimals > d.decimals:
		return Dec{mant: new(big.Int).Mul(d.m(), unit(decimals-d.decimals)), decimals: decimals}
	default:
		return Dec{mant: divRoundHalfEven(d.m(), unit(d.decimals-decimals)), decimals: decimals}
	}
}

// Int64 returns the value rounded half-even to a whole number, or
// ErrOverflow when it does not fit.
func (d Dec) Int64() (int64, error) {
	whole := d.Rescale(0)
	if !whole.m().IsInt64() {
		return 0, ErrOverflow
	}
	return whole.m().Int64(), nil
}

// Float64 returns the nearest float64. Reporting-side use only; the models
// never round-trip through floats.
func (d Dec) Float64() float64 {
	bf := new(big.Float).SetPrec(128).SetInt(d.m())
	bf.Quo(bf, new(big.Float).SetPrec(128).SetInt(unit(d.decimals)))
	f, _ := bf.Float64()
	return f
}

func (d Dec) String() string {
	mant := d.m()
	if d.decimals == 0 {
		return mant.String()
	}

	neg := mant.Sign() < 0
	digits := new(big.Int).Abs(mant).String()
	if int32(len(digits)) <= d.decimals {
		digits = strings.Repeat("0", int(d.decimals)-len(digits)+1) + digits
	}
	split := len(digits) - int(d.decimals)
	intPart, fracPart := digits[:split], digits[split:]
	fracPart = strings.TrimRight(fracPart, "0")

	var sb strings.Builder
	if neg {
		sb.WriteByte('-')
	}
	sb.WriteString(intPart)
	if fracPart != "" {
		sb.WriteByte('.')
		sb.WriteString(fracPart)
	}
	return sb.String()
}

// divRoundHalfEven divides num by den with banker's rounding: ties go to the
// even quotient, everything else to nearest.
func divRoundHalfEven(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() == 0 {
		return q
	}

	twice := new(big.Int).Abs(r)
	twice.Lsh(twice, 1)
	cmp := twice.Cmp(new(big.Int).Abs(den))

	roundAway := cmp > 0 || (cmp == 0 && q.Bit(0) == 1)
	if roundAway {
		if (num.Sign() < 0) != (den.Sign() < 0) {
			q.Sub(q, bigOne)
		} else {
			q.Add(q, bigOne)
		}
	}
	return q
}
