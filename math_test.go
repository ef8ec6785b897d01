package orbital

import (
	"math"
	"testing"

	"github.com/gonum/floats"
)

func TestNormUnit(t *testing.T) {
	v := []float64{3, 4, 0}
	if !floats.EqualWithinAbs(norm(v), 5, 1e-12) {
		t.Fatalf("|v|=%f", norm(v))
	}
	if !vectorsEqual(unit(v), []float64{0.6, 0.8, 0}) {
		t.Fatalf("unit(v)=%+v", unit(v))
	}
	if !vectorsEqual(unit([]float64{0, 0, 0}), []float64{0, 0, 0}) {
		t.Fatal("unit of zero vector must be the zero vector")
	}
}

func TestDotCross(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{0, 1, 0}
	if !floats.EqualWithinAbs(dot(a, b), 0, 1e-12) {
		t.Fatal("x̂·ŷ != 0")
	}
	if !vectorsEqual(cross(a, b), []float64{0, 0, 1}) {
		t.Fatal("x̂×ŷ != ẑ")
	}
	if !vectorsEqual(cross(b, a), []float64{0, 0, -1}) {
		t.Fatal("ŷ×x̂ != -ẑ")
	}
}

func TestFinite(t *testing.T) {
	if !finite([]float64{1, 2, 3}) {
		t.Fatal("finite vector flagged as non-finite")
	}
	if finite([]float64{1, math.NaN(), 3}) || finite([]float64{math.Inf(1), 0, 0}) {
		t.Fatal("non-finite vector flagged as finite")
	}
}

func TestAngles(t *testing.T) {
	if !floats.EqualWithinAbs(Deg2rad(180), math.Pi, 1e-12) {
		t.Fatal("Deg2rad(180) != π")
	}
	if !floats.EqualWithinAbs(Rad2deg(math.Pi), 180, 1e-12) {
		t.Fatal("Rad2deg(π) != 180")
	}
	if !floats.EqualWithinAbs(Deg2rad(-90), 3*math.Pi/2, 1e-12) {
		t.Fatal("negative degrees must wrap")
	}
}

func TestVClone(t *testing.T) {
	a := []float64{1, 2, 3}
	b := vclone(a)
	b[0] = 9
	if a[0] != 1 {
		t.Fatal("vclone must copy")
	}
	if !vectorsEqual(vclone(nil), []float64{0, 0, 0}) {
		t.Fatal("vclone(nil) must be the zero vector")
	}
}
