package normalize

import (
	"math"
	"reflect"
	"testing"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"80", 80, true},
		{" 1,234 ", 1234, true},
		{"25%", 25, true},
		{"25％", 25, true},
		{"0.25", 0.25, true},
		{"", 0, false},
		{"abc", 0, false},
		{"-", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseNumber(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("ParseNumber(%q) want=(%v,%v) got=(%v,%v)", c.in, c.want, c.ok, got, ok)
		}
	}
}

func TestNormalizeRatioColumn_PercentagePoints(t *testing.T) {
	t.Parallel()

	// 列内出现超过 1 的值，整列按百分点口径除以 100
	got := NormalizeRatioColumn([]float64{25, 50, 0.5})
	want := []float64{0.25, 0.5, 0.005}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
}

func TestNormalizeRatioColumn_AlreadyFraction(t *testing.T) {
	t.Parallel()

	// 全列不超过 1 时恒等，不做逐格判断
	got := NormalizeRatioColumn([]float64{0.25, 1.0, 0})
	want := []float64{0.25, 1.0, 0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
}

func TestSafeDiv_TotalFunction(t *testing.T) {
	t.Parallel()

	inf := math.Inf(1)
	nan := math.NaN()
	cases := []struct{ n, d float64 }{
		{0, 0}, {5, 0}, {-3, 0},
		{nan, 2}, {2, nan}, {nan, nan},
		{inf, 2}, {2, inf}, {inf, inf},
	}
	for _, c := range cases {
		got := SafeDiv(c.n, c.d)
		if got != 0 {
			t.Fatalf("SafeDiv(%v,%v) want=0 got=%v", c.n, c.d, got)
		}
	}
	if got := SafeDiv(30, 120); got != 0.25 {
		t.Fatalf("SafeDiv(30,120) want=0.25 got=%v", got)
	}
}

func TestCollapseCollisions_FirstNonNullWithBackfill(t *testing.T) {
	t.Parallel()

	colA := []string{"1", "", "  ", ""}
	colB := []string{"9", "2", "3", ""}
	got := CollapseCollisions([][]string{colA, colB}, 4)
	want := []string{"1", "2", "3", ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("want=%v got=%v", want, got)
	}
}
