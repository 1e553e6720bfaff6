package deps

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"4.4.5", "4.4.13", -1},
		{"4.4.13", "4.4.13", 0},
		{"v4.4.13", "4.4.13", 0},
		{"4.10", "4.9.9", 1},
		{"1.2", "1.2.0", 0},
		{"1.2.3-beta", "1.2.3", 0},
		{"2.0.0-RC1", "1.9", 1},
		{"10.0.0", "9.99.99", 1},
		{"dev-master", "0.0.0", 0},
		{"1.010", "1.9", 1},
		{"1.99999999999999999999", "1.99999999999999999998", 1},
		{"1.99999999999999999999", "1.100000000000000000000", -1},
		{"1.99999999999999999999", "1.9", 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_vs_%s", tt.a, tt.b), func(t *testing.T) {
			if got := CompareVersions(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMajor(t *testing.T) {
	tests := map[string]int{
		"v10.2.1":    10,
		"8.0":        8,
		"dev-master": 0,
		"":           -1,
	}
	for in, want := range tests {
		if got := Major(in); got != want {
			t.Errorf("Major(%q) = %d, want %d", in, got, want)
		}
	}
	if got := Major("99999999999999999999999.1"); got != math.MaxInt {
		t.Errorf("Major of an oversized segment = %d, want math.MaxInt", got)
	}
}

func TestProperty_CompareVersionsIsAntisymmetric(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	genVersion := gen.SliceOfN(3, gen.IntRange(0, 30)).Map(func(p []int) string {
		return fmt.Sprintf("%d.%d.%d", p[0], p[1], p[2])
	})

	properties.Property("compare(a, b) == -compare(b, a)", prop.ForAll(
		func(a, b string) bool {
			return CompareVersions(a, b) == -CompareVersions(b, a)
		},
		genVersion, genVersion,
	))

	properties.Property("a version equals itself with a v prefix", prop.ForAll(
		func(a string) bool {
			return CompareVersions(a, "v"+a) == 0
		},
		genVersion,
	))

	properties.TestingRun(t)
}
