package valuation

import "testing"

func ptr(v float64) *float64 { return &v }

func TestComputeRange(t *testing.T) {
	tests := []struct {
		name        string
		real        float64
		perceived   *float64
		uncertainty float64
		want        [2]float64
	}{
		{"perceived anchor", 400, ptr(1000), 0.3, [2]float64{700, 1300}},
		{"real anchor", 500, nil, 0.2, [2]float64{400, 600}},
		{"zero uncertainty", 437, nil, 0, [2]float64{440, 440}},
		{"small values round to units", 62, nil, 0.25, [2]float64{47, 78}},
		{"huge uncertainty floors at zero", 200, nil, 1.5, [2]float64{0, 500}},
		{"negative uncertainty treated as point", 80, nil, -0.1, [2]float64{80, 80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeRange(tt.real, tt.perceived, tt.uncertainty)
			if got[0] != tt.want[0] || got[1] != tt.want[1] {
				t.Fatalf("ComputeRange = %v, want %v", got, tt.want)
			}
			if got.Min() > got.Max() {
				t.Fatalf("min > max: %v", got)
			}
		})
	}
}

func TestHumanRound(t *testing.T) {
	cases := map[float64]float64{
		99.4:  99,
		99.6:  100,
		104:   100,
		105:   110,
		1234:  1230,
		-12.6: -13,
	}
	for in, want := range cases {
		if got := HumanRound(in); got != want {
			t.Errorf("HumanRound(%v) = %v, want %v", in, got, want)
		}
	}
}
