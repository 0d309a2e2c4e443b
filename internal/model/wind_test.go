package model

import (
	"reflect"
	"testing"
)

func TestParseWindString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Wind
	}{
		{
			name: "simple tokens",
			in:   "N 2-6, SE 3-8",
			want: []Wind{
				{Direction: WindN, MinSpeed: 2, MaxSpeed: 6},
				{Direction: WindSE, MinSpeed: 3, MaxSpeed: 8},
			},
		},
		{
			name: "bare direction gets zero range",
			in:   "W",
			want: []Wind{{Direction: WindW}},
		},
		{
			name: "duplicate direction, last wins",
			in:   "N 1-3, N 4-9",
			want: []Wind{{Direction: WindN, MinSpeed: 4, MaxSpeed: 9}},
		},
		{
			name: "order insensitive, compass order out",
			in:   "SW 2-5, NE 1-4",
			want: []Wind{
				{Direction: WindNE, MinSpeed: 1, MaxSpeed: 4},
				{Direction: WindSW, MinSpeed: 2, MaxSpeed: 5},
			},
		},
		{
			name: "garbage skipped",
			in:   "XX 1-2, , n 3-7",
			want: []Wind{{Direction: WindN, MinSpeed: 3, MaxSpeed: 7}},
		},
		{
			name: "empty input",
			in:   "",
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseWindString(tc.in)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseWindString(%q) = %+v, want %+v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeWinds_swapsInvertedRange(t *testing.T) {
	got := NormalizeWinds([]Wind{{Direction: WindE, MinSpeed: 8, MaxSpeed: 3}})
	if len(got) != 1 || got[0].MinSpeed != 3 || got[0].MaxSpeed != 8 {
		t.Fatalf("expected range swap, got %+v", got)
	}
}

func TestWindString_roundTrip(t *testing.T) {
	in := []Wind{
		{Direction: WindS, MinSpeed: 2, MaxSpeed: 6},
		{Direction: WindN, MinSpeed: 1, MaxSpeed: 4},
	}
	s := WindString(in)
	if s != "N 1-4, S 2-6" {
		t.Fatalf("unexpected rendering: %q", s)
	}
	if got := ParseWindString(s); !reflect.DeepEqual(got, NormalizeWinds(in)) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDifficultyTier(t *testing.T) {
	tiers := map[int]string{0: "beginner", 1: "beginner", 2: "novice", 3: "intermediate", 4: "advanced", 5: "expert", 9: "expert"}
	for rating, want := range tiers {
		if got := DifficultyTier(rating); got != want {
			t.Fatalf("DifficultyTier(%d) = %q, want %q", rating, got, want)
		}
	}
}
