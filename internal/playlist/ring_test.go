package playlist

import "testing"

func TestRingInverse(t *testing.T) {
	for n := 1; n <= 7; n++ {
		for i := 0; i < n; i++ {
			if got := Next(Prev(i, n), n); got != i {
				t.Errorf("Next(Prev(%d, %d)) = %d, want %d", i, n, got, i)
			}
			if got := Prev(Next(i, n), n); got != i {
				t.Errorf("Prev(Next(%d, %d)) = %d, want %d", i, n, got, i)
			}
		}
	}
}

func TestRingWraparound(t *testing.T) {
	tests := []struct {
		name string
		fn   func(int, int) int
		i, n int
		want int
	}{
		{"next wraps at end", Next, 4, 5, 0},
		{"prev wraps at start", Prev, 0, 5, 4},
		{"next single entry", Next, 0, 1, 0},
		{"prev single entry", Prev, 0, 1, 0},
		{"next middle", Next, 1, 3, 2},
		{"prev middle", Prev, 2, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(tt.i, tt.n); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
