package hexgrid

import (
	"testing"

	"pgregory.net/rapid"
)

func TestNeighborsMatchDirectionTable(t *testing.T) {
	origin := Coord{Q: 0, R: 0}
	want := [6]Coord{
		{Q: 1, R: 0},
		{Q: 1, R: -1},
		{Q: 0, R: -1},
		{Q: -1, R: 0},
		{Q: -1, R: 1},
		{Q: 0, R: 1},
	}

	got := origin.Neighbors()
	if got != want {
		t.Fatalf("unexpected neighbors: %v", got)
	}

	for _, n := range got {
		if Distance(origin, n) != 1 {
			t.Errorf("neighbor %v is not at distance 1", n)
		}
	}
}

func TestNeighborsTranslate(t *testing.T) {
	c := Coord{Q: -4, R: 7}
	for i, n := range c.Neighbors() {
		want := Coord{Q: c.Q + NeighborDirections[i].Q, R: c.R + NeighborDirections[i].R}
		if n != want {
			t.Errorf("neighbor %d: got %v, want %v", i, n, want)
		}
	}
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Coord
		want int
	}{
		{"same hex", Coord{0, 0}, Coord{0, 0}, 0},
		{"adjacent east", Coord{0, 0}, Coord{1, 0}, 1},
		{"adjacent southeast", Coord{0, 0}, Coord{0, 1}, 1},
		{"straight line", Coord{0, 0}, Coord{3, 0}, 3},
		{"diagonal", Coord{0, 0}, Coord{2, -1}, 2},
		{"negative quadrant", Coord{-2, -3}, Coord{1, 1}, 7},
		{"cancelling axes", Coord{0, 0}, Coord{3, -3}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Distance(tt.a, tt.b); got != tt.want {
				t.Errorf("Distance(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAdjacent(t *testing.T) {
	center := Coord{Q: 2, R: -5}
	for _, n := range center.Neighbors() {
		if !Adjacent(center, n) {
			t.Errorf("expected %v adjacent to %v", n, center)
		}
	}

	if Adjacent(center, center) {
		t.Error("a hex must not be adjacent to itself")
	}
	if Adjacent(center, Coord{Q: 4, R: -5}) {
		t.Error("distance-2 hex reported adjacent")
	}
	// (1,1) is the one diagonal offset that is not a neighbor at distance 2.
	if Adjacent(center, Coord{Q: 3, R: -4}) {
		t.Error("diagonal hex reported adjacent")
	}
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key     string
		want    Coord
		wantErr bool
	}{
		{"0:0", Coord{0, 0}, false},
		{"12:-7", Coord{12, -7}, false},
		{"-3:4", Coord{-3, 4}, false},
		{"", Coord{}, true},
		{"1", Coord{}, true},
		{"1:2:3", Coord{}, true},
		{"a:b", Coord{}, true},
		{"1: 2", Coord{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseKey(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseKey(%q) expected error, got %v", tt.key, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey(%q) returned error: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("ParseKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := Coord{
			Q: rapid.IntRange(-1000, 1000).Draw(t, "q"),
			R: rapid.IntRange(-1000, 1000).Draw(t, "r"),
		}

		parsed, err := ParseKey(c.Key())
		if err != nil {
			t.Fatalf("round trip failed for %v: %v", c, err)
		}
		if parsed != c {
			t.Fatalf("round trip changed %v into %v", c, parsed)
		}
	})
}

func TestDistanceMetricProperties(t *testing.T) {
	coordGen := rapid.Custom(func(t *rapid.T) Coord {
		return Coord{
			Q: rapid.IntRange(-50, 50).Draw(t, "q"),
			R: rapid.IntRange(-50, 50).Draw(t, "r"),
		}
	})

	rapid.Check(t, func(t *rapid.T) {
		a := coordGen.Draw(t, "a")
		b := coordGen.Draw(t, "b")
		c := coordGen.Draw(t, "c")

		if Distance(a, b) != Distance(b, a) {
			t.Fatalf("distance not symmetric for %v, %v", a, b)
		}
		if a == b && Distance(a, b) != 0 {
			t.Fatalf("distance to self not zero for %v", a)
		}
		if a != b && Distance(a, b) == 0 {
			t.Fatalf("distinct hexes %v, %v at distance 0", a, b)
		}
		if Distance(a, c) > Distance(a, b)+Distance(b, c) {
			t.Fatalf("triangle inequality violated for %v, %v, %v", a, b, c)
		}
	})
}
