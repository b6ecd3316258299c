// Package terrain generates the static geography of a game: mountain
// chains that block movement and rivers that discount expansion along
// their banks. Generation is a pure function of the seed, so a stored
// seed reproduces the exact map.
package terrain

import (
	"math/rand"

	"github.com/JTTrickZ/hexgame-main/internal/game"
	"github.com/JTTrickZ/hexgame-main/internal/hexgrid"
	"github.com/JTTrickZ/hexgame-main/internal/shared/config"
)

// Tiles maps coordinates to the terrain occupying them. Cells absent
// from the map are open ground.
type Tiles map[hexgrid.Coord]game.Terrain

// seedAttemptsPerPoint bounds the rejection sampling when placing chain
// and river origins; crowded configurations settle for fewer origins
// rather than spinning.
const seedAttemptsPerPoint = 50

type generator struct {
	cfg config.TerrainConfig
	rng *rand.Rand
}

// Generate builds the terrain for one game. The same cfg and seed always
// produce the same tiles.
func Generate(cfg config.TerrainConfig, seed int64) Tiles {
	g := &generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}

	tiles := make(Tiles)
	g.placeMountains(tiles)
	g.placeRivers(tiles)
	return tiles
}

func (g *generator) placeMountains(tiles Tiles) {
	count := g.cfg.MountainChainsMin + g.rng.Intn(span(g.cfg.MountainChainsMin, g.cfg.MountainChainsMax)+1)
	origins := g.scatter(count, g.cfg.MountainChainSpacing)

	for _, origin := range origins {
		g.carveChain(tiles, origin)
	}
}

// carveChain walks a random primary direction from the origin, writing
// mountains as it goes. Each step may sprout a one-cell branch, and may
// zigzag into a non-reverse direction instead of continuing straight.
func (g *generator) carveChain(tiles Tiles, origin hexgrid.Coord) {
	primary := g.rng.Intn(len(hexgrid.NeighborDirections))
	length := g.cfg.MountainChainLenMin + g.rng.Intn(span(g.cfg.MountainChainLenMin, g.cfg.MountainChainLenMax)+1)

	cur := origin
	for step := 0; step < length; step++ {
		tiles[cur] = game.TerrainMountain

		if g.rng.Float64() < g.cfg.MountainDensity {
			branch := cur.Neighbors()[g.rng.Intn(len(hexgrid.NeighborDirections))]
			if tiles[branch] == game.TerrainNone {
				tiles[branch] = game.TerrainMountain
			}
		}

		dir := primary
		if g.rng.Float64() < g.cfg.MountainZigzagChance {
			dir = g.nonReverse(primary)
		}
		cur = advance(cur, dir)
	}
}

func (g *generator) placeRivers(tiles Tiles) {
	origins := g.scatter(g.cfg.RiverCount, g.cfg.RiverSpacing)
	for _, origin := range origins {
		g.carveRiver(tiles, origin)
	}
}

// carveRiver meanders like a chain but never cuts through a mountain;
// hitting one ends the branch. After the first third of the run a single
// fork may split off in a non-reverse direction.
func (g *generator) carveRiver(tiles Tiles, origin hexgrid.Coord) {
	primary := g.rng.Intn(len(hexgrid.NeighborDirections))
	length := g.cfg.RiverLength
	forked := false

	cur := origin
	for step := 0; step < length; step++ {
		if tiles[cur] == game.TerrainMountain {
			return
		}
		tiles[cur] = game.TerrainRiver

		if !forked && step > length/3 && g.rng.Float64() < g.cfg.RiverForkChance {
			forked = true
			g.carveFork(tiles, cur, g.nonReverse(primary))
		}

		dir := primary
		if g.rng.Float64() < g.cfg.MountainZigzagChance {
			dir = g.nonReverse(primary)
		}
		cur = advance(cur, dir)
	}
}

func (g *generator) carveFork(tiles Tiles, origin hexgrid.Coord, dir int) {
	cur := advance(origin, dir)
	for step := 0; step < g.cfg.RiverForkLength; step++ {
		if tiles[cur] == game.TerrainMountain {
			return
		}
		tiles[cur] = game.TerrainRiver
		cur = advance(cur, dir)
	}
}

// scatter places up to count origins inside the generation area, keeping
// every pair at least spacing cells apart. When the area cannot fit that
// many it returns however many landed.
func (g *generator) scatter(count, spacing int) []hexgrid.Coord {
	half := g.cfg.MountainAreaSize / 2
	origins := make([]hexgrid.Coord, 0, count)

	for attempts := 0; len(origins) < count && attempts < count*seedAttemptsPerPoint; attempts++ {
		candidate := hexgrid.Coord{
			Q: g.rng.Intn(g.cfg.MountainAreaSize+1) - half,
			R: g.rng.Intn(g.cfg.MountainAreaSize+1) - half,
		}

		tooClose := false
		for _, origin := range origins {
			if hexgrid.Distance(origin, candidate) < spacing {
				tooClose = true
				break
			}
		}
		if !tooClose {
			origins = append(origins, candidate)
		}
	}
	return origins
}

// nonReverse draws one of the five directions that does not undo the
// primary heading.
func (g *generator) nonReverse(primary int) int {
	reverse := (primary + 3) % len(hexgrid.NeighborDirections)
	d := g.rng.Intn(len(hexgrid.NeighborDirections) - 1)
	if d >= reverse {
		d++
	}
	return d
}

func advance(c hexgrid.Coord, dir int) hexgrid.Coord {
	d := hexgrid.NeighborDirections[dir]
	return hexgrid.Coord{Q: c.Q + d.Q, R: c.R + d.R}
}

func span(min, max int) int {
	if max < min {
		return 0
	}
	return max - min
}
