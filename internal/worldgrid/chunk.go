package worldgrid

const (
	ChunkWidth  = 16
	ChunkHeight = 256
	ChunkDepth  = 16
)

// ChunkPos identifies a chunk by its chunk-space coordinate.
type ChunkPos struct {
	X, Z int
}

// Chunk is one W x H x D column of 16-bit block ids plus nibble-packed
// light and per-column biome/height metadata.
type Chunk struct {
	Blocks    [ChunkWidth * ChunkHeight * ChunkDepth]uint16
	BlockLight [ChunkWidth * ChunkHeight * ChunkDepth / 2]byte
	SkyLight   [ChunkWidth * ChunkHeight * ChunkDepth / 2]byte
	Biome      [ChunkWidth * ChunkDepth]byte
	HeightMap  [ChunkWidth * ChunkDepth]int16
	Dirty      bool
}

func flatIndex(lx, ly, lz int) int {
	return (ly*ChunkDepth+lz)*ChunkWidth + lx
}

func columnIndex(lx, lz int) int {
	return lz*ChunkWidth + lx
}

// BlockAt reads a local-coordinate block id from the chunk.
func (c *Chunk) BlockAt(lx, ly, lz int) uint16 {
	return c.Blocks[flatIndex(lx, ly, lz)]
}

// SetBlockAt writes a local-coordinate block id into the chunk.
func (c *Chunk) SetBlockAt(lx, ly, lz int, id uint16) {
	c.Blocks[flatIndex(lx, ly, lz)] = id
}

// Generator produces a deterministic chunk for a seed and chunk
// coordinate. Terrain generation itself (biomes, caves, structures) is
// out of this package's scope — callers inject whatever pure function they
// like; ChunkedWorld only memoizes and mutates the result.
type Generator func(seed int64, cx, cz int) *Chunk

// ChunkedWorld is a finite grid of lazily-generated, memoized chunks.
type ChunkedWorld struct {
	Seed      int64
	WidthChunks, DepthChunks int
	gen       Generator
	chunks    map[ChunkPos]*Chunk
}

// NewChunkedWorld builds a world of widthChunks x depthChunks chunks,
// generated on demand via gen.
func NewChunkedWorld(seed int64, widthChunks, depthChunks int, gen Generator) *ChunkedWorld {
	return &ChunkedWorld{
		Seed:        seed,
		WidthChunks: widthChunks,
		DepthChunks: depthChunks,
		gen:         gen,
		chunks:      make(map[ChunkPos]*Chunk),
	}
}

func worldBounds(w *ChunkedWorld) (minX, maxX, minZ, maxZ int) {
	halfW := w.WidthChunks * ChunkWidth / 2
	halfD := w.DepthChunks * ChunkDepth / 2
	return -halfW, halfW, -halfD, halfD
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func mod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func (w *ChunkedWorld) chunkAt(cx, cz int) *Chunk {
	pos := ChunkPos{cx, cz}
	if c, ok := w.chunks[pos]; ok {
		return c
	}
	c := w.gen(w.Seed, cx, cz)
	w.chunks[pos] = c
	return c
}

// GetBlock resolves the chunk, local coordinate, and flat index for a
// world-space position. Out-of-bounds (Y) or out-of-world (X/Z) reads
// return air (id 0).
func (w *ChunkedWorld) GetBlock(x, y, z int) uint16 {
	if y < 0 || y >= ChunkHeight {
		return 0
	}
	minX, maxX, minZ, maxZ := worldBounds(w)
	if x < minX || x >= maxX || z < minZ || z >= maxZ {
		return 0
	}
	cx, cz := floorDiv(x, ChunkWidth), floorDiv(z, ChunkDepth)
	lx, lz := mod(x, ChunkWidth), mod(z, ChunkDepth)
	c := w.chunkAt(cx, cz)
	return c.BlockAt(lx, y, lz)
}

// SetBlock lazily creates the owning chunk, writes the block, marks the
// chunk dirty, and incrementally updates the column height map: a block
// rising above the current max bumps it; a block removed at the current
// max rescans downward for the new top.
func (w *ChunkedWorld) SetBlock(x, y, z int, id uint16) {
	if y < 0 || y >= ChunkHeight {
		return
	}
	minX, maxX, minZ, maxZ := worldBounds(w)
	if x < minX || x >= maxX || z < minZ || z >= maxZ {
		return
	}
	cx, cz := floorDiv(x, ChunkWidth), floorDiv(z, ChunkDepth)
	lx, lz := mod(x, ChunkWidth), mod(z, ChunkDepth)
	c := w.chunkAt(cx, cz)
	c.SetBlockAt(lx, y, lz, id)
	c.Dirty = true

	col := columnIndex(lx, lz)
	height := int(c.HeightMap[col])
	switch {
	case id != 0 && y > height:
		c.HeightMap[col] = int16(y)
	case id == 0 && y == height:
		newTop := int16(-1)
		for ny := y - 1; ny >= 0; ny-- {
			if c.BlockAt(lx, ny, lz) != 0 {
				newTop = int16(ny)
				break
			}
		}
		c.HeightMap[col] = newTop
	}
}

// HeightAt returns the cached top-of-column height for a world-space
// (x, z), realizing the chunk if necessary.
func (w *ChunkedWorld) HeightAt(x, z int) int {
	cx, cz := floorDiv(x, ChunkWidth), floorDiv(z, ChunkDepth)
	lx, lz := mod(x, ChunkWidth), mod(z, ChunkDepth)
	c := w.chunkAt(cx, cz)
	return int(c.HeightMap[columnIndex(lx, lz)])
}

// isLiquid identifies block ids treated as liquid for spawn-point search.
// Id 2 is reserved for water in this world's numbering (registry package
// owns the authoritative string ids; the chunked world only needs to
// distinguish "solid", "liquid", and "air" for spawn search purposes).
const liquidBlockID uint16 = 2

// FindSpawnPoint spirals outward from world center, returning the first
// (x, z) column whose top block is solid and non-liquid with two air
// blocks above it.
func (w *ChunkedWorld) FindSpawnPoint() (x, y, z int) {
	cx0, cz0 := 0, 0
	if w.tryColumn(cx0, cz0) {
		top := w.HeightAt(cx0, cz0)
		return cx0, top + 1, cz0
	}
	for radius := 1; radius < 256; radius++ {
		for dx := -radius; dx <= radius; dx++ {
			for _, dz := range []int{-radius, radius} {
				px, pz := dx, dz
				if w.tryColumn(px, pz) {
					top := w.HeightAt(px, pz)
					return px, top + 1, pz
				}
			}
		}
		for dz := -radius + 1; dz <= radius-1; dz++ {
			for _, dx := range []int{-radius, radius} {
				px, pz := dx, dz
				if w.tryColumn(px, pz) {
					top := w.HeightAt(px, pz)
					return px, top + 1, pz
				}
			}
		}
	}
	return 0, ChunkHeight - 1, 0
}

func (w *ChunkedWorld) tryColumn(x, z int) bool {
	top := w.HeightAt(x, z)
	if top < 0 || top >= ChunkHeight-2 {
		return false
	}
	topBlock := w.GetBlock(x, top, z)
	if topBlock == 0 || topBlock == liquidBlockID {
		return false
	}
	return w.GetBlock(x, top+1, z) == 0 && w.GetBlock(x, top+2, z) == 0
}
