package overlay

// Z-index bands. Each category draws at a fixed level and a layer keeps its
// z-index for its whole lifetime; reassigning the z-index of a live layer
// causes visible flicker in the renderer.
const (
	ZBandBasemap  = 0
	ZBandRaster   = 100
	ZBandBoundary = 200
	ZBandMask     = 300
	ZBandEnergy   = 400
)

// ZIndexFor maps a category to its band.
func ZIndexFor(cat Category) int {
	switch cat {
	case CategoryClimate, CategoryGiri:
		return ZBandRaster
	case CategoryBoundary:
		return ZBandBoundary
	case CategoryMask:
		return ZBandMask
	case CategoryEnergy:
		return ZBandEnergy
	default:
		return ZBandBasemap
	}
}
