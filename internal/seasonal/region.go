package seasonal

// LatitudeThreshold splits Ghana into the bimodal south and the unimodal north.
const LatitudeThreshold = 8.0

// Region is a Ghanaian climate regime.
type Region string

const (
	RegionSouthern Region = "southern"
	RegionNorthern Region = "northern"
)

// ClassifyRegion maps a latitude to a region. Latitudes outside [-90, 90] are
// not rejected here; callers validate coordinates.
func ClassifyRegion(lat float64) Region {
	if lat < LatitudeThreshold {
		return RegionSouthern
	}
	return RegionNorthern
}

func (r Region) DisplayName() string {
	switch r {
	case RegionNorthern:
		return "Northern"
	default:
		return "Southern"
	}
}
