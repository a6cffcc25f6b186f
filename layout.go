package gcov

// Layout names the places inside a product file the loader reads from.
// GridGroup is a format string taking the frequency label.
type Layout struct {
	IdentificationGroup string
	FrequencyList       string
	GridGroup           string
	XCoordinates        string
	YCoordinates        string
	Projection          string
	// TimePattern is a regular expression whose first submatch is the
	// acquisition time in TimeLayout.
	TimePattern string
	TimeLayout  string
}

// DefaultLayout is the NISAR L-band GCOV product layout.
func DefaultLayout() Layout {
	return Layout{
		IdentificationGroup: "/science/LSAR/identification",
		FrequencyList:       "/science/LSAR/identification/listOfFrequencies",
		GridGroup:           "/science/LSAR/GCOV/grids/frequency%s",
		XCoordinates:        "xCoordinates",
		YCoordinates:        "yCoordinates",
		Projection:          "projection",
		TimePattern:         `_(\d{8}T\d{6})_`,
		TimeLayout:          "20060102T150405",
	}
}

// DefaultChunks is the chunk geometry used when none is requested.
var DefaultChunks = [4]int{1, 1, 2048, 2048}

// AllValues selects every variable or every advertised frequency.
const AllValues = "all"

// DefaultVariables returns the polarimetric covariance terms and auxiliary
// rasters of a GCOV product. The slice is new on every call.
func DefaultVariables() []string {
	return []string{
		"HHHH", "VVVV", "HVHV", "VHVH",
		"HHHV", "HHVH", "HHVV", "HVVH", "HVVV", "VHVV",
		"mask", "numberOfLooks", "rtcGammaToSigmaFactor",
	}
}

func wantsAll(names []string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if n == AllValues {
			return true
		}
	}
	return false
}
