package runsignup

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Distance buckets. "Other" is a sentinel the quality scorer treats as
// no classification; DistanceLabel carries the human-readable value in
// that case.
const (
	DistanceMarathon = "Marathon"
	DistanceHalf     = "Half Marathon"
	Distance10K      = "10K"
	Distance5K       = "5K"
	DistanceMile     = "1 Mile"
	DistanceUltra    = "Ultra"
	DistanceOther    = "Other"
)

// Surface classifications.
const (
	SurfaceRoad  = "Road"
	SurfaceTrail = "Trail"
)

// Tolerance bands in meters. Source distances are self-reported and
// drift around the official figures.
const (
	marathonMin = 41000
	marathonMax = 43000
	halfMin     = 20500
	halfMax     = 22000
	tenKMin     = 9500
	tenKMax     = 10500
	fiveKMin    = 4800
	fiveKMax    = 5200
	mileMin     = 1500
	mileMax     = 1700
	ultraMin    = 80000
)

// ultraKeywords in an event or race name classify it as Ultra even
// without a usable numeric distance.
var ultraKeywords = []string{"ultra", "100 mile", "50 mile", "100k", "50k"}

// metersPerUnit maps the provider's distance unit codes to meters.
var metersPerUnit = map[string]float64{
	"K": 1000,    // kilometers
	"M": 1609.34, // miles
	"Y": 0.9144,  // yards
	"F": 0.3048,  // feet
}

// classifyDistance buckets a provider event into a distance class.
// Numeric distance+unit wins; otherwise the event and race names are
// parsed. Unbucketable events return the "Other" sentinel with a
// human-readable label built from the raw value.
func classifyDistance(ev providerEvent, raceName string) (class, label string) {
	meters := eventMeters(ev)

	if meters > 0 {
		switch {
		case meters >= ultraMin:
			return DistanceUltra, DistanceUltra
		case meters >= marathonMin && meters <= marathonMax:
			return DistanceMarathon, DistanceMarathon
		case meters >= halfMin && meters <= halfMax:
			return DistanceHalf, DistanceHalf
		case meters >= tenKMin && meters <= tenKMax:
			return Distance10K, Distance10K
		case meters >= fiveKMin && meters <= fiveKMax:
			return Distance5K, Distance5K
		case meters >= mileMin && meters <= mileMax:
			return DistanceMile, DistanceMile
		}
	}

	if class := classifyByName(ev.Name); class != "" {
		return class, class
	}
	if class := classifyByName(raceName); class != "" {
		return class, class
	}

	if meters > 0 {
		return DistanceOther, rawDistanceLabel(ev)
	}
	return DistanceOther, strings.TrimSpace(ev.Name)
}

// eventMeters converts the provider's distance string + unit code to
// meters. Returns 0 when the distance is missing or unparsable.
func eventMeters(ev providerEvent) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(ev.Distance), 64)
	if err != nil || v <= 0 {
		return 0
	}
	unit, ok := metersPerUnit[strings.ToUpper(strings.TrimSpace(ev.DistanceUnit))]
	if !ok {
		unit = metersPerUnit["M"] // provider default is miles
	}
	return v * unit
}

// Numeric phrases must not start mid-number: "15k" is not a 5K and
// "110k" is not a 10K, so each digit-leading pattern requires a
// non-numeric rune (or start of string) before it.
var (
	halfPattern  = regexp.MustCompile(`half marathon|(^|[^0-9.])13\.1`)
	fullPattern  = regexp.MustCompile(`marathon|(^|[^0-9.])26\.2`)
	tenKPattern  = regexp.MustCompile(`(^|[^0-9.])10 ?k`)
	fiveKPattern = regexp.MustCompile(`(^|[^0-9.])(5 ?k|3\.1)`)
	milePattern  = regexp.MustCompile(`(^|[^0-9.])1 ?mile|one mile|(^|[^0-9.])1mi\b`)
)

// classifyByName matches well-known distance phrases in free text.
// Half marathon is checked before marathon so "half marathon" does not
// bucket as a full.
func classifyByName(name string) string {
	n := strings.ToLower(name)

	for _, kw := range ultraKeywords {
		if strings.Contains(n, kw) {
			return DistanceUltra
		}
	}
	switch {
	case halfPattern.MatchString(n):
		return DistanceHalf
	case fullPattern.MatchString(n):
		return DistanceMarathon
	case tenKPattern.MatchString(n):
		return Distance10K
	case fiveKPattern.MatchString(n):
		return Distance5K
	case milePattern.MatchString(n):
		return DistanceMile
	}
	return ""
}

// rawDistanceLabel renders the provider's raw distance for display,
// e.g. "15 km" or "9.3 mi".
func rawDistanceLabel(ev providerEvent) string {
	v := strings.TrimSpace(ev.Distance)
	switch strings.ToUpper(strings.TrimSpace(ev.DistanceUnit)) {
	case "K":
		return fmt.Sprintf("%s km", v)
	case "Y":
		return fmt.Sprintf("%s yd", v)
	case "F":
		return fmt.Sprintf("%s ft", v)
	default:
		return fmt.Sprintf("%s mi", v)
	}
}

// virtualEventTypes are provider event types that mark a sub-event as
// virtual-only.
var virtualEventTypes = map[string]bool{
	"virtual_race":      true,
	"virtual_challenge": true,
}

// classifySurface maps a provider event type to a surface. Walking
// events count as Road; unrecognized types default to Road rather than
// dropping the listing.
func classifySurface(eventType string) string {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "trail_race", "trail_run", "mountain_race":
		return SurfaceTrail
	case "running_race", "running_only", "walk", "run_walk", "race_walk":
		return SurfaceRoad
	default:
		return SurfaceRoad
	}
}
