package runsignup

import (
	"sort"
	"strings"
	"time"

	"github.com/raceatlas/racedir-cli/internal/model"
)

// virtualCityAliases are placeholder "cities" providers use for
// virtual-only listings.
var virtualCityAliases = map[string]bool{
	"anywhere":   true,
	"virtual":    true,
	"everywhere": true,
	"your city":  true,
	"any city":   true,
}

// sentinelZips are placeholder postal codes that also mark virtual
// listings.
var sentinelZips = map[string]bool{
	"00000": true,
	"99999": true,
}

const domesticCountryCode = "US"

const providerDateLayout = "1/2/2006"

// qualifies applies the inclusion filters: published, public,
// in-person, domestic, dated, and locatable. Records failing any rule
// never reach the normalizer.
func qualifies(r providerRace) bool {
	if isTrue(r.IsDraft) || isTrue(r.IsPrivate) {
		return false
	}
	if isVirtual(r) {
		return false
	}
	if !strings.EqualFold(strings.TrimSpace(r.Address.CountryCode), domesticCountryCode) {
		return false
	}
	if resolveDate(r) == "" {
		return false
	}
	if len(strings.TrimSpace(r.Address.City)) < 2 || strings.TrimSpace(r.Address.State) == "" {
		return false
	}
	return true
}

// isVirtual detects virtual-only listings by city alias, by every
// sub-event carrying a virtual event type, or by a sentinel zip.
func isVirtual(r providerRace) bool {
	if virtualCityAliases[strings.ToLower(strings.TrimSpace(r.Address.City))] {
		return true
	}
	if len(r.Events) > 0 {
		allVirtual := true
		for _, ev := range r.Events {
			if !virtualEventTypes[strings.ToLower(strings.TrimSpace(ev.EventType))] {
				allVirtual = false
				break
			}
		}
		if allVirtual {
			return true
		}
	}
	return sentinelZips[strings.TrimSpace(r.Address.Zipcode)]
}

// resolveDate prefers the next occurrence over the last one and
// converts the provider's M/D/YYYY format to ISO. Empty when neither
// parses.
func resolveDate(r providerRace) string {
	for _, raw := range []string{r.NextDate, r.LastDate} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		// Some listings carry a trailing time component.
		if i := strings.IndexByte(raw, ' '); i > 0 {
			raw = raw[:i]
		}
		if t, err := time.Parse(providerDateLayout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// primaryEvent picks the sub-event used for classification: the
// longest in-person distance, falling back to the first event.
func primaryEvent(r providerRace) (providerEvent, bool) {
	if len(r.Events) == 0 {
		return providerEvent{}, false
	}
	events := make([]providerEvent, 0, len(r.Events))
	for _, ev := range r.Events {
		if !virtualEventTypes[strings.ToLower(strings.TrimSpace(ev.EventType))] {
			events = append(events, ev)
		}
	}
	if len(events) == 0 {
		return r.Events[0], true
	}
	sort.SliceStable(events, func(i, j int) bool {
		return eventMeters(events[i]) > eventMeters(events[j])
	})
	return events[0], true
}

// toRawRace maps a qualifying provider listing into the pipeline's raw
// record shape.
func toRawRace(r providerRace) model.RawRace {
	raw := model.RawRace{
		Source:      SourceName,
		ExternalID:  formatID(r.RaceID),
		ExternalURL: r.URL,
		Name:        strings.TrimSpace(r.Name),
		Date:        resolveDate(r),
		City:        strings.TrimSpace(r.Address.City),
		State:       strings.TrimSpace(r.Address.State),
		Description: strings.TrimSpace(r.Description),
		Website:     strings.TrimSpace(r.ExternalRaceURL),
	}
	if raw.Website == "" {
		raw.Website = strings.TrimSpace(r.URL)
	}
	raw.RegistrationURL = strings.TrimSpace(r.URL)

	if ev, ok := primaryEvent(r); ok {
		raw.Distance, raw.DistanceLabel = classifyDistance(ev, r.Name)
		raw.Surface = classifySurface(ev.EventType)
		raw.StartTime = strings.TrimSpace(ev.StartTime)
	}
	return raw
}
