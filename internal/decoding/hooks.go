package decoding

import "time"

// timestampHook removes the timestamp sentinel at its position and sets its
// value (seconds since the unix epoch) as CreatedAt of all measurements
// decoded after it.
func timestampHook(position int, ms []Measurement) []Measurement {
	return applySentinel(position, ms, SentinelTimestamp, func(sentinel Measurement, m *Measurement) {
		ts := time.Unix(int64(sentinel.Value), 0).UTC()
		m.CreatedAt = &ts
	})
}

// locationHook removes the location sentinel at its position and sets its
// value as Location of all measurements decoded after it. The sentinel
// carries the coordinates in wire order (lng, lat).
func locationHook(position int, ms []Measurement) []Measurement {
	return applySentinel(position, ms, SentinelLocation, func(sentinel Measurement, m *Measurement) {
		if len(sentinel.Vector) < 2 {
			return
		}
		m.Location = &Location{
			Lat: sentinel.Vector[1],
			Lng: sentinel.Vector[0],
		}
	})
}

// locationForAll returns a hook setting the location of all measurements.
func locationForAll(loc Location) PostHook {
	return func(_ int, ms []Measurement) []Measurement {
		out := make([]Measurement, len(ms))
		for i := range ms {
			out[i] = ms[i]
			l := loc
			out[i].Location = &l
		}
		return out
	}
}

func applySentinel(position int, ms []Measurement, kind Sentinel, apply func(sentinel Measurement, m *Measurement)) []Measurement {
	var sentinel *Measurement
	out := make([]Measurement, 0, len(ms))

	for i := range ms {
		if ms[i].sentinel == kind && ms[i].position == position {
			sentinel = &ms[i]
			continue
		}
		out = append(out, ms[i])
	}

	if sentinel == nil {
		return out
	}

	for i := range out {
		if out[i].position > position {
			apply(*sentinel, &out[i])
		}
	}

	return out
}
