package history

import (
	"sort"
	"time"

	"netmonitor/internal/models"
)

const (
	// DefaultTimelinePoints controls how many dots we generate per target.
	DefaultTimelinePoints = 60
	maxDetailsPerPoint    = 4
)

const (
	stateUnavailable = "unavailable"
	stateClosed      = "closed"
)

type reading struct {
	Timestamp   time.Time
	Measurement models.Measurement
}

// BuildTargetTimelines converts a sample series into compact per-target
// timelines covering [start, end). Targets keep their configured order.
func BuildTargetTimelines(
	samples []models.Sample,
	targets []models.Target,
	start, end time.Time,
	points int,
) []models.TargetTimeline {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}
	if len(targets) == 0 {
		return nil
	}

	ordered := samples
	if !sort.SliceIsSorted(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	}) {
		ordered = make([]models.Sample, len(samples))
		copy(ordered, samples)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Timestamp.Before(ordered[j].Timestamp)
		})
	}

	result := make([]models.TargetTimeline, 0, len(targets))
	for _, target := range targets {
		readings := make([]reading, 0, len(ordered))
		for _, sample := range ordered {
			readings = append(readings, reading{
				Timestamp:   sample.Timestamp,
				Measurement: sample.Measurement(target),
			})
		}
		result = append(result, models.TargetTimeline{
			TargetID: target.ID(),
			Column:   target.Column(),
			Kind:     target.Kind,
			Timeline: buildTimeline(readings, target.Kind, start, end, points),
		})
	}
	return result
}

func buildTimeline(readings []reading, kind models.TargetKind, start, end time.Time, points int) []models.TimelinePoint {
	output := make([]models.TimelinePoint, 0, points)
	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	cursor := 0
	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}
		bucket, next := collectBucket(readings, bucketStart, bucketEnd, cursor)
		cursor = next
		class, label, details := evaluateBucket(bucket, kind)
		output = append(output, models.TimelinePoint{
			ClassName: class,
			Label:     label,
			Start:     bucketStart,
			End:       bucketEnd,
			Details:   details,
		})
	}
	return output
}

func collectBucket(readings []reading, start, end time.Time, cursor int) ([]reading, int) {
	total := len(readings)
	if total == 0 || cursor >= total {
		return nil, cursor
	}
	i := cursor
	for i < total && readings[i].Timestamp.Before(start) {
		i++
	}
	j := i
	for j < total && readings[j].Timestamp.Before(end) {
		j++
	}
	return readings[i:j], j
}

func evaluateBucket(entries []reading, kind models.TargetKind) (className, label string, details []models.TimelineDetail) {
	if len(entries) == 0 {
		return "state-missing", "No data", nil
	}
	var hasError, hasClosed bool
	details = make([]models.TimelineDetail, 0, maxDetailsPerPoint)
	for _, entry := range entries {
		switch {
		case !entry.Measurement.Available:
			hasError = true
			details = appendDetail(details, entry.Timestamp, stateUnavailable)
		case kind == models.KindPort && !entry.Measurement.Reachable:
			hasClosed = true
			details = appendDetail(details, entry.Timestamp, stateClosed)
		}
	}

	switch {
	case hasError:
		return "state-error", "Unavailable", details
	case hasClosed:
		return "state-warning", "Unreachable", details
	default:
		return "state-success", "Operational", nil
	}
}

func appendDetail(details []models.TimelineDetail, ts time.Time, state string) []models.TimelineDetail {
	if len(details) >= maxDetailsPerPoint {
		return details
	}
	return append(details, models.TimelineDetail{Timestamp: ts, State: state})
}
