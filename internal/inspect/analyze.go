package inspect

import (
	"cmp"
	"context"
	"slices"
)

// TypeCount is the share of one activity type.
type TypeCount struct {
	Type    string
	Count   int
	Percent float64
}

// HourCount is the number of activities started in one hour of the day.
type HourCount struct {
	Hour  int
	Count int
}

// Report summarizes a collection.
type Report struct {
	Collection string
	Total      int
	Samples    []Activity
	Types      []TypeCount // most frequent first
	Hours      []HourCount // busiest first, at most five
}

// Analyze counts the collection, samples its first documents and breaks
// every document down by type and hour of day.
func (in *Inspector) Analyze(ctx context.Context) (*Report, error) {
	total, err := in.Count(ctx)
	if err != nil {
		return nil, err
	}
	report := &Report{Collection: in.collection, Total: total}
	if total == 0 {
		return report, nil
	}

	all, err := in.Activities(ctx, max(total, sampleSize))
	if err != nil {
		return nil, err
	}
	report.Samples = all[:min(sampleSize, len(all))]
	report.Types = typeDistribution(all)
	report.Hours = busiestHours(all, topHours)
	return report, nil
}

func typeDistribution(activities []Activity) []TypeCount {
	counts := make(map[string]int)
	for _, a := range activities {
		counts[a.Type]++
	}
	out := make([]TypeCount, 0, len(counts))
	for t, n := range counts {
		out = append(out, TypeCount{
			Type:    t,
			Count:   n,
			Percent: float64(n) / float64(len(activities)) * 100,
		})
	}
	slices.SortFunc(out, func(a, b TypeCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
	return out
}

func busiestHours(activities []Activity, n int) []HourCount {
	var perHour [24]int
	for _, a := range activities {
		if a.Timestamp.IsZero() {
			continue
		}
		perHour[a.Timestamp.Hour()]++
	}
	out := make([]HourCount, 0, 24)
	for h, c := range perHour {
		if c > 0 {
			out = append(out, HourCount{Hour: h, Count: c})
		}
	}
	slices.SortStableFunc(out, func(a, b HourCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return out[:min(n, len(out))]
}
