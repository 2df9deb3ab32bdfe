// Package mergeplan implements a size-ordered merge policy, filling the
// role bluge's Config.MergePlanOptions describes (referenced, not vendored,
// in bluge/index/config.go), reimplemented here since the teacher tree does
// not carry the mergeplan library's source. Segments below MaxSegmentSize
// are sorted by floored size, and while more than MaxSegmentsPerTier of
// them remain, the smallest SegmentsPerMerge are scheduled as one merge.
// Segments are not grouped into size tiers and merges are not scored by
// cost, so segments of very different sizes can be merged together.
package mergeplan

import "sort"

// Options tunes the merge policy.
type Options struct {
	// MaxSegmentsPerTier is the number of merge-eligible segments allowed
	// before merges are scheduled; merging stops once no more than this
	// many remain.
	MaxSegmentsPerTier int
	// SegmentsPerMerge caps how many segments a single merge combines.
	SegmentsPerMerge int
	// FloorSegmentSize treats every segment smaller than this as if it
	// were this size when ordering segments for merging.
	FloorSegmentSize int64
	// MaxSegmentSize excludes segments at or above this size from being
	// selected into another merge, capping how large a single segment
	// can grow.
	MaxSegmentSize int64
}

// DefaultOptions matches common defaults in Lucene-family tiered merge
// policies: 10 segments per tier, merges of up to 10 segments, a 2MB
// floor, and a 5GB ceiling.
func DefaultOptions() Options {
	return Options{
		MaxSegmentsPerTier: 10,
		SegmentsPerMerge:   10,
		FloorSegmentSize:   2 << 20,
		MaxSegmentSize:     5 << 30,
	}
}

// Segment is the minimal view of a segment the planner needs.
type Segment struct {
	ID       uint64
	LiveSize int64
}

// Plan describes one scheduled merge: the input segment IDs to combine.
type Plan struct {
	Inputs []uint64
}

func (o Options) effectiveSize(s Segment) int64 {
	if s.LiveSize < o.FloorSegmentSize {
		return o.FloorSegmentSize
	}
	return s.LiveSize
}

// FindMerges inspects the current segment set and returns zero or more
// Plans worth executing now. It never schedules a merge that would pull in
// a segment at or above MaxSegmentSize.
func FindMerges(opts Options, segs []Segment) []Plan {
	eligible := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if s.LiveSize < opts.MaxSegmentSize {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) <= opts.MaxSegmentsPerTier {
		return nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		return opts.effectiveSize(eligible[i]) < opts.effectiveSize(eligible[j])
	})

	var plans []Plan
	for len(eligible) > opts.MaxSegmentsPerTier {
		n := opts.SegmentsPerMerge
		if n > len(eligible) {
			n = len(eligible)
		}
		batch := eligible[:n]
		ids := make([]uint64, len(batch))
		for i, s := range batch {
			ids[i] = s.ID
		}
		plans = append(plans, Plan{Inputs: ids})
		eligible = eligible[n:]
	}
	return plans
}
