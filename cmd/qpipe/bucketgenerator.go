package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/colstream/qpipe/pkg/clause"
)

// TimeBucketGenerator is the concrete clause.BucketGenerator this CLI
// wires into Resample. It understands two rule shapes: anything
// time.ParseDuration accepts ("500ms", "5m", "1h"), and a calendar-unit
// suffix of D (day) or W (week), e.g. "1D", "2W" — both taken as fixed
// 24h/7*24h multiples, not actual calendar days (no DST or month-length
// awareness). A real calendar-aware rule set (month/quarter/year
// boundaries) is out of scope; nothing in the pack wires a calendar
// library for this narrow a need.
//
// closed selects which edge of each interval the caller will treat as
// closed (see clause.ClosedBoundary); for ClosedRight we align one step
// earlier so a row sitting exactly on rangeStart still falls inside a
// generated bucket's (Start,End] rather than being left of every bucket.
func TimeBucketGenerator(rangeStart, rangeEnd int64, rule string, originOffset int64, closed clause.ClosedBoundary) []clause.TimeBucket {
	step, err := parseRule(rule)
	if err != nil || step <= 0 {
		return nil
	}

	aligned := originOffset + ((rangeStart-originOffset)/step)*step
	if aligned > rangeStart {
		aligned -= step
	}
	if closed == clause.ClosedRight {
		aligned -= step
	}

	var buckets []clause.TimeBucket
	for b := aligned; b < rangeEnd; b += step {
		buckets = append(buckets, clause.TimeBucket{Start: b, End: b + step})
	}
	return buckets
}

func parseRule(rule string) (int64, error) {
	if d, err := time.ParseDuration(rule); err == nil {
		return int64(d), nil
	}
	if rule == "" {
		return 0, fmt.Errorf("empty resample rule")
	}
	unit := rule[len(rule)-1]
	n := int64(1)
	if numPart := rule[:len(rule)-1]; numPart != "" {
		parsed, err := strconv.ParseInt(numPart, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unrecognized resample rule %q", rule)
		}
		n = parsed
	}
	switch unit {
	case 'D', 'd':
		return n * int64(24*time.Hour), nil
	case 'W', 'w':
		return n * int64(7*24*time.Hour), nil
	default:
		return 0, fmt.Errorf("unrecognized resample rule %q", rule)
	}
}
