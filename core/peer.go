package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/ers/schema"
)

// PeerInput is the input of the peer rating aggregator.
// It is exactly one of RawRecords or PrecomputedAggregate.
type PeerInput interface {
	isPeerInput()
}

// RawRecords is a list of individual peer ratings for one metric.
type RawRecords []schema.PeerRatingRecord

// PrecomputedAggregate is an average/count pair computed upstream.
type PrecomputedAggregate schema.PeerRatingAggregate

func (RawRecords) isPeerInput()           {}
func (PrecomputedAggregate) isPeerInput() {}

// Credibility returns the sample-size discount min(log10(count+1), 1).
// It reaches its ceiling at a count of 9.
func Credibility(count int) float64 {
	if count <= 0 {
		return 0
	}
	return math.Min(math.Log10(float64(count)+1), 1)
}

// PeerRatingScore converts peer ratings into a credibility-discounted score in [0,1].
// A nil input or a zero count yields 0.
func PeerRatingScore(in PeerInput) float64 {
	var agg schema.PeerRatingAggregate
	switch v := in.(type) {
	case RawRecords:
		agg = AggregateRecords(v)
	case PrecomputedAggregate:
		agg = schema.PeerRatingAggregate(v)
	default:
		return 0
	}
	if agg.Count <= 0 || math.IsNaN(agg.Average) {
		return 0
	}
	avg := math.Min(agg.Average, schema.MaxPeerRating)
	return clamp01(avg / schema.MaxPeerRating * Credibility(agg.Count))
}

// AggregateRecords computes the average and count of a record set.
// Records sharing a rater id collapse to the one with the latest timestamp;
// records without a rater id are counted individually.
func AggregateRecords(records []schema.PeerRatingRecord) schema.PeerRatingAggregate {
	if len(records) == 0 {
		return schema.PeerRatingAggregate{}
	}

	latest := make(map[string]schema.PeerRatingRecord, len(records))
	var sum float64
	var count int
	for _, r := range records {
		if r.RaterID == "" {
			sum += float64(r.Rating)
			count++
			continue
		}
		if prev, ok := latest[r.RaterID]; ok && prev.Timestamp.After(r.Timestamp) {
			continue
		}
		latest[r.RaterID] = r
	}
	for _, r := range latest {
		sum += float64(r.Rating)
		count++
	}
	if count == 0 {
		return schema.PeerRatingAggregate{}
	}
	return schema.PeerRatingAggregate{Average: sum / float64(count), Count: count}
}

// DecodePeerInput resolves a stored or decoded peer-rated value into a PeerInput.
// Accepted shapes are an {average, count} object or a list of ratings
// (numbers or {rating} objects). Anything else is ErrMalformedPeerData.
func DecodePeerInput(raw any) (PeerInput, error) {
	switch v := raw.(type) {
	case RawRecords:
		return v, nil
	case PrecomputedAggregate:
		return v, nil
	case schema.PeerRatingAggregate:
		return PrecomputedAggregate(v), nil
	case *schema.PeerRatingAggregate:
		if v == nil {
			break
		}
		return PrecomputedAggregate(*v), nil
	case []schema.PeerRatingRecord:
		return RawRecords(v), nil
	case map[string]any:
		return decodeAggregateObject(v)
	case []any:
		return decodeRecordList(v)
	case []int:
		out := make(RawRecords, 0, len(v))
		for _, r := range v {
			out = append(out, schema.PeerRatingRecord{Rating: r})
		}
		return out, nil
	case []float64:
		out := make(RawRecords, 0, len(v))
		for _, r := range v {
			out = append(out, schema.PeerRatingRecord{Rating: int(math.Round(r))})
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unsupported shape %T", schema.ErrMalformedPeerData, raw)
}

func decodeAggregateObject(m map[string]any) (PeerInput, error) {
	avg, okAvg := toFloat(m["average"])
	cnt, okCnt := toFloat(m["count"])
	if !okAvg || !okCnt {
		return nil, fmt.Errorf("%w: object needs numeric average and count", schema.ErrMalformedPeerData)
	}
	count := int(math.Floor(cnt))
	if count < 0 {
		count = 0
	}
	return PrecomputedAggregate{Average: avg, Count: count}, nil
}

func decodeRecordList(items []any) (PeerInput, error) {
	out := make(RawRecords, 0, len(items))
	for i, item := range items {
		var rec schema.PeerRatingRecord
		switch v := item.(type) {
		case map[string]any:
			rating, ok := toFloat(v["rating"])
			if !ok {
				return nil, fmt.Errorf("%w: item %d has no numeric rating", schema.ErrMalformedPeerData, i)
			}
			rec.Rating = int(math.Round(rating))
			rec.RaterID = firstString(v, "rater_id", "raterId")
			if ts := firstString(v, "timestamp"); ts != "" {
				if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
					rec.Timestamp = t
				}
			}
		default:
			rating, ok := toFloat(v)
			if !ok {
				return nil, fmt.Errorf("%w: item %d is %T", schema.ErrMalformedPeerData, i, item)
			}
			rec.Rating = int(math.Round(rating))
		}
		out = append(out, rec)
	}
	return out, nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			return s
		}
	}
	return ""
}

// toFloat converts numeric values and numeric strings to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), !math.IsNaN(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil && !math.IsNaN(f)
	}
	return 0, false
}
