package sources

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sudorandom/mobility-map/pkg/entity"
)

const TunnelMode = "tunnel"

// HourlyBucketKeys are the names the traffic feed has used for its
// 60-minute bucket, newest convention first.
var HourlyBucketKeys = []string{"60m", "60M", "1h", "60min"}

// TunnelKeyRules resolve the key shared by a device record and its traffic
// reading.
var TunnelKeyRules = append([]entity.Rule{
	entity.Property("traverse_name"),
	entity.Property("id"),
}, entity.IDRules...)

// FuseTunnels joins the device-position payload onto the traffic-count
// payload. Devices drive the join; a device without a traffic reading gets
// an hourlyCount of 0.
func FuseTunnels(traffic, devices []byte, at time.Time) (*entity.Snapshot, error) {
	readings, err := trafficReadings(traffic)
	if err != nil {
		return nil, err
	}
	features, err := featureList(devices)
	if err != nil {
		return nil, fmt.Errorf("tunnel devices: %w", err)
	}

	snap := entity.NewSnapshot(at, len(features))
	for i, raw := range features {
		rec := entity.Decode(raw, i)
		key, _ := entity.Resolve(rec, TunnelKeyRules)

		results := readingResults(readings[key])
		props := make(map[string]interface{}, len(rec.Properties)+2)
		for k, v := range rec.Properties {
			props[k] = v
		}
		props["hourlyCount"] = HourlyCount(results)
		props["results"] = results

		snap.Add(entity.Entity{
			ID:         key,
			Class:      rec.Class,
			Mode:       TunnelMode,
			Position:   rec.Position,
			Geometry:   rec.Geometry,
			Properties: props,
		})
	}
	return snap, nil
}

func trafficReadings(payload []byte) (map[string]interface{}, error) {
	var top interface{}
	if err := json.Unmarshal(payload, &top); err != nil {
		return nil, fmt.Errorf("malformed tunnel traffic: %w", err)
	}
	obj, _ := top.(map[string]interface{})
	data, _ := obj["data"].(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	return data, nil
}

func readingResults(reading interface{}) map[string]interface{} {
	r, _ := reading.(map[string]interface{})
	results, _ := r["results"].(map[string]interface{})
	if results == nil {
		return map[string]interface{}{}
	}
	return results
}

// HourlyCount sums the t1 and t2 counters of the 60-minute bucket. A
// missing or non-numeric counter counts as 0.
func HourlyCount(results map[string]interface{}) float64 {
	var bucket map[string]interface{}
	for _, k := range HourlyBucketKeys {
		if b, ok := results[k].(map[string]interface{}); ok {
			bucket = b
			break
		}
	}
	return subCount(bucket, "t1") + subCount(bucket, "t2")
}

func subCount(bucket map[string]interface{}, name string) float64 {
	counter, _ := bucket[name].(map[string]interface{})
	n, ok := entity.Number(counter["count"])
	if !ok {
		return 0
	}
	return n
}
