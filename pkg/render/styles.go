package render

import (
	"image/color"
	"math"
	"strings"

	"github.com/sudorandom/mobility-map/pkg/entity"
	"github.com/sudorandom/mobility-map/pkg/interpolate"
)

const (
	IconTram  = "tram"
	IconMetro = "metro"
	IconBus   = "bus"

	IconSize    = 24.0
	PointRadius = 8.0
	LineWidth   = 3.0

	flowFullScale  = 1000.0
	valueFullScale = 100.0
)

// ColorScale maps a flow total onto a blue→yellow→red ramp, saturating at
// 1000.
func ColorScale(total float64) color.NRGBA {
	return ramp(total/flowFullScale, 180)
}

func ramp(t float64, alpha uint8) color.NRGBA {
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))
	return color.NRGBA{
		R: uint8(math.Round(255 * t)),
		G: uint8(math.Round(215 * (1 - math.Abs(t-0.5)*2))),
		B: uint8(math.Round(255 * (1 - t))),
		A: alpha,
	}
}

// IconFor picks the vehicle icon from a free-form mode string.
func IconFor(mode string) string {
	if mode == "" {
		mode = entity.DefaultMode
	}
	m := strings.ToLower(mode)
	switch {
	case strings.Contains(m, "tram"):
		return IconTram
	case strings.Contains(m, "metro"):
		return IconMetro
	}
	return IconBus
}

// FlowTotal sums the per-class counters of a traffic segment. Missing or
// non-numeric counters count as 0.
func FlowTotal(props map[string]interface{}) float64 {
	var total float64
	for _, k := range []string{"bike", "car", "heavy", "pedestrian"} {
		if n, ok := entity.Number(props[k]); ok {
			total += n
		}
	}
	return total
}

// GetByPath walks dotted keys through nested objects.
func GetByPath(props map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = props
	for _, key := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = obj[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func VehicleStyle(r interpolate.Rendered) Marker {
	return Marker{Icon: IconFor(r.Mode), Size: IconSize}
}

func FlowStyle(r interpolate.Rendered) Stroke {
	return Stroke{Color: ColorScale(FlowTotal(r.Properties)), Width: LineWidth}
}

func CountStyle(r interpolate.Rendered) Marker {
	n, _ := entity.Number(r.Properties["hourlyCount"])
	return Marker{Color: ColorScale(n), Radius: PointRadius}
}

func AirQualityStyle(r interpolate.Rendered) Marker {
	v, _ := GetByPath(r.Properties, "lastValue.value")
	n, _ := entity.Number(v)
	return Marker{Color: ramp(n/valueFullScale, 200), Radius: PointRadius}
}
