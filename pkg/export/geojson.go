package export

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"saltydog/pkg/geo"
	"saltydog/pkg/track"
)

// GeoJSON renders the session path as a FeatureCollection holding one
// LineString feature, plus start and end Point features when the track has
// any points.
func GeoJSON(points []track.TrackPoint) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	line := track.LineString(points)
	coords := make([]geo.Point, len(points))
	for i, p := range points {
		coords[i] = p.Coordinate()
	}

	path := geojson.NewFeature(line)
	path.Properties["name"] = "path"
	path.Properties["points"] = len(points)
	path.Properties["distance_m"] = geo.PathLength(coords)
	fc.Append(path)

	if len(points) > 0 {
		first, last := points[0], points[len(points)-1]
		start := geojson.NewFeature(line[0])
		start.Properties["name"] = "start"
		start.Properties["time"] = formatTime(first.Timestamp)
		start.Properties["geohash"] = first.Coordinate().Geohash(geo.CellPrecision)
		fc.Append(start)

		end := geojson.NewFeature(line[len(line)-1])
		end.Properties["name"] = "end"
		end.Properties["time"] = formatTime(last.Timestamp)
		end.Properties["geohash"] = last.Coordinate().Geohash(geo.CellPrecision)
		fc.Append(end)
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GeoJSON: %w", err)
	}
	return data, nil
}
