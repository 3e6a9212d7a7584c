package polyline

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"access_router/pkg/graph"
)

// ErrNotLineString is returned for a GeoJSON feature whose geometry is not a
// LineString.
var ErrNotLineString = errors.New("feature geometry is not a LineString")

const tagsProperty = "tags"

// wirePolyline is the JSON shape exchanged with editors: coordinates as
// [lat, lng] pairs and tags keyed by coordinate index.
type wirePolyline struct {
	ID          string            `json:"id"`
	Coordinates [][2]float64      `json:"coordinates"`
	Tags        map[int]TagRecord `json:"tags,omitempty"`
}

func (p Polyline) MarshalJSON() ([]byte, error) {
	w := wirePolyline{
		ID:          string(p.ID),
		Coordinates: make([][2]float64, len(p.Coordinates)),
		Tags:        p.Tags,
	}
	for i, c := range p.Coordinates {
		w.Coordinates[i] = [2]float64{c.Lat, c.Lng}
	}
	return json.Marshal(w)
}

func (p *Polyline) UnmarshalJSON(data []byte) error {
	var w wirePolyline
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.ID = graph.PolylineID(w.ID)
	p.Coordinates = make([]graph.LatLng, len(w.Coordinates))
	for i, c := range w.Coordinates {
		p.Coordinates[i] = graph.LatLng{Lat: c[0], Lng: c[1]}
	}
	p.Tags = w.Tags
	return nil
}

// Feature converts the polyline to a GeoJSON LineString feature. GeoJSON
// positions are [lng, lat].
func (p *Polyline) Feature() *geojson.Feature {
	ls := make(orb.LineString, len(p.Coordinates))
	for i, c := range p.Coordinates {
		ls[i] = orb.Point{c.Lng, c.Lat}
	}
	f := geojson.NewFeature(ls)
	f.ID = string(p.ID)
	if len(p.Tags) > 0 {
		f.Properties[tagsProperty] = p.Tags
	}
	return f
}

// FromFeature converts a GeoJSON feature back into a polyline and validates it.
func FromFeature(f *geojson.Feature) (*Polyline, error) {
	ls, ok := f.Geometry.(orb.LineString)
	if !ok {
		return nil, errors.Wrapf(ErrNotLineString, "feature %v has %T", f.ID, f.Geometry)
	}

	p := &Polyline{Coordinates: make([]graph.LatLng, len(ls))}
	if f.ID != nil {
		p.ID = graph.PolylineID(fmt.Sprint(f.ID))
	}
	for i, pt := range ls {
		p.Coordinates[i] = graph.LatLng{Lat: pt.Lat(), Lng: pt.Lon()}
	}

	if raw, ok := f.Properties[tagsProperty]; ok && raw != nil {
		tags, err := decodeTags(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %v tags", f.ID)
		}
		p.Tags = tags
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// decodeTags normalizes a tags property, which is a typed map when the feature
// was built in memory and a generic JSON object after decoding.
func decodeTags(raw any) (map[int]TagRecord, error) {
	if tags, ok := raw.(map[int]TagRecord); ok {
		return tags, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var tags map[int]TagRecord
	if err := json.Unmarshal(data, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// NewFeatureCollection converts polylines to a GeoJSON feature collection.
func NewFeatureCollection(ps []*Polyline) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range ps {
		fc.Append(p.Feature())
	}
	return fc
}

// MarshalCollection encodes polylines as a GeoJSON FeatureCollection.
func MarshalCollection(ps []*Polyline) ([]byte, error) {
	return json.Marshal(NewFeatureCollection(ps))
}

// UnmarshalCollection decodes and validates a GeoJSON FeatureCollection.
func UnmarshalCollection(data []byte) ([]*Polyline, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode feature collection")
	}
	out := make([]*Polyline, 0, len(fc.Features))
	for i, f := range fc.Features {
		p, err := FromFeature(f)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		out = append(out, p)
	}
	return out, nil
}
