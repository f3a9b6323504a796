package datasource

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// DecodeGeoJSON parses a FeatureCollection. A lone Feature or bare geometry
// is wrapped into a one-element collection.
func DecodeGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, eris.Wrap(err, "geojson: decode")
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, eris.Wrap(err, "geojson: decode feature collection")
		}
		return fc, nil
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, eris.Wrap(err, "geojson: decode feature")
		}
		fc := geojson.NewFeatureCollection()
		fc.Append(f)
		return fc, nil
	case "":
		return nil, eris.New("geojson: missing type")
	}

	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, eris.Wrapf(err, "geojson: decode %s", head.Type)
	}
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(g.Geometry()))
	return fc, nil
}

// EncodeGeoJSON marshals a collection.
func EncodeGeoJSON(fc *geojson.FeatureCollection) ([]byte, error) {
	data, err := fc.MarshalJSON()
	if err != nil {
		return nil, eris.Wrap(err, "geojson: encode")
	}
	return data, nil
}

// ReadShapefile reads polygon records and their attributes from a .shp file
// (with its .dbf sidecar) into a collection. Non-polygon shapes are skipped.
// A missing or truncated .dbf yields features without attributes, and shapes
// past the last attribute record get none.
func ReadShapefile(shpPath string) (*geojson.FeatureCollection, error) {
	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: open %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	var names []string
	records := 0
	if hasAttributeTable(shpPath) {
		for _, f := range reader.Fields() {
			names = append(names, strings.TrimRight(f.String(), "\x00"))
		}
		records = reader.AttributeCount()
	}

	fc := geojson.NewFeatureCollection()
	for reader.Next() {
		row, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}
		g := polygonGeometry(poly)
		if g == nil {
			continue
		}

		f := geojson.NewFeature(g)
		if row >= 0 && row < records {
			for i, name := range names {
				if v := strings.Trim(reader.ReadAttribute(row, i), " \x00"); v != "" {
					f.Properties[name] = v
				}
			}
		}
		fc.Append(f)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "shapefile: read %s", shpPath)
	}
	return fc, nil
}

// dbfHeaderSize is the fixed part of a dBASE header plus its terminator.
const dbfHeaderSize = 33

// hasAttributeTable reports whether the .dbf next to shpPath holds at least a
// header. go-shp sizes its field table from the header without checking it.
func hasAttributeTable(shpPath string) bool {
	info, err := os.Stat(shpPath[:len(shpPath)-len(filepath.Ext(shpPath))] + ".dbf")
	return err == nil && info.Size() >= dbfHeaderSize
}

// polygonGeometry groups shapefile rings into polygons. Clockwise rings start
// a new polygon; counter-clockwise rings are holes of the preceding one.
func polygonGeometry(p *shp.Polygon) orb.Geometry {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var mp orb.MultiPolygon
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || end-start < 4 {
			continue
		}

		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{p.Points[j].X, p.Points[j].Y})
		}

		if ring.Orientation() == orb.CW || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}

	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}
