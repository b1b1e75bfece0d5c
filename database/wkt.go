package database

import (
	"fmt"
	"strings"

	geojson "github.com/paulmach/go.geojson"
)

// WKT order for MySQL SRID 4326 is latitude first.

func PointToWKT(longitude, latitude float64) string {
	return fmt.Sprintf("POINT(%g %g)", latitude, longitude)
}

func GeometryToWKT(g *geojson.Geometry) (string, error) {
	switch {
	case g.IsPolygon():
		return fmt.Sprintf("POLYGON(%s)", innerWKT(g.Polygon)), nil
	case g.IsMultiPolygon():
		polys := make([]string, len(g.MultiPolygon))
		for i, poly := range g.MultiPolygon {
			polys[i] = fmt.Sprintf("(%s)", innerWKT(poly))
		}
		return fmt.Sprintf("MULTIPOLYGON(%s)", strings.Join(polys, ",")), nil
	default:
		return "", fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

func innerWKT(poly [][][]float64) string {
	wktLoops := make([]string, len(poly))
	for i, loop := range poly {
		wktPairs := make([]string, len(loop))
		for j, point := range loop {
			wktPairs[j] = fmt.Sprintf("%g %g", point[1], point[0])
		}
		wktLoops[i] = fmt.Sprintf("(%s)", strings.Join(wktPairs, ","))
	}
	return strings.Join(wktLoops, ",")
}
