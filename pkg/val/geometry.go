package val

import "fmt"

// GeometryV is the Value variant for spatial data (spec §3.1). Sub-kind is
// carried explicitly rather than inferred from populated fields, mirroring
// GeoJSON's own "type" discriminant.
type GeometryV struct {
	Sub GeomKind

	Point      [2]float64
	Line       [][2]float64
	Polygon    [][][2]float64
	MultiPoint [][2]float64
	MultiLine  [][][2]float64
	MultiPoly  [][][][2]float64
	Collection []GeometryV
}

func (GeometryV) Kind() KindTag { return KindPoint }

func (g GeometryV) String() string {
	switch g.Sub {
	case GeomPoint:
		return fmt.Sprintf("(%g, %g)", g.Point[0], g.Point[1])
	case GeomLine:
		return fmt.Sprintf("LINESTRING(%d pts)", len(g.Line))
	case GeomPolygon:
		return fmt.Sprintf("POLYGON(%d rings)", len(g.Polygon))
	case GeomMultiPoint:
		return fmt.Sprintf("MULTIPOINT(%d pts)", len(g.MultiPoint))
	case GeomMultiLine:
		return fmt.Sprintf("MULTILINESTRING(%d)", len(g.MultiLine))
	case GeomMultiPolygon:
		return fmt.Sprintf("MULTIPOLYGON(%d)", len(g.MultiPoly))
	case GeomCollection:
		return fmt.Sprintf("GEOMETRYCOLLECTION(%d)", len(g.Collection))
	default:
		return "GEOMETRY"
	}
}

// compareGeometry gives geometries a deterministic, if not geographically
// meaningful, order: first by sub-kind, then by String(). String() shows
// only the element count for non-point kinds, so two distinct lines or
// polygons with the same count compare equal. Spatial operators
// (CONTAINS/INTERSECTS) are separate truthy-producing predicates, not
// part of the ordering.
func compareGeometry(a, b GeometryV) int {
	if a.Sub != b.Sub {
		if a.Sub < b.Sub {
			return -1
		}
		return 1
	}
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
