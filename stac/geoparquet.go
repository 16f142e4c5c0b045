package stac

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paulmach/orb"

	"github.com/terradue/aeronet-go/table"
)

// timeProperties are stored as UTC millisecond timestamps.
var timeProperties = map[string]bool{
	"datetime":       true,
	"start_datetime": true,
	"end_datetime":   true,
	"created":        true,
	"updated":        true,
}

// fixed stac-geoparquet columns, in order, before the flattened properties.
const (
	colType = iota
	colStacVersion
	colStacExtensions
	colID
	colGeometry
	colBBox
	colLinks
	colAssets
	numFixedColumns
)

var bboxType = arrow.StructOf(
	arrow.Field{Name: "xmin", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "ymin", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "xmax", Type: arrow.PrimitiveTypes.Float64},
	arrow.Field{Name: "ymax", Type: arrow.PrimitiveTypes.Float64},
)

type propertyColumn struct {
	name string
	typ  arrow.DataType
}

// WriteGeoParquet writes items as stac-geoparquet: one row per item,
// properties flattened to top-level columns, geometry as WKB and bbox as a
// struct. Links and assets are stored as JSON text.
func WriteGeoParquet(w io.Writer, items []*Item, opts table.GeoOptions) error {
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}

	props := propertyColumns(items)
	geo := table.NewGeoMetadata(table.DefaultGeometryColumn, itemsBBox(items), geometryTypes(items)...)
	schema, err := itemSchema(props, geo)
	if err != nil {
		return err
	}

	b := array.NewRecordBuilder(opts.Allocator, schema)
	defer b.Release()
	b.Reserve(len(items))

	for _, it := range items {
		if err := appendItem(b, props, it); err != nil {
			return fmt.Errorf("item %s: %w", it.ID, err)
		}
	}

	rec := b.NewRecordBatch()
	defer rec.Release()

	return table.WriteParquet(w, rec, opts)
}

func itemSchema(props []propertyColumn, geo table.GeoMetadata) (*arrow.Schema, error) {
	fields := []arrow.Field{
		{Name: "type", Type: arrow.BinaryTypes.String},
		{Name: "stac_version", Type: arrow.BinaryTypes.String},
		{Name: "stac_extensions", Type: arrow.ListOf(arrow.BinaryTypes.String)},
		{Name: "id", Type: arrow.BinaryTypes.String},
		table.NewGeometryField(table.DefaultGeometryColumn),
		{Name: "bbox", Type: bboxType, Nullable: true},
		{Name: "links", Type: arrow.BinaryTypes.String},
		{Name: "assets", Type: arrow.BinaryTypes.String},
	}
	for _, p := range props {
		fields = append(fields, arrow.Field{Name: p.name, Type: p.typ, Nullable: true})
	}

	geoJSON, err := json.Marshal(geo)
	if err != nil {
		return nil, fmt.Errorf("encode geo metadata: %w", err)
	}
	md := arrow.NewMetadata([]string{"geo"}, []string{string(geoJSON)})
	return arrow.NewSchema(fields, &md), nil
}

func appendItem(b *array.RecordBuilder, props []propertyColumn, it *Item) error {
	b.Field(colType).(*array.StringBuilder).Append(it.Type)
	b.Field(colStacVersion).(*array.StringBuilder).Append(it.StacVersion)

	lb := b.Field(colStacExtensions).(*array.ListBuilder)
	lb.Append(true)
	vb := lb.ValueBuilder().(*array.StringBuilder)
	for _, e := range it.StacExtensions {
		vb.Append(e)
	}

	b.Field(colID).(*array.StringBuilder).Append(it.ID)

	gb := b.Field(colGeometry).(*array.ExtensionBuilder).StorageBuilder().(*array.BinaryBuilder)
	if it.Geometry == nil {
		gb.AppendNull()
	} else {
		data, err := table.EncodeGeometry(it.Geometry.Geometry())
		if err != nil {
			return err
		}
		gb.Append(data)
	}

	sb := b.Field(colBBox).(*array.StructBuilder)
	if len(it.BBox) == 4 {
		sb.Append(true)
		for i, v := range it.BBox {
			sb.FieldBuilder(i).(*array.Float64Builder).Append(v)
		}
	} else {
		sb.AppendNull()
	}

	for col, v := range map[int]any{colLinks: it.Links, colAssets: it.Assets} {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		b.Field(col).(*array.StringBuilder).Append(string(data))
	}

	for i, p := range props {
		if err := appendProperty(b.Field(numFixedColumns+i), p, it.Properties[p.name]); err != nil {
			return fmt.Errorf("property %q: %w", p.name, err)
		}
	}
	return nil
}

func appendProperty(fb array.Builder, p propertyColumn, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}

	switch fb := fb.(type) {
	case *array.TimestampBuilder:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected RFC 3339 string, got %T", v)
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		fb.Append(arrow.Timestamp(ts.UnixMilli()))
	case *array.Int64Builder:
		n, ok := v.(int64)
		if !ok {
			if i, isInt := v.(int); isInt {
				n, ok = int64(i), true
			}
		}
		if !ok {
			return fmt.Errorf("expected integer, got %T", v)
		}
		fb.Append(n)
	case *array.Float64Builder:
		switch n := v.(type) {
		case float64:
			fb.Append(n)
		case int64:
			fb.Append(float64(n))
		case int:
			fb.Append(float64(n))
		default:
			return fmt.Errorf("expected number, got %T", v)
		}
	case *array.BooleanBuilder:
		t, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected boolean, got %T", v)
		}
		fb.Append(t)
	case *array.StringBuilder:
		if s, ok := v.(string); ok {
			fb.Append(s)
			return nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fb.Append(string(data))
	default:
		return fmt.Errorf("unsupported column type %s", p.typ)
	}
	return nil
}

// propertyColumns returns the union of property keys, sorted, each typed by
// its first non-nil value. Mixed int/float keys widen to float64; any other
// mix falls back to JSON text.
func propertyColumns(items []*Item) []propertyColumn {
	types := map[string]arrow.DataType{}
	for _, it := range items {
		for k, v := range it.Properties {
			if v == nil {
				continue
			}
			t := valueType(k, v)
			prev, seen := types[k]
			switch {
			case !seen:
				types[k] = t
			case arrow.TypeEqual(prev, t):
			case isNumeric(prev) && isNumeric(t):
				types[k] = arrow.PrimitiveTypes.Float64
			default:
				types[k] = arrow.BinaryTypes.String
			}
		}
	}

	cols := make([]propertyColumn, 0, len(types))
	for k, t := range types {
		cols = append(cols, propertyColumn{name: k, typ: t})
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].name < cols[j].name })
	return cols
}

func valueType(key string, v any) arrow.DataType {
	switch v.(type) {
	case string:
		if timeProperties[key] {
			return arrow.FixedWidthTypes.Timestamp_ms
		}
		return arrow.BinaryTypes.String
	case int, int64:
		return arrow.PrimitiveTypes.Int64
	case float64:
		return arrow.PrimitiveTypes.Float64
	case bool:
		return arrow.FixedWidthTypes.Boolean
	}
	return arrow.BinaryTypes.String
}

func isNumeric(t arrow.DataType) bool {
	return t.ID() == arrow.INT64 || t.ID() == arrow.FLOAT64
}

func itemsBBox(items []*Item) []float64 {
	var (
		bound orb.Bound
		found bool
	)
	for _, it := range items {
		if len(it.BBox) != 4 {
			continue
		}
		b := orb.Bound{Min: orb.Point{it.BBox[0], it.BBox[1]}, Max: orb.Point{it.BBox[2], it.BBox[3]}}
		if !found {
			bound, found = b, true
		} else {
			bound = bound.Union(b)
		}
	}
	if !found {
		return nil
	}
	return []float64{bound.Min.X(), bound.Min.Y(), bound.Max.X(), bound.Max.Y()}
}

func geometryTypes(items []*Item) []string {
	seen := map[string]bool{}
	var types []string
	for _, it := range items {
		if it.Geometry == nil || seen[it.Geometry.Type] {
			continue
		}
		seen[it.Geometry.Type] = true
		types = append(types, it.Geometry.Type)
	}
	sort.Strings(types)
	return types
}
