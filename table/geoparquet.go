package table

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/paulmach/orb"
)

const (
	// DefaultLonColumn and DefaultLatColumn locate the site coordinates in
	// print_web_data_v3 responses.
	DefaultLonColumn = "Site_Longitude(Degrees)"
	DefaultLatColumn = "Site_Latitude(Degrees)"

	// DefaultGeometryColumn is the name of the WKB column.
	DefaultGeometryColumn = "geometry"

	geoParquetVersion = "1.0.0"
)

// GeoOptions configures WriteGeoParquet.
type GeoOptions struct {
	// LonColumn holds point longitudes.
	// OPTIONAL: defaults to DefaultLonColumn.
	LonColumn string

	// LatColumn holds point latitudes.
	// OPTIONAL: defaults to DefaultLatColumn.
	LatColumn string

	// GeometryColumn names the generated WKB column.
	// OPTIONAL: defaults to DefaultGeometryColumn.
	GeometryColumn string

	// Compression codec for column chunks.
	// OPTIONAL: defaults to gzip.
	Compression *compress.Compression

	// Allocator for Arrow buffers.
	// OPTIONAL: defaults to memory.DefaultAllocator.
	Allocator memory.Allocator
}

func (o GeoOptions) withDefaults() GeoOptions {
	if o.LonColumn == "" {
		o.LonColumn = DefaultLonColumn
	}
	if o.LatColumn == "" {
		o.LatColumn = DefaultLatColumn
	}
	if o.GeometryColumn == "" {
		o.GeometryColumn = DefaultGeometryColumn
	}
	if o.Compression == nil {
		gz := compress.Codecs.Gzip
		o.Compression = &gz
	}
	if o.Allocator == nil {
		o.Allocator = memory.DefaultAllocator
	}
	return o
}

// GeoMetadata is the GeoParquet "geo" file metadata.
type GeoMetadata struct {
	Version       string               `json:"version"`
	PrimaryColumn string               `json:"primary_column"`
	Columns       map[string]GeoColumn `json:"columns"`
}

// GeoColumn describes one geometry column.
type GeoColumn struct {
	Encoding      string    `json:"encoding"`
	GeometryTypes []string  `json:"geometry_types"`
	CRS           *CRS      `json:"crs,omitempty"`
	BBox          []float64 `json:"bbox,omitempty"`
}

// NewGeoMetadata returns metadata for a single WKB column of the given
// geometry types in EPSG:4326.
func NewGeoMetadata(column string, bbox []float64, types ...string) GeoMetadata {
	if types == nil {
		types = []string{}
	}
	return GeoMetadata{
		Version:       geoParquetVersion,
		PrimaryColumn: column,
		Columns: map[string]GeoColumn{
			column: {
				Encoding:      "WKB",
				GeometryTypes: types,
				CRS:           crs4326(),
				BBox:          bbox,
			},
		},
	}
}

// Points returns one point per row built from the coordinate columns, with
// ok[i] false where a coordinate is empty or not numeric.
func Points(t *Table, lonColumn, latColumn string) ([]orb.Point, []bool, error) {
	lon, lat := t.Index(lonColumn), t.Index(latColumn)
	if lon < 0 || lat < 0 {
		return nil, nil, fmt.Errorf("%w: need %q and %q", ErrMissingCoordinates, lonColumn, latColumn)
	}

	points := make([]orb.Point, t.Len())
	ok := make([]bool, t.Len())
	for i := range t.Rows {
		x, okx := t.Float(i, lon)
		y, oky := t.Float(i, lat)
		if okx && oky {
			points[i] = orb.Point{x, y}
			ok[i] = true
		}
	}
	return points, ok, nil
}

// WriteGeoParquet writes t as GeoParquet 1.0 with a WKB point column built
// from the coordinate columns. Rows without valid coordinates get a null
// geometry.
func WriteGeoParquet(w io.Writer, t *Table, opts GeoOptions) error {
	opts = opts.withDefaults()

	points, valid, err := Points(t, opts.LonColumn, opts.LatColumn)
	if err != nil {
		return err
	}

	geo := NewGeoMetadata(opts.GeometryColumn, pointsBBox(points, valid), "Point")
	schema, err := arrowSchema(t, opts.GeometryColumn, geo)
	if err != nil {
		return err
	}

	b := array.NewRecordBuilder(opts.Allocator, schema)
	defer b.Release()
	b.Reserve(t.Len())

	for c, col := range t.Columns {
		switch col.Type {
		case Float:
			fb := b.Field(c).(*array.Float64Builder)
			for r := range t.Rows {
				if v, ok := t.Float(r, c); ok {
					fb.Append(v)
				} else {
					fb.AppendNull()
				}
			}
		default:
			sb := b.Field(c).(*array.StringBuilder)
			for _, row := range t.Rows {
				sb.Append(row[c])
			}
		}
	}

	gb := b.Field(len(t.Columns)).(*array.ExtensionBuilder).StorageBuilder().(*array.BinaryBuilder)
	for i, p := range points {
		if !valid[i] {
			gb.AppendNull()
			continue
		}
		data, err := EncodeGeometry(p)
		if err != nil {
			return fmt.Errorf("encode geometry for row %d: %w", i, err)
		}
		gb.Append(data)
	}

	rec := b.NewRecordBatch()
	defer rec.Release()

	return WriteParquet(w, rec, opts)
}

// WriteParquet writes rec as a single row group, keeping its schema metadata
// and extension types. Only the Compression and Allocator options are used.
func WriteParquet(w io.Writer, rec arrow.RecordBatch, opts GeoOptions) error {
	opts = opts.withDefaults()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(*opts.Compression),
		parquet.WithAllocator(opts.Allocator),
	)
	arrProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(opts.Allocator),
	)

	fw, err := pqarrow.NewFileWriter(rec.Schema(), w, props, arrProps)
	if err != nil {
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("write row group: %w", err)
	}
	return fw.Close()
}

func arrowSchema(t *Table, geometryColumn string, geo GeoMetadata) (*arrow.Schema, error) {
	if t.Index(geometryColumn) >= 0 {
		return nil, fmt.Errorf("column %q already exists", geometryColumn)
	}

	fields := make([]arrow.Field, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		var dt arrow.DataType = arrow.BinaryTypes.String
		if c.Type == Float {
			dt = arrow.PrimitiveTypes.Float64
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: dt, Nullable: true})
	}
	fields = append(fields, NewGeometryField(geometryColumn))

	geoJSON, err := json.Marshal(geo)
	if err != nil {
		return nil, fmt.Errorf("encode geo metadata: %w", err)
	}
	md := arrow.NewMetadata([]string{"geo"}, []string{string(geoJSON)})
	return arrow.NewSchema(fields, &md), nil
}

// pointsBBox returns [minx, miny, maxx, maxy] of the valid points, or nil.
func pointsBBox(points []orb.Point, valid []bool) []float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false
	for i, p := range points {
		if !valid[i] {
			continue
		}
		found = true
		minX, maxX = math.Min(minX, p.X()), math.Max(maxX, p.X())
		minY, maxY = math.Min(minY, p.Y()), math.Max(maxY, p.Y())
	}
	if !found {
		return nil
	}
	return []float64{minX, minY, maxX, maxY}
}
