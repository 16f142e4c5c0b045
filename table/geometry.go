package table

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// WKBType is the geoarrow.wkb Arrow extension type: WKB geometries stored in
// a Binary column. Readers that know GeoArrow (DuckDB spatial, GDAL,
// geopandas) decode the column as geometry.
type WKBType struct {
	arrow.ExtensionBase
}

// NewWKBType returns the extension type over Binary storage.
func NewWKBType() *WKBType {
	return &WKBType{ExtensionBase: arrow.ExtensionBase{Storage: arrow.BinaryTypes.Binary}}
}

func (g *WKBType) ArrayType() reflect.Type {
	return reflect.TypeOf(WKBArray{})
}

func (g *WKBType) ExtensionName() string { return "geoarrow.wkb" }

func (g *WKBType) String() string { return "extension<geoarrow.wkb>" }

// Serialize returns the extension metadata, which carries the CRS.
func (g *WKBType) Serialize() string {
	data, _ := json.Marshal(geoArrowMetadata{CRS: crs4326()})
	return string(data)
}

func (g *WKBType) Deserialize(storageType arrow.DataType, data string) (arrow.ExtensionType, error) {
	if !arrow.TypeEqual(storageType, arrow.BinaryTypes.Binary) &&
		!arrow.TypeEqual(storageType, arrow.BinaryTypes.LargeBinary) {
		return nil, fmt.Errorf("invalid storage type for geoarrow.wkb: %s", storageType)
	}
	return &WKBType{ExtensionBase: arrow.ExtensionBase{Storage: storageType}}, nil
}

func (g *WKBType) ExtensionEquals(other arrow.ExtensionType) bool {
	o, ok := other.(*WKBType)
	return ok && arrow.TypeEqual(g.StorageType(), o.StorageType())
}

// WKBArray is the array of a geoarrow.wkb column.
type WKBArray struct {
	array.ExtensionArrayBase
}

// Geometry decodes element i. Nulls decode to nil.
func (a *WKBArray) Geometry(i int) (orb.Geometry, error) {
	if a.IsNull(i) {
		return nil, nil
	}
	return DecodeGeometry(a.Storage().(*array.Binary).Value(i))
}

type geoArrowMetadata struct {
	CRS *CRS `json:"crs,omitempty"`
}

// CRS is a minimal PROJJSON coordinate reference system.
type CRS struct {
	Type string `json:"type,omitempty"`
	Name string `json:"name,omitempty"`
	ID   *CRSID `json:"id,omitempty"`
}

// CRSID identifies a CRS by authority and code.
type CRSID struct {
	Authority string `json:"authority"`
	Code      int    `json:"code"`
}

func crs4326() *CRS {
	return &CRS{
		Type: "GeographicCRS",
		Name: "WGS 84",
		ID:   &CRSID{Authority: "EPSG", Code: 4326},
	}
}

// NewGeometryField returns a nullable geoarrow.wkb field. The extension name
// and metadata are added by the Arrow schema serializer.
func NewGeometryField(name string) arrow.Field {
	return arrow.Field{
		Name:     name,
		Type:     NewWKBType(),
		Nullable: true,
		Metadata: arrow.MetadataFrom(map[string]string{
			"srid":          "4326",
			"geometry_type": "Point",
			"dimension":     "XY",
		}),
	}
}

// EncodeGeometry converts an orb geometry to WKB.
func EncodeGeometry(geom orb.Geometry) ([]byte, error) {
	if geom == nil {
		return nil, fmt.Errorf("cannot encode nil geometry")
	}
	return wkb.Marshal(geom)
}

// DecodeGeometry converts WKB back to an orb geometry.
func DecodeGeometry(data []byte) (orb.Geometry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot decode empty WKB data")
	}
	return wkb.Unmarshal(data)
}

func init() {
	_ = arrow.RegisterExtensionType(NewWKBType())
}
