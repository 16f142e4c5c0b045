package stac

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terradue/aeronet-go/table"
)

const inventoryHeader = "New_Site_ID,Name,Latitude(decimal_degrees),Longitude(decimal_degrees),Altitude(Meters),Data_Start_date(dd-mm-yyyy),Data_End_Date(dd-mm-yyyy),Land_Use_type,Number_of_days_L1,Number_of_days_L1.5,Number_of_days_L2,Number_of_days_Moon_L1.5"

func inventory(t *testing.T, rows ...string) *table.Table {
	t.Helper()
	body := "AERONET_Database_Site_List,Num=2,Date_Generated=01:05:2024\n" + inventoryHeader + "\n" + strings.Join(rows, "\n") + "\n"
	tbl, err := table.ParseStations(strings.NewReader(body))
	require.NoError(t, err)
	return tbl
}

func TestStationItems(t *testing.T) {
	tbl := inventory(t,
		"1,Cart_Site,36.606667,-97.485556,318.0,06-11-1996,01-05-2024,Cropland,8000,7000,6500,120",
		"2,GSFC,38.992500,-76.839833,87.0,01-08-1993,01-05-2024,Urban,9000,8500,8000,300",
	)

	items, err := StationItems(tbl, "https://aeronet.gsfc.nasa.gov/", generatedAt)
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, it := range items {
		require.NoError(t, Validate(it), it.ID)
	}
	assert.Equal(t, "GSFC", items[1].Properties[PropSiteName])
	assert.Equal(t, int64(300), items[1].Properties[PropMoonL20])

	assertGolden(t, "station_item", items[0])
}

func TestStationItemsErrors(t *testing.T) {
	tests := []struct {
		name   string
		row    string
		column string
	}{
		{"bad date", "1,Cart_Site,36.6,-97.4,318.0,1996-11-06,01-05-2024,Cropland,1,1,1,1", ColStartDate},
		{"bad longitude", "1,Cart_Site,36.6,east,318.0,06-11-1996,01-05-2024,Cropland,1,1,1,1", ColLongitude},
		{"fractional day count", "1,Cart_Site,36.6,-97.4,318.0,06-11-1996,01-05-2024,Cropland,1.5,1,1,1", ColDaysL1},
		{"empty id", ",Cart_Site,36.6,-97.4,318.0,06-11-1996,01-05-2024,Cropland,1,1,1,1", ColSiteID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StationItems(inventory(t, tt.row), "https://aeronet.gsfc.nasa.gov", generatedAt)
			require.Error(t, err)

			var se *StationError
			require.True(t, errors.As(err, &se), "expected StationError, got %v", err)
			assert.Equal(t, tt.column, se.Column)
			assert.Equal(t, 0, se.Row)
		})
	}
}

func TestStationItemsMissingColumn(t *testing.T) {
	tbl, err := table.ParseStations(strings.NewReader("x\nNew_Site_ID,Name\n1,Cart_Site\n"))
	require.NoError(t, err)

	_, err = StationItems(tbl, "https://aeronet.gsfc.nasa.gov", generatedAt)
	assert.Error(t, err)
}

func TestValidateRejectsIncompleteExtension(t *testing.T) {
	items, err := StationItems(inventory(t,
		"1,Cart_Site,36.606667,-97.485556,318.0,06-11-1996,01-05-2024,Cropland,8000,7000,6500,120",
	), "https://aeronet.gsfc.nasa.gov", generatedAt)
	require.NoError(t, err)

	it := items[0]
	delete(it.Properties, PropL20)
	err = Validate(it)
	assert.ErrorIs(t, err, ErrInvalidItem)
	assert.Contains(t, err.Error(), "aeronet:L20")

	it.Properties[PropL20] = -1
	assert.ErrorIs(t, Validate(it), ErrInvalidItem)

	it.Properties[PropL20] = 1
	it.Properties[PropSiteName] = ""
	assert.ErrorIs(t, Validate(it), ErrInvalidItem)
}

func TestValidateCoreFields(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), ErrInvalidItem)

	it := newItem("")
	assert.ErrorIs(t, Validate(it), ErrInvalidItem)

	it = newItem("x")
	assert.ErrorIs(t, Validate(it), ErrInvalidItem, "missing datetime")

	it.Properties["datetime"] = "2024-05-01T12:00:00Z"
	assert.NoError(t, Validate(it))
}

func TestWriteGeoParquet(t *testing.T) {
	items, err := StationItems(inventory(t,
		"1,Cart_Site,36.606667,-97.485556,318.0,06-11-1996,01-05-2024,Cropland,8000,7000,6500,120",
		"2,GSFC,38.992500,-76.839833,87.0,01-08-1993,01-05-2024,Urban,9000,8500,8000,300",
	), "https://aeronet.gsfc.nasa.gov", generatedAt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoParquet(&buf, items, table.GeoOptions{}))

	rdr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer rdr.Close()
	assert.Equal(t, int64(2), rdr.NumRows())
	geo := rdr.MetaData().KeyValueMetadata().FindValue("geo")
	require.NotNil(t, geo)
	assert.Contains(t, *geo, `"geometry_types":["Point"]`)
	assert.Contains(t, *geo, `"bbox":[-97.485556,36.606667,-76.839833,38.9925]`)

	tbl, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(buf.Bytes()),
		parquet.NewReaderProperties(memory.DefaultAllocator), pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	defer tbl.Release()

	schema := tbl.Schema()
	names := make([]string, schema.NumFields())
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	assert.Equal(t, []string{
		"type", "stac_version", "stac_extensions", "id", "geometry", "bbox", "links", "assets",
		"aeronet:L10", "aeronet:L15", "aeronet:L20", "aeronet:altitude", "aeronet:land_use_type",
		"aeronet:moon_L20", "aeronet:site_name", "datetime", "end_datetime", "start_datetime", "title",
	}, names)

	idx := schema.FieldIndices("aeronet:L20")[0]
	assert.Equal(t, arrow.INT64, schema.Field(idx).Type.ID())
	l20 := tbl.Column(idx).Data().Chunk(0).(*array.Int64)
	assert.Equal(t, []int64{6500, 8000}, l20.Int64Values())

	idx = schema.FieldIndices("start_datetime")[0]
	assert.Equal(t, arrow.TIMESTAMP, schema.Field(idx).Type.ID())

	ids := tbl.Column(3).Data().Chunk(0).(*array.String)
	assert.Equal(t, "1", ids.Value(0))
	assert.Equal(t, "2", ids.Value(1))
}
