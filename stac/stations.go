package stac

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/terradue/aeronet-go/table"
)

// Site inventory columns.
const (
	ColSiteID     = "New_Site_ID"
	ColName       = "Name"
	ColLatitude   = "Latitude(decimal_degrees)"
	ColLongitude  = "Longitude(decimal_degrees)"
	ColAltitude   = "Altitude(Meters)"
	ColStartDate  = "Data_Start_date(dd-mm-yyyy)"
	ColEndDate    = "Data_End_Date(dd-mm-yyyy)"
	ColLandUse    = "Land_Use_type"
	ColDaysL1     = "Number_of_days_L1"
	ColDaysL15    = "Number_of_days_L1.5"
	ColDaysL2     = "Number_of_days_L2"
	ColDaysMoon15 = "Number_of_days_Moon_L1.5"

	inventoryDateLayout = "02-01-2006"
)

// AERONET extension property names.
const (
	PropSiteName    = Prefix + "site_name"
	PropLandUseType = Prefix + "land_use_type"
	PropL10         = Prefix + "L10"
	PropL15         = Prefix + "L15"
	PropL20         = Prefix + "L20"
	PropMoonL20     = Prefix + "moon_L20"
	PropAltitude    = Prefix + "altitude"
)

// StationError reports an inventory row that cannot become an item.
type StationError struct {
	Row    int
	Column string
	Err    error
}

func (e *StationError) Error() string {
	return fmt.Sprintf("station row %d, column %q: %v", e.Row, e.Column, e.Err)
}

func (e *StationError) Unwrap() error { return e.Err }

// StationItems converts the site inventory into one item per station.
// baseURL is the web service root the inventory was downloaded from.
func StationItems(t *table.Table, baseURL string, now time.Time) ([]*Item, error) {
	for _, col := range []string{ColSiteID, ColName, ColLatitude, ColLongitude, ColStartDate, ColEndDate,
		ColLandUse, ColDaysL1, ColDaysL15, ColDaysL2, ColDaysMoon15} {
		if t.Index(col) < 0 {
			return nil, fmt.Errorf("stac: site inventory has no %q column", col)
		}
	}
	if now.IsZero() {
		now = time.Now()
	}

	source := Asset{
		Href:        strings.TrimRight(baseURL, "/") + "/aeronet_locations_extended_v3.txt",
		Type:        "text/csv",
		Description: "Data source",
	}
	generated := now.UTC().Format(time.RFC3339)

	items := make([]*Item, 0, t.Len())
	for r := range t.Rows {
		it, err := stationItem(t, r, source, generated)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func stationItem(t *table.Table, r int, source Asset, generated string) (*Item, error) {
	num := func(col string) (float64, error) {
		v, ok := t.Float(r, t.Index(col))
		if !ok {
			return 0, &StationError{Row: r, Column: col, Err: fmt.Errorf("not a number: %q", t.Value(r, col))}
		}
		return v, nil
	}
	count := func(col string) (int64, error) {
		v, err := num(col)
		if err != nil {
			return 0, err
		}
		if v < 0 || v != math.Trunc(v) {
			return 0, &StationError{Row: r, Column: col, Err: fmt.Errorf("not a day count: %v", v)}
		}
		return int64(v), nil
	}
	date := func(col string) (string, error) {
		d, err := time.Parse(inventoryDateLayout, strings.TrimSpace(t.Value(r, col)))
		if err != nil {
			return "", &StationError{Row: r, Column: col, Err: err}
		}
		return d.UTC().Format(time.RFC3339), nil
	}

	id := strings.TrimSpace(t.Value(r, ColSiteID))
	if id == "" {
		return nil, &StationError{Row: r, Column: ColSiteID, Err: fmt.Errorf("empty site id")}
	}
	lon, err := num(ColLongitude)
	if err != nil {
		return nil, err
	}
	lat, err := num(ColLatitude)
	if err != nil {
		return nil, err
	}

	it := newItem(id)
	it.StacExtensions = []string{ExtensionSchemaURI}
	it.SetGeometry(orb.Point{lon, lat})
	it.Assets["source"] = source

	p := it.Properties
	p["datetime"] = generated
	name := t.Value(r, ColName)
	p["title"] = name
	p[PropSiteName] = name
	p[PropLandUseType] = t.Value(r, ColLandUse)

	if p["start_datetime"], err = date(ColStartDate); err != nil {
		return nil, err
	}
	if p["end_datetime"], err = date(ColEndDate); err != nil {
		return nil, err
	}

	for _, pc := range [][2]string{
		{PropL10, ColDaysL1},
		{PropL15, ColDaysL15},
		{PropL20, ColDaysL2},
		{PropMoonL20, ColDaysMoon15},
	} {
		n, err := count(pc[1])
		if err != nil {
			return nil, err
		}
		p[pc[0]] = n
	}

	if i := t.Index(ColAltitude); i >= 0 {
		if alt, ok := t.Float(r, i); ok {
			p[PropAltitude] = alt
		}
	}

	return it, nil
}
