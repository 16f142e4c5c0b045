// Package stac describes AERONET results as STAC items.
//
// A search produces one item whose geometry covers the returned sites, with
// a "via" link to the web service request and one asset per written file.
// The site inventory produces one item per station carrying the aeronet:
// extension properties.
package stac

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/terradue/aeronet-go/table"
)

const (
	// Version is the STAC specification version of generated items.
	Version = "1.0.0"

	// ExtensionSchemaURI identifies the AERONET STAC extension.
	ExtensionSchemaURI = "https://raw.githubusercontent.com/Terradue/aeronet-stac-extension/refs/heads/main/json-schema/schema.json"

	// Prefix is the property prefix of the AERONET extension.
	Prefix = "aeronet:"
)

// Item is a STAC item. Field order matches the STAC JSON layout.
type Item struct {
	Type           string            `json:"type"`
	StacVersion    string            `json:"stac_version"`
	StacExtensions []string          `json:"stac_extensions"`
	ID             string            `json:"id"`
	Geometry       *geojson.Geometry `json:"geometry"`
	BBox           []float64         `json:"bbox,omitempty"`
	Properties     map[string]any    `json:"properties"`
	Links          []Link            `json:"links"`
	Assets         map[string]Asset  `json:"assets"`
}

// Link is a STAC link object.
type Link struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Asset is a STAC asset object.
type Asset struct {
	Href        string   `json:"href"`
	Type        string   `json:"type,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

func newItem(id string) *Item {
	return &Item{
		Type:           "Feature",
		StacVersion:    Version,
		StacExtensions: []string{},
		ID:             id,
		Properties:     map[string]any{},
		Links:          []Link{},
		Assets:         map[string]Asset{},
	}
}

// SetGeometry sets the geometry and its bbox. A nil geometry clears both.
func (it *Item) SetGeometry(g orb.Geometry) {
	if g == nil {
		it.Geometry, it.BBox = nil, nil
		return
	}
	b := g.Bound()
	it.Geometry = geojson.NewGeometry(g)
	it.BBox = []float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}
}

// Encode writes the item as indented JSON without HTML escaping, so request
// URLs keep their literal '&'.
func (it *Item) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(it)
}

// HasExtension reports whether the item declares the schema URI.
func (it *Item) HasExtension(uri string) bool {
	for _, e := range it.StacExtensions {
		if e == uri {
			return true
		}
	}
	return false
}

// SearchItemOptions configures NewSearchItem.
type SearchItemOptions struct {
	// ID of the item.
	// OPTIONAL: defaults to a random UUID.
	ID string

	// RequestURL is the web service request that produced the data.
	// REQUIRED.
	RequestURL string

	// Table is the materialized result, used for the geometry.
	// OPTIONAL: the item has a null geometry without it.
	Table *table.Table

	// Outputs become the item assets.
	Outputs []table.Output

	// LonColumn and LatColumn locate site coordinates in Table.
	// OPTIONAL: default to the table package defaults.
	LonColumn string
	LatColumn string

	// Now is the generation time.
	// OPTIONAL: defaults to time.Now().
	Now time.Time
}

// NewSearchItem builds the catalog item of a completed search. The geometry
// is a Point when every row comes from the same site, the bounding polygon
// of the sites otherwise, and null when the table has no coordinates.
func NewSearchItem(opts SearchItemOptions) (*Item, error) {
	if opts.RequestURL == "" {
		return nil, fmt.Errorf("stac: request URL is required")
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.LonColumn == "" {
		opts.LonColumn = table.DefaultLonColumn
	}
	if opts.LatColumn == "" {
		opts.LatColumn = table.DefaultLatColumn
	}

	it := newItem(opts.ID)
	now := opts.Now.UTC().Format(time.RFC3339)
	it.Properties["datetime"] = now
	it.Properties["created"] = now
	it.Properties["title"] = "AERONET search"

	if opts.Table != nil {
		it.Properties["description"] = fmt.Sprintf("%d rows from the AERONET web service", opts.Table.Len())
		it.SetGeometry(siteGeometry(opts.Table, opts.LonColumn, opts.LatColumn))
	}

	it.Links = append(it.Links, Link{
		Rel:   "via",
		Href:  opts.RequestURL,
		Type:  "text/csv",
		Title: "AERONET web service request",
	})

	for _, out := range opts.Outputs {
		it.Assets[string(out.Format)] = Asset{
			Href:        out.Path,
			Type:        out.Format.MediaType(),
			Title:       string(out.Format),
			Description: out.Format.Description(),
			Roles:       []string{"data"},
		}
	}

	return it, nil
}

// siteGeometry returns the point or bounding polygon of the distinct sites
// in t, or nil.
func siteGeometry(t *table.Table, lonColumn, latColumn string) orb.Geometry {
	points, valid, err := table.Points(t, lonColumn, latColumn)
	if err != nil {
		return nil
	}

	var (
		bound orb.Bound
		first orb.Point
		n     int
		same  = true
	)
	for i, p := range points {
		if !valid[i] {
			continue
		}
		if n == 0 {
			first, bound = p, p.Bound()
		} else {
			bound = bound.Extend(p)
			same = same && p.Equal(first)
		}
		n++
	}

	switch {
	case n == 0:
		return nil
	case same:
		return first
	default:
		return bound.ToPolygon()
	}
}
