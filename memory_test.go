package aeronet

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/terradue/aeronet-go/filter"
	"github.com/terradue/aeronet-go/stac"
	"github.com/terradue/aeronet-go/table"
)

// TestMemoryLeaks uses memory.NewCheckedAllocator to detect memory leaks.
// This test ensures that all Arrow objects are properly released.
func TestMemoryLeaks(t *testing.T) {
	// Create checked allocator that tracks allocations
	allocator := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer allocator.AssertSize(t, 0) // Verify no leaks at end

	// Test 1: Writing a result table should not leak
	t.Run("WriteGeoParquet", func(t *testing.T) {
		tbl, err := table.ParseCSV(strings.NewReader(
			"AERONET_Site,AOD_500nm,Site_Latitude(Degrees),Site_Longitude(Degrees)\n"+
				"Cart_Site,0.1234,36.606667,-97.485556\n"+
				"Nowhere,0.5,,\n"), table.ReadOptions{SkipLines: -1})
		if err != nil {
			t.Fatalf("ParseCSV failed: %v", err)
		}

		var buf bytes.Buffer
		if err := table.WriteGeoParquet(&buf, tbl, table.GeoOptions{Allocator: allocator}); err != nil {
			t.Fatalf("WriteGeoParquet failed: %v", err)
		}
		if buf.Len() == 0 {
			t.Error("Expected parquet output")
		}
	})

	// Test 2: A failed write should not leak
	t.Run("WriteGeoParquetFailure", func(t *testing.T) {
		tbl, err := table.ParseCSV(strings.NewReader("a,geometry\n1,x\n"), table.ReadOptions{SkipLines: -1})
		if err != nil {
			t.Fatalf("ParseCSV failed: %v", err)
		}

		err = table.WriteGeoParquet(&bytes.Buffer{}, tbl, table.GeoOptions{
			Allocator: allocator,
			LonColumn: "a",
			LatColumn: "a",
		})
		if err == nil {
			t.Fatal("Expected error for clashing geometry column")
		}
	})

	// Test 3: Full search and station dump through the Searcher
	t.Run("Searcher", func(t *testing.T) {
		srv, _ := fakeService(t)
		s := newTestSearcher(t, Config{BaseURL: srv.URL, Allocator: allocator})
		dir := t.TempDir()

		_, err := s.Search(context.Background(), SearchRequest{
			Filter:     cartSiteFilter,
			FilterLang: filter.LangCQL2Text,
			OutputDir:  dir,
		})
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}

		if _, err := s.DumpStations(context.Background(), filepath.Join(dir, "stations.parquet")); err != nil {
			t.Fatalf("DumpStations failed: %v", err)
		}
	})

	// Test 4: stac-geoparquet with items lacking geometry
	t.Run("StacGeoParquet", func(t *testing.T) {
		item, err := stac.NewSearchItem(stac.SearchItemOptions{RequestURL: "https://aeronet.gsfc.nasa.gov"})
		if err != nil {
			t.Fatalf("NewSearchItem failed: %v", err)
		}

		var buf bytes.Buffer
		if err := stac.WriteGeoParquet(&buf, []*stac.Item{item}, table.GeoOptions{Allocator: allocator}); err != nil {
			t.Fatalf("WriteGeoParquet failed: %v", err)
		}
	})
}
