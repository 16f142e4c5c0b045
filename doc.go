// Package aeronet provides a high-level API for querying the AERONET (Aerosol
// Robotic Network) v3 web service with CQL2 filters.
//
// The aeronet package simplifies working with AERONET data by:
//   - Compiling CQL2-JSON or CQL2-text filters into web service query parameters
//   - Printing the request URL without touching the network (dry run)
//   - Fetching results with rate limiting, retries and an optional response cache
//   - Writing results as GeoParquet or CSV, concurrently
//   - Describing results and stations as STAC items
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/terradue/aeronet-go"
//	    "github.com/terradue/aeronet-go/filter"
//	)
//
//	func main() {
//	    s, err := aeronet.NewSearcher(aeronet.Config{})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer s.Close()
//
//	    res, err := s.Search(context.Background(), aeronet.SearchRequest{
//	        FilterLang: filter.LangCQL2Text,
//	        Filter: "site = 'Cart_Site' AND data_type = 'AOD20' AND " +
//	            "T_AFTER(time, TIMESTAMP('2000-06-01T00:00:00Z')) AND " +
//	            "T_BEFORE(time, TIMESTAMP('2000-06-14T00:00:00Z'))",
//	        OutputDir: "out",
//	        STAC:      true,
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    log.Printf("%d rows written to %v", res.Table.Len(), res.Files)
//	}
//
// # Dry Run
//
// DryRun compiles the filter and returns the request URL only:
//
//	url, err := s.DryRun(filter.LangCQL2Text, "site = 'Cart_Site' AND data_type = 'AOD20'")
//	// https://aeronet.gsfc.nasa.gov/cgi-bin/print_web_data_v3?site=Cart_Site&AOD20=1
//
// # Custom Registries
//
// The default registry covers site, data_type, format, data_format and time.
// Use NewRegistryBuilder to declare a different set of queryables:
//
//	reg, err := aeronet.NewRegistryBuilder().
//	    Queryable("site").Literal("site").
//	    Queryable("level").Coded("AVG").Code("all-points", "10").Code("daily-average", "20").
//	    Build()
//	s, err := aeronet.NewSearcher(aeronet.Config{Registry: reg})
//
// # Errors
//
// Compile failures are *filter.CompileError, malformed filters
// *filter.SyntaxError, web service failures *client.TransportError and write
// failures *table.MaterializationError. Use errors.Is with the package
// sentinels to classify them.
package aeronet
