package aeronet

import (
	"errors"
	"testing"

	"github.com/terradue/aeronet-go/catalog"
	"github.com/terradue/aeronet-go/filter"
)

func compileWith(t *testing.T, reg catalog.Registry, text string) *filter.Query {
	t.Helper()
	expr, err := filter.ParseText(text)
	if err != nil {
		t.Fatalf("Failed to parse %q: %v", text, err)
	}
	q, err := filter.NewCompiler(reg).Compile(expr)
	if err != nil {
		t.Fatalf("Failed to compile %q: %v", text, err)
	}
	return q
}

// TestRegistryBuilderBasic tests building a registry with every encoding.
func TestRegistryBuilderBasic(t *testing.T) {
	reg, err := NewRegistryBuilder().
		Queryable("site").Title("Site").Literal("site").
		Queryable("data_type").Flag("AOD15", "AOD20").
		Queryable("data_format").Coded("AVG").Code("all-points", "10").Code("daily-average", "20").
		Queryable("time").Date(DayParams("year", "month", "day"), DayParams("year2", "month2", "day2")).
		Build()
	if err != nil {
		t.Fatalf("Expected successful build, got error: %v", err)
	}

	qs := reg.Queryables()
	if len(qs) != 4 {
		t.Fatalf("Expected 4 queryables, got %d", len(qs))
	}
	if qs[0].Title != "Site" {
		t.Errorf("Expected title Site, got %q", qs[0].Title)
	}

	q := compileWith(t, reg,
		`T_AFTER(time, DATE('2000-06-01')) AND T_BEFORE(time, DATE('2000-06-14')) AND data_format = 'daily-average' AND data_type = 'AOD20' AND site = 'Cart_Site'`)
	want := "site=Cart_Site&AOD20=1&AVG=20&year=2000&month=6&day=1&year2=2000&month2=6&day2=14"
	if got := q.Encode(); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

// TestRegistryBuilderMatchesDefault tests that the builder can express the embedded registry.
func TestRegistryBuilderMatchesDefault(t *testing.T) {
	reg, err := NewRegistryBuilder().
		Queryable("site").Literal("site").
		Queryable("data_type").Flag("AOD10", "AOD15", "AOD20", "SDA10", "SDA15", "SDA20", "TOT10", "TOT15", "TOT20").
		Queryable("format").Coded("if_no_html").Code("csv", "1").Code("html", "0").
		Queryable("data_format").Coded("AVG").Code("all-points", "10").Code("daily-average", "20").
		Queryable("time").Date(DayParams("year", "month", "day"), DayParams("year2", "month2", "day2")).
		Build()
	if err != nil {
		t.Fatalf("Expected successful build, got error: %v", err)
	}

	text := `site = 'Cart_Site' AND data_type = 'AOD20' AND format = 'csv' AND ` +
		`T_AFTER(time, TIMESTAMP('2000-06-01T00:00:00Z')) AND T_BEFORE(time, TIMESTAMP('2000-06-14T00:00:00Z'))`

	built := compileWith(t, reg, text).Encode()
	def := compileWith(t, nil, text).Encode()
	if built != def {
		t.Errorf("Expected %s, got %s", def, built)
	}
}

// TestRegistryBuilderHourly tests hour parameters follow the Hourly option.
func TestRegistryBuilderHourly(t *testing.T) {
	start := DateParams{Year: "year", Month: "month", Day: "day", Hour: "hour"}
	end := DateParams{Year: "year2", Month: "month2", Day: "day2", Hour: "hour2"}
	text := `T_AFTER(time, TIMESTAMP('2000-06-01T06:00:00Z')) AND T_BEFORE(time, TIMESTAMP('2000-06-01T18:00:00Z'))`

	tests := []struct {
		name   string
		hourly bool
		want   string
	}{
		{"day precision", false, "year=2000&month=6&day=1&year2=2000&month2=6&day2=1"},
		{"hour precision", true, "year=2000&month=6&day=1&hour=6&year2=2000&month2=6&day2=1&hour2=18"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRegistryBuilder()
			if tt.hourly {
				rb.Hourly()
			}
			reg, err := rb.Queryable("time").Date(start, end).Build()
			if err != nil {
				t.Fatalf("Expected successful build, got error: %v", err)
			}
			if got := compileWith(t, reg, text).Encode(); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// TestRegistryBuilderErrors tests invalid declarations are rejected.
func TestRegistryBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func() (catalog.Registry, error)
	}{
		{"duplicate name", func() (catalog.Registry, error) {
			return NewRegistryBuilder().
				Queryable("site").Literal("site").
				Queryable("site").Literal("station").
				Build()
		}},
		{"empty name", func() (catalog.Registry, error) {
			return NewRegistryBuilder().Queryable("").Literal("site").Build()
		}},
		{"no encoding", func() (catalog.Registry, error) {
			return NewRegistryBuilder().Queryable("site").Build()
		}},
		{"flag without values", func() (catalog.Registry, error) {
			return NewRegistryBuilder().Queryable("data_type").Flag().Build()
		}},
		{"coded without codes", func() (catalog.Registry, error) {
			return NewRegistryBuilder().Queryable("format").Coded("if_no_html").Build()
		}},
		{"duplicate code", func() (catalog.Registry, error) {
			return NewRegistryBuilder().Queryable("format").Coded("if_no_html").Code("csv", "1").Code("csv", "2").Build()
		}},
		{"date without end", func() (catalog.Registry, error) {
			return NewRegistryBuilder().Queryable("time").Date(DayParams("year", "month", "day"), DateParams{}).Build()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, catalog.ErrInvalidRegistry) {
				t.Errorf("Expected ErrInvalidRegistry, got %v", err)
			}
		})
	}
}

// TestRegistryBuilderBuildOnce tests that Build can only be called once.
func TestRegistryBuilderBuildOnce(t *testing.T) {
	rb := NewRegistryBuilder()
	rb.Queryable("site").Literal("site")

	if _, err := rb.Build(); err != nil {
		t.Fatalf("First build failed: %v", err)
	}
	if _, err := rb.Build(); err == nil {
		t.Error("Expected error on second build")
	}
}
