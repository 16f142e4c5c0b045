package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terradue/aeronet-go"
	"github.com/terradue/aeronet-go/client"
	"github.com/terradue/aeronet-go/filter"
	"github.com/terradue/aeronet-go/table"
)

const cartSiteFilter = `site = 'Cart_Site' AND data_type = 'AOD20' AND ` +
	`T_AFTER(time, TIMESTAMP('2000-06-01T00:00:00Z')) AND T_BEFORE(time, TIMESTAMP('2000-06-14T00:00:00Z'))`

const searchResponse = `AERONET Version 3;
Cart_Site
Version 3: AOD Level 2.0
The following data are automatically cloud cleared and quality assured.
Contact: PI=Rick Wagener
AERONET_Site,Date(dd:mm:yyyy),AOD_500nm,Site_Latitude(Degrees),Site_Longitude(Degrees)
Cart_Site,01:06:2000,0.1234,36.606667,-97.485556
Cart_Site,02:06:2000,0.0987,36.606667,-97.485556
`

const stationsResponse = `AERONET_Database_Site_List,Num=1,Date_Generated=01:05:2024
New_Site_ID,Name,Latitude(decimal_degrees),Longitude(decimal_degrees),Altitude(Meters),Data_Start_date(dd-mm-yyyy),Data_End_Date(dd-mm-yyyy),Land_Use_type,Number_of_days_L1,Number_of_days_L1.5,Number_of_days_L2,Number_of_days_Moon_L1.5
1,Cart_Site,36.606667,-97.485556,318.0,06-11-1996,01-05-2024,Cropland,8000,7000,6500,120
`

func init() {
	homedir.DisableCache = true
}

// isolate points HOME at an empty directory and clears AERONET_ variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"API_BASE_URL", "CACHE_DIR", "CACHE_TTL", "RATE_LIMIT", "HOURLY"} {
		t.Setenv("AERONET_"+key, "")
		os.Unsetenv("AERONET_" + key)
	}
	return home
}

func run(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case client.SearchPath:
			w.Write([]byte(searchResponse))
		case client.StationsPath:
			w.Write([]byte(stationsResponse))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "aeronet", cmd.Use)
	assert.Contains(t, cmd.Long, "AERONET_API_BASE_URL")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()

	for _, cmdName := range []string{"search", "dump-stations", "queryables"} {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestSearchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	searchCmd, _, err := cmd.Find([]string{"search"})
	require.NoError(t, err)

	langFlag := searchCmd.Flags().Lookup("filter-lang")
	require.NotNil(t, langFlag)
	assert.Equal(t, filter.LangCQL2JSON, langFlag.DefValue)

	outputFlag := searchCmd.Flags().Lookup("output-file")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestSearchDryRun(t *testing.T) {
	isolate(t)

	code, stdout, stderr := run(t, "search", "--filter-lang", "cql2-text", "--dry-run", "--filter", cartSiteFilter)
	require.Equal(t, 0, code, stderr)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "search_dry_run", []byte(stdout))
	assert.Contains(t, stderr, "SUCCESS")
}

func TestSearchDryRunBaseURL(t *testing.T) {
	t.Run("environment", func(t *testing.T) {
		isolate(t)
		t.Setenv("AERONET_API_BASE_URL", "http://env.example")

		code, stdout, stderr := run(t, "search", "--filter-lang", "cql2-text", "--dry-run", "--filter", "site = 'Cart_Site'")
		require.Equal(t, 0, code, stderr)
		assert.Equal(t, "http://env.example/cgi-bin/print_web_data_v3?site=Cart_Site\n", stdout)
	})

	t.Run("config file", func(t *testing.T) {
		home := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(home, ".aeronet.yaml"), []byte("api-base-url: http://file.example\n"), 0o644))

		code, stdout, stderr := run(t, "search", "--filter-lang", "cql2-text", "--dry-run", "--filter", "site = 'Cart_Site'")
		require.Equal(t, 0, code, stderr)
		assert.Equal(t, "http://file.example/cgi-bin/print_web_data_v3?site=Cart_Site\n", stdout)
	})

	t.Run("argument wins", func(t *testing.T) {
		isolate(t)
		t.Setenv("AERONET_API_BASE_URL", "http://env.example")

		code, stdout, stderr := run(t, "search", "http://arg.example", "--filter-lang", "cql2-text", "--dry-run", "--filter", "site = 'Cart_Site'")
		require.Equal(t, 0, code, stderr)
		assert.Equal(t, "http://arg.example/cgi-bin/print_web_data_v3?site=Cart_Site\n", stdout)
	})

	t.Run("hourly", func(t *testing.T) {
		isolate(t)

		code, stdout, stderr := run(t, "search", "--hourly", "--filter-lang", "cql2-text", "--dry-run", "--filter",
			`T_AFTER(time, TIMESTAMP('2000-06-01T06:00:00Z')) AND T_BEFORE(time, TIMESTAMP('2000-06-01T18:00:00Z'))`)
		require.Equal(t, 0, code, stderr)
		assert.Contains(t, stdout, "&hour=6&")
		assert.Contains(t, stdout, "&hour2=18\n")
	})
}

func TestSearchErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"or", []string{"--filter-lang", "cql2-text", "--filter", "site = 'A' OR site = 'B'"}, "UnsupportedExpression: "},
		{"conflict", []string{"--filter-lang", "cql2-text", "--filter", "site = 'A' AND site = 'B'"}, "ConflictingConstraint: "},
		{"lone bound", []string{"--filter-lang", "cql2-text", "--filter", "T_BEFORE(time, DATE('2000-06-01'))"}, "IncompleteTimeRange: "},
		{"unknown property", []string{"--filter-lang", "cql2-text", "--filter", "station = 'A'"}, "UnknownQueryable: "},
		{"invalid literal", []string{"--filter-lang", "cql2-text", "--filter", "data_type = 'AOD99'"}, "InvalidLiteral: "},
		{"syntax", []string{"--filter-lang", "cql2-text", "--filter", "site ="}, "SyntaxError: "},
		{"bad json", []string{"--filter", "{"}, "SyntaxError: "},
		{"unknown language", []string{"--filter-lang", "sql", "--filter", "x"}, "UsageError: "},
		{"unknown format", []string{"--format", "xlsx", "--filter", `{"op":"=","args":[{"property":"site"},"A"]}`}, "MaterializationError: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			// Unreachable port: reaching the network would fail with a TransportError.
			code, stdout, stderr := run(t, append([]string{"search", "http://127.0.0.1:1", "--dry-run=false"}, tt.args...)...)
			assert.Equal(t, 1, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, "\n"+tt.want)
		})
	}
}

func TestSearchToStdout(t *testing.T) {
	isolate(t)
	srv := fakeService(t)

	code, stdout, stderr := run(t, "search", srv.URL, "--filter-lang", "cql2-text", "--filter", cartSiteFilter)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "AERONET_Site,Date(dd:mm:yyyy),AOD_500nm,Site_Latitude(Degrees),Site_Longitude(Degrees)\n"+
		"Cart_Site,01:06:2000,0.1234,36.606667,-97.485556\n"+
		"Cart_Site,02:06:2000,0.0987,36.606667,-97.485556\n", stdout)
}

func TestSearchPreview(t *testing.T) {
	isolate(t)
	srv := fakeService(t)

	code, stdout, stderr := run(t, "search", srv.URL, "--filter-lang", "cql2-text", "--filter", cartSiteFilter, "--preview", "1")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "AOD_500nm")
	assert.Contains(t, stdout, "[2 rows x 5 columns, 1 shown]")
}

func TestSearchOutputDir(t *testing.T) {
	isolate(t)
	srv := fakeService(t)
	dir := t.TempDir()

	code, _, stderr := run(t, "search", srv.URL, "--filter-lang", "cql2-text", "--filter", cartSiteFilter,
		"--output-dir", dir, "--format", "geoparquet", "--format", "csv", "--stac")
	require.Equal(t, 0, code, stderr)

	for _, name := range []string{"aeronet.parquet", "aeronet.csv", "aeronet.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	data, err := os.ReadFile(filepath.Join(dir, "aeronet.json"))
	require.NoError(t, err)
	var item map[string]any
	require.NoError(t, json.Unmarshal(data, &item))
	assert.Equal(t, "Feature", item["type"])
	assert.Len(t, item["assets"], 2)
}

func TestSearchUsageErrors(t *testing.T) {
	isolate(t)
	srv := fakeService(t)

	code, _, stderr := run(t, "search", srv.URL, "--filter-lang", "cql2-text", "--filter", cartSiteFilter, "--stac")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "UsageError: --stac requires")

	code, _, stderr = run(t, "search", srv.URL, "--filter-lang", "cql2-text", "--filter", cartSiteFilter, "--format", "geoparquet")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "UsageError: only csv")

	code, _, stderr = run(t, "search", "--log-format", "xml", "--filter", "{}")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "UsageError: invalid log format")
}

func TestSearchTransportError(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	code, _, stderr := run(t, "search", srv.URL, "--filter-lang", "cql2-text", "--filter", "site = 'Cart_Site'")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "TransportError: ")
	assert.Contains(t, stderr, "404 Not Found")
	assert.Contains(t, stderr, "FAIL")
}

func TestDumpStations(t *testing.T) {
	isolate(t)
	srv := fakeService(t)
	path := filepath.Join(t.TempDir(), "stations.parquet")

	code, stdout, stderr := run(t, "dump-stations", srv.URL, "--output-file", path)
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, fmt.Sprintf("1 stations written to %s\n", path), stdout)
	assert.FileExists(t, path)
}

func TestQueryables(t *testing.T) {
	isolate(t)

	code, stdout, stderr := run(t, "queryables")
	require.Equal(t, 0, code, stderr)

	var qs []struct {
		Name     string `json:"name"`
		Encoding string `json:"encoding"`
		Params   []struct {
			Name string `json:"name"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &qs))

	names := make([]string, len(qs))
	for i, q := range qs {
		names[i] = q.Name
	}
	assert.Equal(t, []string{"site", "data_type", "format", "data_format", "time"}, names)
	assert.Len(t, qs[4].Params, 6)

	code, stdout, stderr = run(t, "queryables", "--hourly")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, `"hour2"`)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&client.TransportError{Method: "GET", URL: "u", Err: errors.New("boom")}, "TransportError"},
		{&table.MaterializationError{Format: table.CSV, Path: "p", Err: errors.New("disk full")}, "MaterializationError"},
		{fmt.Errorf("wrapped: %w", table.ErrUnsupportedFormat), "MaterializationError"},
		{fmt.Errorf("wrapped: %w", aeronet.ErrInvalidRequest), "UsageError"},
		{context.Canceled, "Canceled"},
		{errors.New("other"), "Error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, errorKind(tt.err))
		})
	}

	var buf bytes.Buffer
	printError(&buf, usageError(errors.New("bad flag")))
	assert.Equal(t, "UsageError: bad flag\n", buf.String())
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}
