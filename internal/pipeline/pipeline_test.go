package pipeline

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"manifest-relay/internal/config"
	"manifest-relay/internal/excel"
	"manifest-relay/internal/model"
	"manifest-relay/internal/relay"
	"manifest-relay/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type sheetFixture struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

// workbook lays each sheet out like the rental system export: a title row,
// a blank row, the header, the data and a trailing totals row.
func workbook(t *testing.T, sheets ...sheetFixture) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for _, s := range sheets {
		_, err := f.NewSheet(s.name)
		require.NoError(t, err)

		all := [][]interface{}{{"Manifest " + s.name}, {}, s.header}
		all = append(all, s.rows...)
		all = append(all, []interface{}{"Total"})

		for i, r := range all {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			row := r
			require.NoError(t, f.SetSheetRow(s.name, cell, &row))
		}
	}
	require.NoError(t, f.DeleteSheet("Sheet1"))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type capture struct {
	mu    sync.Mutex
	calls []call
}

type call struct {
	path   string
	fields map[string]string
}

func (c *capture) server(t *testing.T, failOn int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()

		fields := map[string]string{}
		if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			for k, v := range r.MultipartForm.Value {
				fields[k] = v[0]
			}
		}
		c.calls = append(c.calls, call{path: r.URL.Path, fields: fields})
		if len(c.calls) == failOn {
			http.Error(w, "sheet locked", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPipeline() *Pipeline {
	cfg := config.Default()
	return New(
		cfg.Manifest,
		excel.NewParser(cfg.Manifest.HeaderRow),
		relay.NewUploader(relay.NewClient(time.Second), 0),
		WithRand(rand.New(rand.NewPCG(3, 4))),
	)
}

type observer struct {
	percents  []int
	completed int
	failed    []error
}

func (o *observer) Started(int)               {}
func (o *observer) Progress(p relay.Progress) { o.percents = append(o.percents, p.Percent) }
func (o *observer) Completed(total int)       { o.completed = total }
func (o *observer) Failed(err error)          { o.failed = append(o.failed, err) }

func TestRun_EndToEnd(t *testing.T) {
	data := workbook(t,
		sheetFixture{
			name:   "Pickups",
			header: []interface{}{"#", "Res.", "Time", "Vehicle", "Items", "Arrival", "Agent"},
			rows: [][]interface{}{
				{1, 2002, 0.5, "DEF456 SYD", "- Universal Child Seat (2)", "No. Travelling: 2", "web"},
				{2, 2001, 0.25, "ABC123 MEL", "", "N/A", "web"},
			},
		},
		sheetFixture{
			name:   "Dropoffs",
			header: []interface{}{"#", "Res.", "Time", "Notes", "color"},
			rows: [][]interface{}{
				{1, 3001, 0.75, "late", "red"},
			},
		},
	)

	c := &capture{}
	srv := c.server(t, 0)
	dest := model.Destinations{Pickup: srv.URL + "/pickup", Dropoff: srv.URL + "/dropoff"}
	obs := &observer{}

	err := newPipeline().Run(context.Background(), data, dest, true, obs)
	require.NoError(t, err)

	require.Len(t, c.calls, 5)
	paths := []string{}
	for _, cl := range c.calls {
		paths = append(paths, cl.path)
	}
	assert.Equal(t, []string{"/pickup", "/pickup", "/pickup", "/dropoff", "/dropoff"}, paths)

	first := c.calls[0].fields
	assert.Equal(t, "2001", first["Res."])
	assert.Equal(t, "1", first["#"])
	assert.Equal(t, "ABC123 ", first["Rego (ready)"])
	assert.Equal(t, "", first["Arrival"])
	assert.Equal(t, "true", first["Tomorrow"])
	assert.NotContains(t, first, "Vehicle")
	assert.NotContains(t, first, "Agent")

	second := c.calls[1].fields
	assert.Equal(t, "2002", second["Res."])
	assert.Equal(t, "2", second["#"])
	assert.Equal(t, "Child Seat (2)", second["Items / Notes"])
	assert.Equal(t, "2", second["Arrival"])

	assert.Equal(t, map[string]string{"Sort": "true"}, c.calls[2].fields)

	drop := c.calls[3].fields
	assert.Equal(t, "3001", drop["Res."])
	assert.Equal(t, "UNALLOCATED", drop["Rego"])
	assert.Equal(t, "1", drop["#"])
	assert.NotContains(t, drop, "Notes")
	assert.NotContains(t, drop, "color")

	assert.Equal(t, map[string]string{"Sort": "true"}, c.calls[4].fields)

	assert.Equal(t, []int{20, 40, 60, 80, 100}, obs.percents)
	assert.Equal(t, 5, obs.completed)
	assert.Empty(t, obs.failed)
}

func TestRun_MergesSheetsOfSameCategory(t *testing.T) {
	data := workbook(t,
		sheetFixture{name: "Pick AM", header: []interface{}{"Res.", "Time"}, rows: [][]interface{}{{11, 0.6}}},
		sheetFixture{name: "Drop", header: []interface{}{"Res.", "Time"}, rows: nil},
		sheetFixture{name: "Pick PM", header: []interface{}{"Res.", "Time"}, rows: [][]interface{}{{10, 0.6}, {12, 0.1}}},
	)

	batches, err := newPipeline().Prepare(context.Background(), data,
		model.Destinations{Pickup: "http://p", Dropoff: "http://d"}, false)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	pick := batches[0]
	assert.Equal(t, model.CategoryPickup, pick.Category)
	require.Len(t, pick.Rows, 3)
	assert.Equal(t, []string{"12", "10", "11"},
		[]string{pick.Rows[0]["Res."].String(), pick.Rows[1]["Res."].String(), pick.Rows[2]["Res."].String()})
	assert.Equal(t, model.SortMarker(), pick.Marker)

	assert.Equal(t, model.CategoryDropoff, batches[1].Category)
	assert.Empty(t, batches[1].Rows)
	assert.Equal(t, 1, batches[1].Len())
}

func TestRun_MissingSheetCategory(t *testing.T) {
	data := workbook(t,
		sheetFixture{name: "Pickups", header: []interface{}{"Res."}, rows: [][]interface{}{{1}}},
	)

	c := &capture{}
	srv := c.server(t, 0)
	obs := &observer{}

	err := newPipeline().Run(context.Background(), data,
		model.Destinations{Pickup: srv.URL, Dropoff: srv.URL}, false, obs)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingSheet)
	assert.ErrorIs(t, err, errors.ErrInvalidFileFormat)
	assert.Contains(t, err.Error(), `"Drop"`)
	assert.Empty(t, c.calls)
	assert.Len(t, obs.failed, 1)
}

func TestRun_WrongFormatSendsNothing(t *testing.T) {
	data := workbook(t,
		sheetFixture{name: "Pick", header: []interface{}{"Res.", "Time"}, rows: [][]interface{}{{1, 0.1}}},
		sheetFixture{name: "Drop", header: []interface{}{"Booking", "Time"}, rows: [][]interface{}{{2, 0.2}}},
	)

	c := &capture{}
	srv := c.server(t, 0)

	err := newPipeline().Run(context.Background(), data,
		model.Destinations{Pickup: srv.URL, Dropoff: srv.URL}, false, nil)

	var fe errors.FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Drop", fe.Sheet)
	assert.Empty(t, c.calls)
}

func TestRun_NotAWorkbook(t *testing.T) {
	obs := &observer{}
	err := newPipeline().Run(context.Background(), []byte("%PDF-1.4"),
		model.Destinations{Pickup: "http://p", Dropoff: "http://d"}, false, obs)
	assert.ErrorIs(t, err, errors.ErrDecodeFailed)
	assert.Len(t, obs.failed, 1)
}

func TestRun_MissingDestination(t *testing.T) {
	_, err := newPipeline().Prepare(context.Background(), nil, model.Destinations{Pickup: "http://p"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dropoff")
}

func TestRun_RelayFailureStopsDropoffs(t *testing.T) {
	data := workbook(t,
		sheetFixture{name: "Pick", header: []interface{}{"Res.", "Time"},
			rows: [][]interface{}{{1, 0.1}, {2, 0.2}, {3, 0.3}}},
		sheetFixture{name: "Drop", header: []interface{}{"Res.", "Time"},
			rows: [][]interface{}{{4, 0.4}}},
	)

	c := &capture{}
	srv := c.server(t, 2)
	obs := &observer{}

	err := newPipeline().Run(context.Background(), data,
		model.Destinations{Pickup: srv.URL + "/pickup", Dropoff: srv.URL + "/dropoff"}, false, obs)

	var relayErr errors.RelayError
	require.ErrorAs(t, err, &relayErr)
	assert.Equal(t, 2, relayErr.Row)
	assert.Contains(t, err.Error(), "sheet locked")

	require.Len(t, c.calls, 2)
	for _, cl := range c.calls {
		assert.Equal(t, "/pickup", cl.path)
	}
	assert.Equal(t, []int{16}, obs.percents)
	assert.Zero(t, obs.completed)
}
