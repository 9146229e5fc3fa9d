package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := NewRecorder()
	scoped := NewScopedAPI("ledger", rec)

	scoped.ReportBroken("store.merge", "boom")
	scoped.ReportWarning("store.load")
	scoped.ReportCount("store.records", 4)

	reports := rec.Reports()
	require.Len(t, reports, 3)
	require.Equal(t, "ledger: store.merge", reports[0].ID)
	require.Equal(t, []any{"boom"}, reports[0].Params)
	require.Equal(t, KindWarning, reports[1].Kind)
	require.Equal(t, int64(4), reports[2].Count)
	require.True(t, rec.Has(KindBroken, "store.merge"))
	require.False(t, rec.Has(KindWarning, "store.merge"))
}

func TestInstrumentResty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	rec := NewRecorder()
	client := resty.New()
	InstrumentResty(client, rec)

	res, err := client.R().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, http.StatusTeapot, res.StatusCode())
	require.True(t, rec.Has(KindDebug, report_resty_request))
	require.True(t, rec.Has(KindDebug, report_resty_response))

	_, err = client.R().Get("http://127.0.0.1:1")
	require.Error(t, err)
	require.True(t, rec.Has(KindBroken, report_resty_response))
}
