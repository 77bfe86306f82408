package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentHandler_LabelsByRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(InstrumentHandler)
	r.HandleFunc("/accounts/{numero}/statement", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/accounts/{numero}/statement", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/accounts/7/statement", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/accounts/{numero}/statement", "418"))

	assert.Equal(t, before+1, after)
}

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(gatewayFetches.WithLabelValues("GetUsuarios", "ready"))
	RecordFetch("GetUsuarios", "ready", 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(gatewayFetches.WithLabelValues("GetUsuarios", "ready")))

	SetSubscribers("GetUsuarios", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(gatewaySubscribers.WithLabelValues("GetUsuarios")))

	resets := testutil.ToFloat64(gatewayResets)
	RecordReset()
	assert.Equal(t, resets+1, testutil.ToFloat64(gatewayResets))
}

func TestHandlerServesRegistry(t *testing.T) {
	RecordMutation("transfer", "success")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "banco_mutations_total")
}
