package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureCounter struct {
	records [][]Label
}

func (c *captureCounter) Inc(_ context.Context, labels ...Label) {
	c.records = append(c.records, append([]Label(nil), labels...))
}

func (c *captureCounter) Add(ctx context.Context, _ float64, labels ...Label) {
	c.Inc(ctx, labels...)
}

type captureHistogram struct {
	records [][]Label
}

func (h *captureHistogram) Record(_ context.Context, _ float64, labels ...Label) {
	h.records = append(h.records, append([]Label(nil), labels...))
}

func labelValue(labels []Label, key string) string {
	for _, label := range labels {
		if label.Key == key {
			return label.Value
		}
	}
	return ""
}

func TestGinHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	counter := &captureCounter{}
	histogram := &captureHistogram{}
	httpMetrics := &HTTPServerMetrics{service: "meshnode", requestTotal: counter, duration: histogram}

	router := gin.New()
	router.Use(GinHTTPMiddleware(httpMetrics))
	router.GET("/actions/:name", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/actions/users.get", "/no/such/route"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Len(t, counter.records, 2)
	require.Len(t, histogram.records, 2)

	assert.Equal(t, "/actions/:name", labelValue(counter.records[0], LabelRoute), "路由标签应使用模板而不是原始路径")
	assert.Equal(t, "4xx", labelValue(counter.records[0], LabelStatusClass))
	assert.Equal(t, OutcomeError, labelValue(counter.records[0], LabelOutcome))
	assert.Equal(t, UnknownRoute, labelValue(counter.records[1], LabelRoute))
	assert.Equal(t, "meshnode", labelValue(histogram.records[1], LabelService))
}

func TestHTTPServerMetrics_NilSafe(t *testing.T) {
	var m *HTTPServerMetrics
	m.Observe(context.Background(), "GET", "/x", 200, time.Millisecond)

	_, err := NewHTTPServerMetrics(nil, "svc")
	assert.Error(t, err)

	got, err := NewHTTPServerMetrics(Discard(), " ")
	require.NoError(t, err)
	assert.Equal(t, "unknown", got.service)
}
