package monitor

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMonitorClient struct {
	mock.Mock
}

func (m *mockMonitorClient) GetMetricHttpHandler() http.Handler {
	return m.Called().Get(0).(http.Handler)
}

func (m *mockMonitorClient) GetMetricType() MetricType {
	return m.Called().Get(0).(MetricType)
}

func (m *mockMonitorClient) MonitorHttpRequestDuration(duration time.Duration, labels HttpRequestLabels) {
	m.Called(duration, labels)
}

func (m *mockMonitorClient) MonitorCounters(tag MetricTag, labels map[string]string) {
	m.Called(tag, labels)
}

func (m *mockMonitorClient) MonitorDuration(duration time.Duration, tag MetricTag, labels map[string]string) {
	m.Called(duration, tag, labels)
}

func (m *mockMonitorClient) MonitorHistogram(value float64, tag MetricTag, labels map[string]string) {
	m.Called(value, tag, labels)
}

var _ MonitorClient = &mockMonitorClient{}

func Test_MonitorService_Start(t *testing.T) {
	monitorService := &MonitorService{}
	metricOptions := MetricOptions{}

	t.Run("start prometheus service metric", func(t *testing.T) {
		metricOptions.MetricType = "PROMETHEUS"
		err := monitorService.Start(metricOptions)
		require.NoError(t, err)

		require.IsType(t, &prometheusClient{}, monitorService.MonitorClient)
		assert.NotNil(t, monitorService.MonitorClient)
	})

	t.Run("error monitor service already initialized", func(t *testing.T) {
		metricOptions.MetricType = "MOCK_METRIC_TYPE"

		err := monitorService.Start(metricOptions)
		require.EqualError(t, err, "service already initialized")
	})

	t.Run("error unknown metric type", func(t *testing.T) {
		monitorService.MonitorClient = nil

		metricOptions.MetricType = "MOCK_METRIC_TYPE"
		err := monitorService.Start(metricOptions)
		require.EqualError(t, err, "error creating monitor client: unknown metric type: \"MOCK_METRIC_TYPE\"")
	})
}

func Test_MonitorService_GetMetricHttpHandler(t *testing.T) {
	monitorService := &MonitorService{}

	mMonitorClient := &mockMonitorClient{}
	monitorService.MonitorClient = mMonitorClient

	t.Run("running HttpServe with metric http handler", func(t *testing.T) {
		mHttpHandler := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, err := w.Write([]byte(`{"status": "OK"}`))
			require.NoError(t, err)
		})
		mMonitorClient.On("GetMetricHttpHandler").Return(mHttpHandler).Once()

		httpHandler, err := monitorService.GetMetricHttpHandler()
		require.NoError(t, err)

		r := chi.NewRouter()
		r.Get("/metrics", httpHandler.ServeHTTP)

		req, err := http.NewRequest("GET", "/metrics", nil)
		require.NoError(t, err)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		wantJson := `{"status": "OK"}`
		assert.JSONEq(t, wantJson, rr.Body.String())
		mMonitorClient.AssertExpectations(t)
	})

	t.Run("error monitor client not initialized", func(t *testing.T) {
		monitorService.MonitorClient = nil

		_, err := monitorService.GetMetricHttpHandler()
		require.EqualError(t, err, "client was not initialized")
	})
}

func Test_MonitorService_GetMetricType(t *testing.T) {
	monitorService := &MonitorService{}

	mMonitorClient := &mockMonitorClient{}
	monitorService.MonitorClient = mMonitorClient

	t.Run("returns metric type", func(t *testing.T) {
		mMonitorClient.On("GetMetricType").Return(MetricType("MOCKMETRICTYPE")).Once()

		metricType, err := monitorService.GetMetricType()
		require.NoError(t, err)

		assert.Equal(t, MetricType("MOCKMETRICTYPE"), metricType)
		mMonitorClient.AssertExpectations(t)
	})

	t.Run("error monitor client not initialized", func(t *testing.T) {
		monitorService.MonitorClient = nil

		_, err := monitorService.GetMetricType()
		require.EqualError(t, err, "client was not initialized")
	})
}

func Test_MonitorService_MonitorHttpRequestDuration(t *testing.T) {
	monitorService := &MonitorService{}

	mMonitorClient := &mockMonitorClient{}
	monitorService.MonitorClient = mMonitorClient

	mLabels := HttpRequestLabels{
		Status: "200",
		Route:  "/rooms/{code}",
		Method: "GET",
	}

	t.Run("delegates to the client", func(t *testing.T) {
		mMonitorClient.On("MonitorHttpRequestDuration", time.Second, mLabels).Once()

		err := monitorService.MonitorHttpRequestDuration(time.Second, mLabels)
		require.NoError(t, err)
		mMonitorClient.AssertExpectations(t)
	})

	t.Run("error monitor client not initialized", func(t *testing.T) {
		monitorService.MonitorClient = nil

		err := monitorService.MonitorHttpRequestDuration(time.Second, mLabels)
		require.EqualError(t, err, "client was not initialized")
	})
}

func Test_MonitorService_MonitorCounters(t *testing.T) {
	monitorService := &MonitorService{}

	mMonitorClient := &mockMonitorClient{}
	monitorService.MonitorClient = mMonitorClient

	labels := WebhookDeliveryLabels{Status: "processed"}.ToMap()

	t.Run("delegates to the client", func(t *testing.T) {
		mMonitorClient.On("MonitorCounters", WebhookDeliveriesCounterTag, labels).Once()

		err := monitorService.MonitorCounters(WebhookDeliveriesCounterTag, labels)
		require.NoError(t, err)
		mMonitorClient.AssertExpectations(t)
	})

	t.Run("error monitor client not initialized", func(t *testing.T) {
		monitorService.MonitorClient = nil

		err := monitorService.MonitorCounters(WebhookDeliveriesCounterTag, labels)
		require.EqualError(t, err, "client was not initialized")
	})
}

func Test_MonitorService_MonitorDuration_and_Histogram(t *testing.T) {
	monitorService := &MonitorService{}

	mMonitorClient := &mockMonitorClient{}
	monitorService.MonitorClient = mMonitorClient

	t.Run("delegates durations", func(t *testing.T) {
		labels := map[string]string{"status": "processed"}
		mMonitorClient.On("MonitorDuration", 2*time.Second, SwapFanoutDurationTag, labels).Once()

		err := monitorService.MonitorDuration(2*time.Second, SwapFanoutDurationTag, labels)
		require.NoError(t, err)
		mMonitorClient.AssertExpectations(t)
	})

	t.Run("delegates histograms", func(t *testing.T) {
		mMonitorClient.On("MonitorHistogram", 3.0, RoomsNotifiedHistogramTag, map[string]string{}).Once()

		err := monitorService.MonitorHistogram(3.0, RoomsNotifiedHistogramTag, map[string]string{})
		require.NoError(t, err)
		mMonitorClient.AssertExpectations(t)
	})

	t.Run("error monitor client not initialized", func(t *testing.T) {
		monitorService.MonitorClient = nil

		err := monitorService.MonitorDuration(time.Second, SwapFanoutDurationTag, nil)
		require.EqualError(t, err, "client was not initialized")

		err = monitorService.MonitorHistogram(1.0, RoomsNotifiedHistogramTag, nil)
		require.EqualError(t, err, "client was not initialized")
	})
}
