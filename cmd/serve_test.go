package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cmdUtils "github.com/swapwatch/swapwatch-backend/cmd/utils"
	"github.com/swapwatch/swapwatch-backend/internal/message"
	"github.com/swapwatch/swapwatch-backend/internal/monitor"
	"github.com/swapwatch/swapwatch-backend/internal/serve"
)

type mockServerService struct {
	mock.Mock
}

func (m *mockServerService) StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface) {
	m.Called(opts, httpServer)
}

func (m *mockServerService) StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface) {
	m.Called(opts, httpServer)
}

func Test_ServeCommand(t *testing.T) {
	cmdUtils.ClearTestEnvironment(t)
	dbPath := filepath.Join(t.TempDir(), "swapwatch.db")

	mMonitorService := monitor.MockMonitorService{}
	mMonitorService.
		On("Start", monitor.MetricOptions{MetricType: monitor.MetricTypePrometheus, Environment: "test"}).
		Return(nil).
		Once()

	mServerService := mockServerService{}
	mServerService.
		On("StartMetricsServe", mock.AnythingOfType("serve.MetricsServeOptions"), mock.Anything).
		Maybe()
	mServerService.
		On("StartServe", mock.AnythingOfType("serve.ServeOptions"), mock.Anything).
		Run(func(args mock.Arguments) {
			opts, ok := args.Get(0).(serve.ServeOptions)
			require.True(t, ok, "should be of type serve.ServeOptions")

			assert.Equal(t, "test", opts.Environment)
			assert.Equal(t, 8001, opts.Port)
			assert.Equal(t, dbPath, opts.DatabasePath)
			assert.Equal(t, "my-webhook-secret", opts.WebhookSecret)
			assert.Equal(t, 5*time.Minute, opts.WebhookReplayTTL)
			assert.Equal(t, message.PushNotifierTypeDryRun, opts.PushNotifierType)
			assert.Equal(t, []string{"*"}, opts.CorsAllowedOrigins)
			assert.Equal(t, &mMonitorService, opts.MonitorService)
			assert.NotNil(t, opts.CrashTrackerClient)
		}).
		Once()

	globalOptions.Version = "x.y.z"
	globalOptions.GitCommit = "1234567890abcdef"

	rootCommand := rootCmd()
	rootCommand.AddCommand((&ServeCommand{}).Command(&mServerService, &mMonitorService))
	rootCommand.SetArgs([]string{
		"serve",
		"--environment", "test",
		"--database-path", dbPath,
		"--webhook-secret", "my-webhook-secret",
	})

	err := rootCommand.Execute()
	require.NoError(t, err)

	mServerService.AssertExpectations(t)
	mMonitorService.AssertExpectations(t)
}
