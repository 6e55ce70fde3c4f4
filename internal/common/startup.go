package common

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	commonconfig "github.com/newsbench/newsloader/internal/common/config"
	"github.com/newsbench/newsloader/internal/common/logging"
)

const baseConfigFileName = "config"

// EnvPrefix prefixes environment variables overriding configuration, e.g. NEWSLOADER_NEWS_BATCHSIZE=5000
const EnvPrefix = "NEWSLOADER"

// LoadConfig reads config.yaml from defaultPath, merges overrideConfigs on top in order, applies environment
// overrides and unmarshals the result into config.
func LoadConfig(config any, defaultPath string, overrideConfigs []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName(baseConfigFileName)
	v.AddConfigPath(defaultPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WithMessagef(err, "error reading base config path=%s", defaultPath)
	}
	logging.Infof("Read base config from %s", v.ConfigFileUsed())

	for _, overrideConfig := range overrideConfigs {
		v.SetConfigFile(overrideConfig)
		if err := v.MergeInConfig(); err != nil {
			return nil, errors.WithMessagef(err, "error reading config from %s", overrideConfig)
		}
		logging.Infof("Read config from %s", v.ConfigFileUsed())
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.Unmarshal(config, commonconfig.CustomHooks...); err != nil {
		return nil, errors.WithStack(err)
	}
	return v, nil
}

// ConfigureCommandLineLogging sets up plain logging for commands whose output is read by a person.
func ConfigureCommandLineLogging() {
	commandLineLogger := logrus.New()
	commandLineLogger.SetFormatter(new(logging.CommandLineFormatter))
	commandLineLogger.SetOutput(os.Stdout)
	commandLineLogger.SetLevel(logrus.InfoLevel)
	logging.ReplaceStdLogger(commandLineLogger)
}

// ServeMetrics exposes the given gatherer on /metrics at port and returns a function shutting the server down.
func ServeMetrics(port uint16, gatherer prometheus.Gatherer) (shutdown func()) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logging.Infof("Serving metrics on port %d", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.WithError(err).Error("Metrics server stopped")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.WithError(err).Warn("Failed to shut down metrics server")
		}
	}
}
