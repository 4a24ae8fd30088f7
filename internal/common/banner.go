package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved configuration summary
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("TickerFeed", GetVersion())

	logger.Info().
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Str("cache_timezone", timezoneLabel(config.Cache.Timezone)).
		Bool("headless", config.Screener.Headless).
		Msg("Configuration loaded")
}

func timezoneLabel(tz string) string {
	if tz == "" {
		return "local"
	}
	return tz
}
