package backend

import (
	"fmt"
	"time"

	"billtrack/internal/config"
	"billtrack/internal/ports"
	gsheet "billtrack/internal/sheets/google"
)

// Config holds what the factory needs to build adapters.
type Config struct {
	Default ports.Kind

	// Live selects the real services; otherwise adapters talk to in-process simulations.
	Live    bool
	Latency time.Duration

	GoogleCredentials gsheet.Credentials
	GoogleSheetName   string

	AirtableAPIURL string
	AirtableTable  string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	return Config{
		Default: ParseKind(appConfig.DataBackend),
		Live:    appConfig.LiveBackends,
		Latency: appConfig.SimulatedLatency,

		GoogleCredentials: gsheet.Credentials{
			JSON: appConfig.GoogleServiceAccountJSON,
			File: appConfig.GoogleServiceAccountFile,
			OAuth: gsheet.OAuthClient{
				JSON: appConfig.GoogleOAuthClientJSON,
				File: appConfig.GoogleOAuthClientFile,
			},
			TokenFile: appConfig.GoogleOAuthTokenFile,
		},
		GoogleSheetName: appConfig.GoogleSheetName,

		AirtableAPIURL: appConfig.AirtableAPIURL,
		AirtableTable:  appConfig.AirtableTable,
	}, nil
}
