package bootstrap

import (
	"net/http"

	"easyflip-backend/internal/config"
	"easyflip-backend/internal/interfaces/router"
	"easyflip-backend/internal/pkg/logging"
)

// New builds the API as a net/http handler for serverless hosts
// (api/ imports this package, not internal).
func New() (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup("easyflip-api", cfg.LogLevel, cfg.LogFormat, nil)
	app, _, _, err := router.CreateApp(cfg)
	if err != nil {
		return nil, err
	}
	return router.Handler(app), nil
}
