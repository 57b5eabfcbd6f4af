package sources

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kerbaras/docport/pkg/config"
	"github.com/kerbaras/docport/pkg/utils"
)

var ErrUnknownPlatform = errors.New("unknown platform")

// Open builds the client for the configured platform with request pacing
// applied.
func Open(cfg *config.Config, log *slog.Logger) (Source, error) {
	opts := []utils.Option{
		utils.WithHTTPClient(&http.Client{Timeout: 60 * time.Second}),
		utils.WithRateLimit(cfg.Pacing.RequestsPerSecond, cfg.Pacing.Burst),
	}
	switch cfg.Platform {
	case config.PlatformShimo:
		return NewShimo(cfg.Shimo.BaseURL, cfg.Shimo.SID, log, opts...).WithMaxPages(cfg.Pacing.MaxPages), nil
	case config.PlatformMubu:
		return NewMubu(cfg.Mubu.BaseURL, cfg.Mubu.JWTToken, log, opts...).WithMaxPages(cfg.Pacing.MaxPages), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, cfg.Platform)
	}
}
