package provider

import (
	"context"
	"fmt"
	"time"

	"photark/internal/archive"
	"photark/internal/model"
)

// Deps are the collaborators a provider may need beyond its settings.
// Tokens may be nil when token persistence is not wanted.
type Deps struct {
	Tokens TokenStore
	Logger archive.Logger
	Clock  archive.Clock
}

// New creates a Provider for the given backend config based on its type.
func New(ctx context.Context, cfg *model.BackendConfig, deps Deps) (Provider, error) {
	switch cfg.Type {
	case "local":
		return NewLocalProvider(cfg.ID, cfg.Settings[model.SettingRoot])
	case "s3":
		return NewS3Provider(ctx, cfg.ID, S3Config{
			Endpoint:  cfg.Settings[model.SettingEndpoint],
			Bucket:    cfg.Settings[model.SettingBucket],
			Prefix:    cfg.Settings[model.SettingPrefix],
			Region:    cfg.Settings[model.SettingRegion],
			AccessKey: cfg.Settings[model.SettingAccessKey],
			SecretKey: cfg.Settings[model.SettingSecretKey],
		})
	case "drive":
		driveCfg := DriveConfig{
			APIBase:      cfg.Settings[model.SettingAPIBase],
			TokenURL:     cfg.Settings[model.SettingTokenURL],
			ClientID:     cfg.Settings[model.SettingClientID],
			ClientSecret: cfg.Settings[model.SettingClientSecret],
			AccessToken:  cfg.Settings[model.SettingAccessToken],
			RefreshToken: cfg.Settings[model.SettingRefreshToken],
			RootFolderID: cfg.Settings[model.SettingRootFolderID],
		}
		if raw := cfg.Settings[model.SettingTokenExpiry]; raw != "" {
			expiry, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("parsing token expiry for backend %s: %w", cfg.ID, err)
			}
			driveCfg.TokenExpiry = expiry
		}
		return NewDriveProvider(cfg.ID, driveCfg, deps.Tokens, deps.Logger, deps.Clock)
	default:
		return nil, fmt.Errorf("unknown backend type: %s", cfg.Type)
	}
}
