package factory

import (
	"fmt"

	"go-document-forensics/internal/config"
	"go-document-forensics/internal/forensics"
	"go-document-forensics/internal/storage"
	"go-document-forensics/pkg/validation"
)

// BuildEngines constructs one scoring engine per calibration profile,
// applying the operator's TOML overrides when configured.
func BuildEngines(cfg *config.Config) (map[forensics.Profile]*forensics.Engine, error) {
	engines := make(map[forensics.Profile]*forensics.Engine, 2)
	for _, profile := range []forensics.Profile{forensics.ProfileGeneric, forensics.ProfileSpecialized} {
		cal, err := forensics.CalibrationFor(profile)
		if err != nil {
			return nil, err
		}
		if cfg.CalibrationFile != "" {
			cal, err = forensics.LoadOverrides(cal, cfg.CalibrationFile)
			if err != nil {
				return nil, fmt.Errorf("calibration overrides for %s: %w", profile, err)
			}
		}
		engine, err := forensics.NewEngine(cal)
		if err != nil {
			return nil, fmt.Errorf("engine for %s: %w", profile, err)
		}
		engines[profile] = engine
	}
	return engines, nil
}

// BuildFetcher constructs the document fetcher for the configured backend,
// paired with the source validator matching that backend's source format.
// URL-shaped validation against a local or blob fetcher would reject every
// source the fetcher can actually serve.
func BuildFetcher(cfg *config.Config) (storage.DocumentFetcher, validation.SourceValidator, error) {
	switch cfg.StorageBackend {
	case "http":
		return storage.NewHTTPDocumentFetcher(), validation.NewURLSourceValidator(), nil
	case "local":
		return storage.NewLocalDocumentFetcher(cfg.LocalStorageRoot), validation.NewPathSourceValidator(), nil
	case "azure":
		if cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" {
			return nil, nil, fmt.Errorf("azure backend requires AZURE_ACCOUNT_NAME and AZURE_ACCOUNT_KEY")
		}
		fetcher, err := storage.NewAzureDocumentFetcher(cfg.AzureAccountName, cfg.AzureAccountKey)
		if err != nil {
			return nil, nil, err
		}
		return fetcher, validation.NewBlobSourceValidator(), nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}
