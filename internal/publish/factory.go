package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"paytrack/internal/config"
)

// Options selects and configures publish targets.
type Options struct {
	Targets     []string
	Timeout     time.Duration
	SummaryFile string
	S3          S3Config
	GCSBucket   string
	GCSObject   string
	Sheets      SheetsConfig
}

// FromAppConfig converts the application config to publish options.
func FromAppConfig(cfg *config.Config) (Options, error) {
	if cfg == nil {
		return Options{}, errors.New("app config is nil")
	}
	return Options{
		Targets:     cfg.PublishTargets,
		Timeout:     cfg.PublishTimeout,
		SummaryFile: cfg.SummaryFile,
		S3: S3Config{
			Bucket:          cfg.S3Bucket,
			Key:             cfg.S3Key,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		},
		GCSBucket: cfg.GCSBucket,
		GCSObject: cfg.GCSObject,
		Sheets: SheetsConfig{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		},
	}, nil
}

// Build creates the publishers named in opts.Targets. The returned cleanup
// releases client resources and is safe to call when Build fails.
func Build(ctx context.Context, opts Options) (*Multi, func() error, error) {
	var pubs []Publisher
	var closers []func() error
	cleanup := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	for _, raw := range opts.Targets {
		target := strings.ToLower(strings.TrimSpace(raw))
		switch target {
		case "":
			continue
		case TargetFile:
			pubs = append(pubs, &FilePublisher{Path: opts.SummaryFile})
		case TargetS3:
			p, err := NewS3Publisher(ctx, opts.S3)
			if err != nil {
				return nil, cleanup, fmt.Errorf("s3 publisher: %w", err)
			}
			pubs = append(pubs, p)
		case TargetGCS:
			creds, err := gcsCredentials(opts.Sheets)
			if err != nil {
				return nil, cleanup, fmt.Errorf("gcs publisher: %w", err)
			}
			p, err := NewGCSPublisher(ctx, opts.GCSBucket, opts.GCSObject, creds)
			if err != nil {
				return nil, cleanup, fmt.Errorf("gcs publisher: %w", err)
			}
			pubs = append(pubs, p)
			closers = append(closers, p.Close)
		case TargetSheets:
			p, err := NewSheetsPublisher(ctx, opts.Sheets)
			if err != nil {
				return nil, cleanup, fmt.Errorf("sheets publisher: %w", err)
			}
			pubs = append(pubs, p)
		default:
			return nil, cleanup, fmt.Errorf("unknown publish target %q", raw)
		}
	}

	m := NewMulti(opts.Timeout, pubs...)
	slog.InfoContext(ctx, "Publish targets configured", "targets", m.Targets(), "timeout", opts.Timeout)
	return m, cleanup, nil
}

// gcsCredentials reuses the Google service account configured for Sheets, if any.
func gcsCredentials(sc SheetsConfig) ([]byte, error) {
	if j := strings.TrimSpace(sc.ServiceAccountJSON); j != "" {
		return []byte(j), nil
	}
	if f := strings.TrimSpace(sc.ServiceAccountFile); f != "" {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, nil
}
