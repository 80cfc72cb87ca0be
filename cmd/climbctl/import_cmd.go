package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/ignite/climblog/internal/config"
	"github.com/ignite/climblog/internal/datanorm"
	"github.com/ignite/climblog/internal/domain"
	"github.com/ignite/climblog/internal/pkg/httpretry"
	"github.com/ignite/climblog/internal/repository/postgres"
	"github.com/ignite/climblog/internal/service/climbimport"
	"github.com/ignite/climblog/internal/storage"
	"github.com/ignite/climblog/internal/worker"
)

type importFlags struct {
	configPath  string
	file        string
	s3Key       string
	url         string
	userID      string
	sessionID   string
	template    string
	targetGrade string
	overrides   map[string]string
	dryRun      bool
}

func newImportCmd() *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a climb export from a file, the S3 bucket or a URL",
		Long: "Runs an export through parsing, column mapping, grade conversion and the import.\n" +
			"With --dry-run nothing is written and no database is needed; every row is\n" +
			"validated and reported as it would be on a real import.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, s := range []string{f.file, f.s3Key, f.url} {
				if s != "" {
					sources++
				}
			}
			if sources != 1 {
				return errors.New("exactly one of --file, --s3-key or --url is required")
			}

			job, err := runImport(cmd.Context(), f)
			if job != nil {
				if werr := writeJSON(cmd.OutOrStdout(), job); werr != nil {
					return werr
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&f.configPath, "config", "config/config.yaml", "Config file")
	cmd.Flags().StringVar(&f.file, "file", "", "Local export file")
	cmd.Flags().StringVar(&f.s3Key, "s3-key", "", "Object key in the export bucket")
	cmd.Flags().StringVar(&f.url, "url", "", "URL of a published export")
	cmd.Flags().StringVar(&f.userID, "user", "", "Owner of the imported climbs (required)")
	cmd.Flags().StringVar(&f.sessionID, "session", "", "Session to attach the climbs to")
	cmd.Flags().StringVar(&f.template, "template", "", "Source template, e.g. mountainProject (see 'climbctl templates')")
	cmd.Flags().StringVar(&f.targetGrade, "target-grade", "", "Convert grades to this system: yds, french, v-scale, font")
	cmd.Flags().StringToStringVar(&f.overrides, "map", nil, "Column overrides, e.g. --map Route=name,Rating=grade")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Validate without writing")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runImport(ctx context.Context, f importFlags) (*domain.ImportJob, error) {
	sourceType, err := templateSourceType(f.template)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadFromEnv(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var db *sql.DB
	if cfg.Database.URL != "" {
		db, err = sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping database: %w", err)
		}
	} else if !f.dryRun {
		return nil, errors.New("DATABASE_URL is required unless --dry-run is set")
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
	}

	var repo climbimport.Repository
	if db != nil {
		repo = postgres.NewClimbRepo(db)
	}
	importer := climbimport.NewService(repo, climbimport.Options{
		FailClosedOnLookupError: cfg.Import.FailClosedOnLookupError,
	})
	uploads := worker.NewClimbUploadService(db, redisClient, importer, worker.ClimbUploadOptions{
		LockTTL:     cfg.Import.LockTTL(),
		ProgressTTL: cfg.Import.ProgressTTL(),
	})
	if db != nil {
		uploads.WithJobStore(postgres.NewImportJobRepo(db))
	}

	req := worker.UploadRequest{
		UserID:            f.userID,
		SessionID:         f.sessionID,
		SourceType:        sourceType,
		Overrides:         f.overrides,
		TargetGradeSystem: f.targetGrade,
		DryRun:            f.dryRun,
	}

	switch {
	case f.file != "":
		content, err := os.ReadFile(f.file)
		if err != nil {
			return nil, err
		}
		req.FileName = filepath.Base(f.file)
		return uploads.ProcessFile(ctx, req, content)

	case f.s3Key != "":
		store, err := storage.NewExportStore(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("export store: %w", err)
		}
		uploads.WithExportStore(store, nil)
		return uploads.ProcessObject(ctx, req, f.s3Key)

	default:
		client := httpretry.NewRetryClient(nil, cfg.Import.FetchMaxRetries, cfg.Import.FetchTimeout())
		uploads.WithRemoteSource(storage.NewRemoteFetcher(client, cfg.Import.MaxUploadBytes))
		return uploads.ProcessURL(ctx, req, f.url)
	}
}

// templateSourceType accepts loose template names on the command line ("mp",
// "8a", "vertical life") and returns the exact source type the import
// pipeline expects.
func templateSourceType(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", nil
	}
	tmpl, ok := datanorm.FindTemplate(name)
	if !ok {
		return "", fmt.Errorf("%w: %s (see 'climbctl templates')", datanorm.ErrUnknownTemplate, name)
	}
	return tmpl.SourceType, nil
}
