package bootstrap

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/doc-triage/internal/auth"
	"github.com/kirillkom/doc-triage/internal/config"
	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
	"github.com/kirillkom/doc-triage/internal/core/usecase"
	neo4jdirectory "github.com/kirillkom/doc-triage/internal/infrastructure/directory/neo4j"
	"github.com/kirillkom/doc-triage/internal/infrastructure/extractor/content"
	"github.com/kirillkom/doc-triage/internal/infrastructure/extractor/pdfraster"
	"github.com/kirillkom/doc-triage/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/doc-triage/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/doc-triage/internal/infrastructure/notify/smtp"
	otpmemory "github.com/kirillkom/doc-triage/internal/infrastructure/otpstore/memory"
	otpredis "github.com/kirillkom/doc-triage/internal/infrastructure/otpstore/redis"
	"github.com/kirillkom/doc-triage/internal/infrastructure/queue/nats"
	"github.com/kirillkom/doc-triage/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/doc-triage/internal/infrastructure/repository/memory"
	"github.com/kirillkom/doc-triage/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/doc-triage/internal/infrastructure/resilience"
	"github.com/kirillkom/doc-triage/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/doc-triage/internal/infrastructure/storage/minio"
	"github.com/kirillkom/doc-triage/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Directory ports.Directory
	Tokens    *auth.Tokens
	Exporter  xlsx.Exporter
	Metrics   *metrics.HTTPServerMetrics

	IntakeUC       ports.DocumentIntake
	AnalysisUC     ports.DocumentAnalysisService
	LifecycleUC    ports.DocumentLifecycleService
	AssignmentUC   ports.AssignmentService
	DirectoryUC    ports.DirectoryService
	VerificationUC ports.VerificationService

	closers []func()
}

type stores struct {
	documents   ports.DocumentRepository
	assignments ports.AssignmentStore
	directory   ports.Directory
}

// New wires every backend selected by cfg. service labels the process
// metrics.
func New(ctx context.Context, cfg config.Config, service string) (_ *App, err error) {
	app := &App{Config: cfg, Exporter: xlsx.NewExporter()}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	app.Metrics = metrics.NewHTTPServerMetrics(service)
	executor := NewExecutor(cfg, app.Metrics)

	st, err := app.openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Directory = st.directory

	blobs, err := app.openBlobStore(ctx, cfg, executor)
	if err != nil {
		return nil, err
	}

	otps, err := app.openOTPStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := app.openNotifier(cfg, executor)
	if err != nil {
		return nil, err
	}

	secret := cfg.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return nil, err
		}
		slog.Warn("jwt_secret_generated", "reason", "JWT_SECRET is not set; tokens will not survive a restart")
	}
	app.Tokens, err = auth.NewTokens(secret, cfg.JWTIssuer, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("init tokens: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, ollama.Options{
		TextModel:    cfg.OllamaTextModel,
		VisionModel:  cfg.OllamaVisionModel,
		MaxTextChars: cfg.AnalysisMaxTextChars,
		Timeout:      cfg.AnalysisTimeout,
		Executor:     executor,
	})
	normalizer := content.NewNormalizer(blobs, pdftext.NewReader(), pdfraster.NewRasterizer(cfg.PDFRasterPageLimit))

	analysisUC := usecase.NewAnalysisUseCase(
		st.documents, st.assignments, normalizer, ollama.NewAnalyzer(ollamaClient), app.Metrics,
		cfg.AnalysisLeaseTTL, cfg.AnalysisTimeout,
	)
	app.AnalysisUC = analysisUC
	app.IntakeUC = usecase.NewIntakeUseCase(st.documents, blobs, analysisUC)
	app.LifecycleUC = usecase.NewLifecycleUseCase(st.documents, st.assignments)
	app.AssignmentUC = usecase.NewAssignmentUseCase(st.documents, st.assignments, st.directory, notifier, cfg.AssignmentConcurrency)
	app.DirectoryUC = usecase.NewDirectoryUseCase(st.directory, notifier)
	app.VerificationUC = usecase.NewVerificationUseCase(otps, notifier, st.directory, app.Tokens, cfg.OTPTTL, cfg.OTPMaxAttempts)

	if cfg.BootstrapAdminEmail != "" {
		if err := EnsureAdmin(ctx, st.directory, cfg.BootstrapOrganizationID, cfg.BootstrapAdminEmail, cfg.BootstrapAdminName); err != nil {
			return nil, err
		}
	}
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewExecutor builds the shared resilience executor. AI calls and blob
// fetches get a single attempt; NATS publishes retry.
func NewExecutor(cfg config.Config, m *metrics.HTTPServerMetrics) *resilience.Executor {
	rc := resilience.DefaultConfig()
	rc.BreakerOpenTimeout = cfg.ResilienceBreakerOpen
	rc.AttemptsByPrefix = map[string]int{
		"ollama.": resilience.SingleAttempt,
		"blob.":   resilience.SingleAttempt,
		"nats.":   cfg.ResilienceNATSAttempts,
	}
	if m != nil {
		rc.OnStateChange = m.RecordBreakerState
	}
	return resilience.NewExecutor(rc)
}

func (a *App) openStores(ctx context.Context, cfg config.Config) (stores, error) {
	var st stores
	switch strings.ToLower(cfg.StoreBackend) {
	case "", "memory":
		mem := memory.NewStore()
		st = stores{documents: mem, assignments: mem, directory: mem}
	case "postgres":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return stores{}, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		if err := postgres.Migrate(ctx, db); err != nil {
			return stores{}, fmt.Errorf("migrate postgres: %w", err)
		}
		st = stores{
			documents:   postgres.NewDocumentRepository(db),
			assignments: postgres.NewAssignmentRepository(db),
			directory:   postgres.NewDirectoryRepository(db),
		}
	default:
		return stores{}, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	switch strings.ToLower(cfg.DirectoryBackend) {
	case "", "store":
	case "neo4j":
		dir, err := neo4jdirectory.New(ctx, neo4jdirectory.Config{
			URI:      cfg.Neo4jURI,
			Username: cfg.Neo4jUsername,
			Password: cfg.Neo4jPassword,
			Database: cfg.Neo4jDatabase,
		})
		if err != nil {
			return stores{}, fmt.Errorf("open neo4j: %w", err)
		}
		a.closers = append(a.closers, func() { _ = dir.Close(context.Background()) })
		if err := dir.EnsureSchema(ctx); err != nil {
			return stores{}, fmt.Errorf("ensure neo4j schema: %w", err)
		}
		st.directory = dir
	default:
		return stores{}, fmt.Errorf("unknown DIRECTORY_BACKEND %q", cfg.DirectoryBackend)
	}
	return st, nil
}

func (a *App) openBlobStore(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.BlobStore, error) {
	switch strings.ToLower(cfg.BlobBackend) {
	case "", "localfs":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		return storage, nil
	case "minio":
		storage, err := minio.New(minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, executor)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		if err := storage.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure minio bucket: %w", err)
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown BLOB_BACKEND %q", cfg.BlobBackend)
	}
}

func (a *App) openOTPStore(ctx context.Context, cfg config.Config) (ports.OTPStore, error) {
	if cfg.RedisURL == "" {
		return otpmemory.NewStore(), nil
	}
	store, err := otpredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("init redis otp store: %w", err)
	}
	a.closers = append(a.closers, func() { _ = store.Close() })
	return store, nil
}

// openNotifier prefers the queue so the API never blocks on SMTP. Without a
// queue, mail goes out directly or, with no SMTP host, only to the log.
func (a *App) openNotifier(cfg config.Config, executor *resilience.Executor) (ports.Notifier, error) {
	if cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		a.closers = append(a.closers, queue.Close)
		return queue, nil
	}
	return NewMailer(cfg), nil
}

// NewMailer returns the SMTP sender, or a log-only sender when no SMTP host
// is configured.
func NewMailer(cfg config.Config) ports.Notifier {
	if cfg.SMTPHost == "" {
		return smtp.LogSender{}
	}
	return smtp.NewSender(smtp.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		Username:    cfg.SMTPUsername,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		ImplicitTLS: cfg.SMTPImplicitTLS,
	})
}

// EnsureAdmin creates the organization's first administrator unless an
// employee with that e-mail already exists.
func EnsureAdmin(ctx context.Context, directory ports.Directory, organizationID, email, name string) error {
	if strings.TrimSpace(organizationID) == "" {
		return errors.New("BOOTSTRAP_ORGANIZATION_ID is required with BOOTSTRAP_ADMIN_EMAIL")
	}
	existing, err := directory.FindEmployeeByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAdmin || existing.OrganizationID != organizationID {
			slog.Warn("bootstrap_admin_mismatch", "email", existing.Email, "organization_id", existing.OrganizationID)
		}
		return nil
	case !domain.IsKind(err, domain.ErrNotFound):
		return fmt.Errorf("lookup bootstrap admin: %w", err)
	}

	admin := &domain.Employee{
		ID:             uuid.NewString(),
		Email:          domain.NormalizeSubject(email),
		Name:           name,
		OrganizationID: organizationID,
		IsAdmin:        true,
		CreatedAt:      time.Now().UTC(),
	}
	if err := directory.CreateEmployee(ctx, admin); err != nil && !domain.IsKind(err, domain.ErrConflict) {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	slog.Info("bootstrap_admin_ready", "email", admin.Email, "organization_id", organizationID)
	return nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
