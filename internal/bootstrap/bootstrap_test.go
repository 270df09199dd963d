package bootstrap

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/doc-triage/internal/config"
	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/infrastructure/notify/smtp"
	"github.com/kirillkom/doc-triage/internal/infrastructure/repository/memory"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		StoreBackend:     "memory",
		DirectoryBackend: "store",
		BlobBackend:      "localfs",
		StoragePath:      t.TempDir(),
		OllamaURL:        "http://127.0.0.1:11434",
		OllamaTextModel:  "llama3",
		JWTIssuer:        "doc-triage",
		TokenTTL:         time.Hour,
		OTPTTL:           5 * time.Minute,
		OTPMaxAttempts:   3,
	}
}

func TestNewWiresMemoryBackends(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.BootstrapOrganizationID = "org-1"
	cfg.BootstrapAdminEmail = "Admin@Example.com"
	cfg.BootstrapAdminName = "Admin"

	app, err := New(context.Background(), cfg, "api-test")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	admin, err := app.Directory.FindEmployeeByEmail(context.Background(), "admin@example.com")
	if err != nil {
		t.Fatalf("bootstrap admin missing: %v", err)
	}
	if !admin.IsAdmin || admin.OrganizationID != "org-1" {
		t.Fatalf("unexpected admin: %+v", admin)
	}

	token, _, err := app.Tokens.Issue(admin.Actor())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	actor, err := app.Tokens.Parse(token)
	if err != nil || actor.Role != domain.RoleAdmin {
		t.Fatalf("generated secret must round-trip tokens: %+v %v", actor, err)
	}

	docs, err := app.LifecycleUC.ListDocuments(context.Background(), actor, false)
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected empty document list, got %v %v", docs, err)
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.StoreBackend = "sqlite" },
		func(c *config.Config) { c.DirectoryBackend = "ldap" },
		func(c *config.Config) { c.BlobBackend = "s3fs" },
	} {
		cfg := memoryConfig(t)
		mutate(&cfg)
		if _, err := New(context.Background(), cfg, "api-test"); err == nil || !strings.Contains(err.Error(), "unknown") {
			t.Fatalf("expected unknown backend error, got %v", err)
		}
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := EnsureAdmin(ctx, store, "org-1", "root@example.com", "Root"); err != nil {
			t.Fatalf("EnsureAdmin() #%d error = %v", i, err)
		}
	}
	employees, err := store.ListEmployees(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListEmployees() error = %v", err)
	}
	if len(employees) != 1 {
		t.Fatalf("expected one admin, got %d", len(employees))
	}
	if err := EnsureAdmin(ctx, store, "", "x@example.com", "X"); err == nil {
		t.Fatalf("expected error without organization")
	}
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	if _, ok := NewMailer(config.Config{}).(smtp.LogSender); !ok {
		t.Fatalf("expected log sender without SMTP host")
	}
	if _, ok := NewMailer(config.Config{SMTPHost: "mail.example.com"}).(*smtp.Sender); !ok {
		t.Fatalf("expected SMTP sender")
	}
}
