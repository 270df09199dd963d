package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

const otpDigits = 6

type VerificationUseCase struct {
	store       ports.OTPStore
	notifier    ports.Notifier
	directory   ports.Directory
	tokens      ports.TokenIssuer
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	newCode     func() (string, error)
}

func NewVerificationUseCase(
	store ports.OTPStore,
	notifier ports.Notifier,
	directory ports.Directory,
	tokens ports.TokenIssuer,
	ttl time.Duration,
	maxAttempts int,
) *VerificationUseCase {
	return &VerificationUseCase{
		store:       store,
		notifier:    notifier,
		directory:   directory,
		tokens:      tokens,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         utcNow,
		newCode:     randomCode,
	}
}

// Issue replaces any pending challenge for subject and sends the new code.
func (uc *VerificationUseCase) Issue(ctx context.Context, subject string) error {
	const op = "issue verification"
	subject, err := parseSubject(subject, op)
	if err != nil {
		return err
	}
	code, err := uc.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	challenge := domain.IssueOTP(subject, code, uc.now(), uc.ttl, uc.maxAttempts)
	if err := uc.store.Save(ctx, challenge); err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}

	minutes := int(challenge.ExpiresAt.Sub(uc.now()).Round(time.Minute) / time.Minute)
	body := fmt.Sprintf("Your verification code is: %s\nThis code is valid for %d minutes.\n", code, minutes)
	if err := uc.notifier.Send(ctx, subject, "Your verification code", body); err != nil {
		return fmt.Errorf("send verification code: %w", err)
	}
	return nil
}

// Verify checks code against the stored challenge. Terminal outcomes discard
// the challenge; a verified directory member also receives an access token.
func (uc *VerificationUseCase) Verify(ctx context.Context, subject, code string) (*domain.VerificationResult, error) {
	const op = "verify code"
	subject, err := parseSubject(subject, op)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(code) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, errors.New("code is required"))
	}

	challenge, err := uc.store.Get(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}

	updated, outcome := domain.VerifyOTP(*challenge, code, uc.now())
	if outcome.Terminal() {
		if err := uc.store.Delete(ctx, subject); err != nil {
			return nil, fmt.Errorf("delete challenge: %w", err)
		}
	} else if err := uc.store.Save(ctx, updated); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}

	result := &domain.VerificationResult{Outcome: outcome}
	if outcome != domain.OTPVerified || uc.tokens == nil || uc.directory == nil {
		return result, nil
	}

	emp, err := uc.directory.FindEmployeeByEmail(ctx, subject)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return result, nil
		}
		return nil, fmt.Errorf("find employee by email: %w", err)
	}
	actor := emp.Actor()
	token, expiresAt, err := uc.tokens.Issue(actor)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	result.AccessToken = token
	result.ExpiresAt = &expiresAt
	result.Actor = &actor
	return result, nil
}

func parseSubject(subject, op string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(subject))
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("invalid email: %w", err))
	}
	return domain.NormalizeSubject(addr.Address), nil
}

func randomCode() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
