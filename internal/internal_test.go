package internal_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/frahmantamala/account-registry/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestInternal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Internal Suite")
}

var _ = Describe("AppError", func() {
	It("should match sentinels by code through wrapping", func() {
		wrapped := fmt.Errorf("modify: %w", internal.ErrAccountNotFound.WithMessage("account 7 not found"))
		Expect(errors.Is(wrapped, internal.ErrAccountNotFound)).To(BeTrue())
		Expect(errors.Is(wrapped, internal.ErrAccountExists)).To(BeFalse())

		appErr, ok := internal.IsAppError(wrapped)
		Expect(ok).To(BeTrue())
		Expect(appErr.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("should never mutate the sentinel it was derived from", func() {
		cause := errors.New("boom")
		derived := internal.ErrInvalidToken.WithMessage("expired").WithCause(cause)

		Expect(derived.Message).To(Equal("expired"))
		Expect(errors.Is(derived, cause)).To(BeTrue())
		Expect(internal.ErrInvalidToken.Message).To(Equal("Invalid token"))
		Expect(internal.ErrInvalidToken.Cause).To(BeNil())
	})

	It("should render the error envelope without internal fields", func() {
		status, body := internal.NewInternalError("failed to issue token", errors.New("secret detail")).ToHTTPResponse()
		Expect(status).To(Equal(http.StatusInternalServerError))

		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(MatchJSON(`{"status":"error","error":{"type":"INTERNAL_ERROR","code":"INTERNAL_ERROR","message":"failed to issue token"}}`))
	})

	It("should report the first field message of a validation error", func() {
		err := internal.NewValidationFieldError("email", "email is invalid", internal.ErrCodeInvalidEmail)
		Expect(err.Error()).To(Equal("email is invalid"))
		Expect(err.Details).To(Equal(internal.ValidationErrors{Errors: []internal.ValidationError{
			{Field: "email", Message: "email is invalid", Code: "INVALID_EMAIL"},
		}}))
	})
})

var _ = Describe("Config", func() {
	valid := func() *internal.Config {
		return &internal.Config{
			Server: internal.ServerConfig{
				Port:              8080,
				AllowedOrigins:    "https://a.example, https://b.example",
				ReadHeaderTimeout: time.Second,
				ReadTimeout:       5 * time.Second,
			},
			Security: internal.SecurityConfig{
				TokenSecret: "0123456789abcdef0123456789abcdef",
				TokenTTL:    time.Hour,
				BCryptCost:  12,
			},
			Observability: internal.ObservabilityConfig{
				Metrics: internal.MetricsConfig{Enabled: true, Path: "/metrics"},
				Logging: internal.LoggingConfig{Level: "info", Format: "json"},
			},
		}
	}

	It("should accept a complete configuration without a database", func() {
		cfg := valid()
		Expect(cfg.Validate()).To(Succeed())
		Expect(cfg.Database.Enabled()).To(BeFalse())
		Expect(cfg.Server.Origins()).To(Equal([]string{"https://a.example", "https://b.example"}))
	})

	It("should reject a short token secret", func() {
		cfg := valid()
		cfg.Security.TokenSecret = "short"
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("TokenSecret")))
	})

	It("should reject an idle pool larger than the open pool", func() {
		cfg := valid()
		cfg.Database = internal.DatabaseConfig{Source: "postgres://localhost/db", MaxOpenConns: 2, MaxIdleConns: 5}
		Expect(cfg.Validate()).To(MatchError(ContainSubstring("max_idle_conns")))
	})

	It("should read the environment with defaults", func() {
		GinkgoT().Setenv("TOKEN_SECRET", "0123456789abcdef0123456789abcdef")
		GinkgoT().Setenv("TOKEN_TTL", "0s")
		GinkgoT().Setenv("HTTP_PORT", "9090")

		cfg := internal.LoadConfigFromEnv()
		Expect(cfg.Server.Port).To(Equal(9090))
		Expect(cfg.Security.TokenTTL).To(BeZero())
		Expect(cfg.Security.BCryptCost).To(Equal(12))
		Expect(cfg.Validate()).To(Succeed())
	})
})
