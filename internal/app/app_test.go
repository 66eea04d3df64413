package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendmind/internal/config"
	"spendmind/internal/log"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, key := range []string{"GEMINI_API_KEY", "AMQP_URL", "SMTP_HOST", "GOOGLE_SPREADSHEET_ID"} {
		t.Setenv(key, "")
	}
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("ADVISOR_MONTHLY_INCOME", "3000")
	cfg := config.Load()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildServesSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := Build(ctx, memoryConfig(t), log.Nop())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"owner":"ada"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	a.Server.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	owner, _, ok := a.Gate.Current()
	assert.True(t, ok)
	assert.Equal(t, "ada", owner)

	st, open := a.Stores.Current()
	require.True(t, open)
	select {
	case <-st.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("store never finished loading")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
	defer done()
	assert.NoError(t, a.Shutdown(shutdownCtx))
}

func TestBuildRejectsBadIncome(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.MonthlyIncome = "lots"
	_, err := Build(context.Background(), cfg, log.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADVISOR_MONTHLY_INCOME")
}

func TestAdvisorOptionsKeepZeroIncome(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.MonthlyIncome = "0"
	opts, err := provideAdvisorOptions(cfg, log.Nop())
	require.NoError(t, err)
	assert.True(t, opts.MonthlyIncome.Valid)
	assert.True(t, opts.MonthlyIncome.Decimal.IsZero())
}

func TestBuildWorkerNeedsQueueAndMail(t *testing.T) {
	_, err := BuildWorker(memoryConfig(t), log.Nop())
	assert.ErrorIs(t, err, ErrWorkerDisabled)
}
