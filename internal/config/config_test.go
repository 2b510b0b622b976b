package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setYidaEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LEDGER_BACKEND", BackendYida)
	t.Setenv("DINGTALK_APP_KEY", "key")
	t.Setenv("DINGTALK_APP_SECRET", "secret")
	t.Setenv("YIDA_APP_TYPE", "APP_TEST")
	t.Setenv("YIDA_SYSTEM_TOKEN", "token")
	t.Setenv("YIDA_USER_ID", "user")
	t.Setenv("YIDA_INVENTORY_FORM", "FORM-INV")
	t.Setenv("YIDA_COST_FORM", "FORM-COST")
	t.Setenv("YIDA_TOTALS_FORM", "FORM-TOTAL")
}

func TestLoadYidaDefaults(t *testing.T) {
	setYidaEnv(t)

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "https://api.dingtalk.com", cfg.Yida.BaseURL)
	require.Equal(t, 100, cfg.Yida.PageSize)
	require.Equal(t, 30*time.Second, cfg.Lock.TTL)
	require.Equal(t, "0 2 * * *", cfg.Audit.CronSchedule)
	require.False(t, cfg.WebhookAuthEnabled())
	require.Empty(t, cfg.Yida.InvoiceStatForm)
}

func TestLoadInvoiceStatFormIsOptional(t *testing.T) {
	setYidaEnv(t)
	t.Setenv("YIDA_INVOICE_STAT_FORM", "FORM-STAT")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)
	require.Equal(t, "FORM-STAT", cfg.Yida.InvoiceStatForm)
}

func TestLoadRejectsMissingYidaCredentials(t *testing.T) {
	setYidaEnv(t)
	t.Setenv("YIDA_COST_FORM", "")

	_, err := Load("testdata/missing.env")
	require.ErrorContains(t, err, "YIDA_COST_FORM")
}

func TestLoadMemoryBackendNeedsNoYida(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", BackendMemory)
	t.Setenv("DINGTALK_APP_KEY", "")
	t.Setenv("WEBHOOK_TOKEN", "s3cret")

	cfg, err := Load("testdata/missing.env")
	require.NoError(t, err)
	require.True(t, cfg.WebhookAuthEnabled())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"backend":  {"LEDGER_BACKEND", "sqlite"},
		"duration": {"PRODUCT_LOCK_TTL", "soon"},
		"page":     {"YIDA_PAGE_SIZE", "many"},
		"timezone": {"TIMEZONE", "Mars/Olympus"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LEDGER_BACKEND", BackendMemory)
			t.Setenv(kv[0], kv[1])
			_, err := Load("testdata/missing.env")
			require.Error(t, err)
		})
	}
}

func TestValidateSheetsPairing(t *testing.T) {
	t.Setenv("LEDGER_BACKEND", BackendMemory)
	t.Setenv("GOOGLE_SHEETS_CREDENTIALS_PATH", "/tmp/creds.json")

	_, err := Load("testdata/missing.env")
	require.ErrorContains(t, err, "together")
}
