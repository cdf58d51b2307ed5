package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  addr: ":9090"
digilocker:
  token_url: https://digilocker.example/token
  student:
    client_id: student-app
    client_secret: s3cret
  staff:
    client_id: staff-app
directory:
  base_url: https://iam.example/auth
  realm: ulp
  client_id: gateway
registry:
  base_url: https://registry.example
did:
  base_url: https://did.example
credentials:
  base_url: https://cred.example
  schema_cache_ttl: 5m
identity:
  salt: pepper
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "student-app", cfg.DigiLocker.Student.ClientID)
	assert.Equal(t, "ulp", cfg.Directory.Realm)
	assert.Equal(t, 5*time.Minute, cfg.Credentials.SchemaCacheTTL)
	// untouched sections keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Outbound.Timeout)
	assert.Equal(t, 4, cfg.Server.BulkConcurrency)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestValidateReportsAllMissingFields(t *testing.T) {
	err := Default().Validate()
	require.Error(t, err)
	for _, key := range []string{"digilocker.token_url", "directory.realm", "registry.base_url", "identity.salt"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidateRequiresTopicWithBrokers(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	cfg.Audit.KafkaBrokers = []string{"localhost:9092"}
	cfg.Audit.Topic = ""
	assert.ErrorContains(t, cfg.Validate(), "audit.topic")
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"ULP_ADDR":                "127.0.0.1:7000",
		"ULP_IDENTITY_SALT":       "from-env",
		"ULP_OUTBOUND_TIMEOUT":    "3s",
		"ULP_BULK_CONCURRENCY":    "8",
		"ULP_AUDIT_KAFKA_BROKERS": "k1:9092,k2:9092",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, applyEnv(&cfg, lookup))

	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Identity.Salt)
	assert.Equal(t, 3*time.Second, cfg.Outbound.Timeout)
	assert.Equal(t, 8, cfg.Server.BulkConcurrency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Audit.KafkaBrokers)
}

func TestApplyEnvRejectsMalformedValues(t *testing.T) {
	lookup := func(k string) (string, bool) {
		switch k {
		case "ULP_OUTBOUND_TIMEOUT":
			return "soon", true
		case "ULP_BULK_CONCURRENCY":
			return "many", true
		}
		return "", false
	}
	cfg := Default()
	err := applyEnv(&cfg, lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ULP_OUTBOUND_TIMEOUT")
	assert.Contains(t, err.Error(), "ULP_BULK_CONCURRENCY")
}
