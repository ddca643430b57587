package deployments

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

var metricNamePattern = regexp.MustCompile(`hospitalnlq_[a-z_]+`)

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	text := readAsset(t, "observability", "prometheus", "hospitalnlq_rules.yaml")

	requiredAlerts := []string{
		"HospitalNLQWarehouseUnavailable",
		"HospitalNLQTranslateLatencyP95High",
		"HospitalNLQExecutionFailuresHigh",
		"HospitalNLQHTTPErrorRateHigh",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}

	requiredRecords := []string{
		"hospitalnlq:action_failure_ratio_15m",
		"hospitalnlq:translate_latency_seconds_p95",
		"hospitalnlq:execute_latency_seconds_p95",
		"hospitalnlq:sql_keyword_fallback_15m",
		"hospitalnlq:http_error_rate_5m",
	}
	for _, recordName := range requiredRecords {
		if !strings.Contains(text, "record: "+recordName) {
			t.Fatalf("rules missing record %q", recordName)
		}
	}
}

func TestPrometheusRulesOnlyReferenceExportedMetrics(t *testing.T) {
	rules := readAsset(t, "observability", "prometheus", "hospitalnlq_rules.yaml")
	metricsSource := readRepoFile(t, "internal", "observability", "metrics.go")

	for _, name := range metricNamePattern.FindAllString(rules, -1) {
		base := strings.TrimSuffix(strings.TrimSuffix(name, "_bucket"), "_")
		if !strings.Contains(metricsSource, `"`+base+`"`) {
			t.Fatalf("rules reference unknown metric %q", name)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	text := readAsset(t, "observability", "prometheus", "prometheus-scrape.example.yaml")

	for _, token := range []string{
		"metrics_path: /v1/metrics",
		"hospitalnlq_rules.yaml",
		"job_name: hospitalnlq-api",
	} {
		if !strings.Contains(text, token) {
			t.Fatalf("scrape example missing %q", token)
		}
	}
}

func TestComposeProvidesExportStore(t *testing.T) {
	text := readAsset(t, "docker-compose.yml")

	for _, token := range []string{"minio:", "MINIO_ROOT_USER: minio", "MINIO_ROOT_PASSWORD: miniostorage", "\"9000:9000\""} {
		if !strings.Contains(text, token) {
			t.Fatalf("compose file missing %q", token)
		}
	}
}

func readAsset(t *testing.T, parts ...string) string {
	t.Helper()
	return readRepoFile(t, append([]string{"deployments"}, parts...)...)
}

func readRepoFile(t *testing.T, parts ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{repoRoot(t)}, parts...)...)
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(content)
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
