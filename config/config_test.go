package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	assert.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.False(t, cfg.State.BackendEnabled)
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, "learning.events", cfg.Events.Topic)
	assert.Equal(t, "progress-agent", cfg.Events.GroupID)
	assert.True(t, cfg.Events.DeadLetterEnabled)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 30*time.Second, cfg.App.ShutdownTimeout)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EventsRequireBrokers(t *testing.T) {
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_ProductionRequiresStateBackend(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "STATE_BACKEND_ENABLED")
}

func TestLoad_FullEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STATE_BACKEND_ENABLED", "true")
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("DATABASE_URL", "postgres://mesh:secret@db:5432/progress")
	t.Setenv("EVENTS_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("KAFKA_TOPIC", "tutoring.learning.events")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("AGENT_URLS", "concepts=http://concepts:8081,exercise=http://exercise:8082")
	t.Setenv("APP_SHUTDOWN_TIMEOUT", "45s")

	cfg, err := Load()
	assert.NoError(t, err)

	assert.True(t, cfg.State.BackendEnabled)
	assert.Equal(t, "redis.internal", cfg.State.Host)
	assert.Equal(t, 6380, cfg.State.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, "tutoring.learning.events", cfg.Events.Topic)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 45*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, map[string]string{
		"concepts": "http://concepts:8081",
		"exercise": "http://exercise:8082",
	}, cfg.HTTP.Agents)
}

func TestGetEnvStringMap_SkipsMalformedPairs(t *testing.T) {
	t.Setenv("AGENT_URLS", "concepts=http://concepts:8081,,broken,=http://x")

	agents := getEnvStringMap("AGENT_URLS", nil)
	assert.Equal(t, map[string]string{"concepts": "http://concepts:8081"}, agents)
}

func TestFeatureFlags_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureScoringTrendPrediction, nil))
	assert.True(t, ff.IsEnabled(FeatureSnapshotAggregation, nil))
	assert.False(t, ff.IsEnabled("does.not.exist", nil))
}

func TestFeatureFlags_EnvOverride(t *testing.T) {
	t.Setenv("FEATURE_SNAPSHOT_AGGREGATION", "false")

	ff := LoadFeatureFlags()
	assert.False(t, ff.IsEnabled(FeatureSnapshotAggregation, nil))
}

func TestFeatureFlags_StudentOverride(t *testing.T) {
	ff := LoadFeatureFlags()
	ff.SetStudentOverride("student-1", FeatureScoringRecommendations, false)

	ctx := &FeatureContext{StudentID: "student-1"}
	assert.False(t, ff.IsEnabled(FeatureScoringRecommendations, ctx))
	assert.True(t, ff.IsEnabled(FeatureScoringRecommendations, &FeatureContext{StudentID: "student-2"}))

	ff.ClearStudentOverrides("student-1")
	assert.True(t, ff.IsEnabled(FeatureScoringRecommendations, ctx))
}

func TestFeatureFlags_RolloutPercent(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.NoError(t, ff.SetRolloutPercent(FeatureSnapshotAggregation, 50))
	assert.Error(t, ff.SetRolloutPercent(FeatureSnapshotAggregation, 150))
	assert.Error(t, ff.SetRolloutPercent("does.not.exist", 10))

	// Bucketing is deterministic per student.
	ctx := &FeatureContext{StudentID: "student-1"}
	first := ff.IsEnabled(FeatureSnapshotAggregation, ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureSnapshotAggregation, ctx))
	}
}
