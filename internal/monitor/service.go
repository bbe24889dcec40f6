package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/roeimichael/VarProject/internal/alert"
	"github.com/roeimichael/VarProject/internal/audit"
	"github.com/roeimichael/VarProject/internal/contracts"
	"github.com/roeimichael/VarProject/internal/enrich"
	"github.com/roeimichael/VarProject/internal/limitsconfig"
	"github.com/roeimichael/VarProject/internal/metrics"
	"github.com/roeimichael/VarProject/internal/portfolio"
	"github.com/roeimichael/VarProject/internal/risk"
	"github.com/roeimichael/VarProject/internal/varcache"
	"github.com/roeimichael/VarProject/pkg/redis"
)

// Recorder stores run reports
type Recorder interface {
	SaveRun(ctx context.Context, run *audit.RunRecord) error
}

// Publisher pushes run reports to live subscribers
type Publisher interface {
	Broadcast(v interface{}) error
}

// FailedSymbol is a holding that could not be resolved to a VaR
type FailedSymbol struct {
	Symbol string `json:"symbol" msgpack:"symbol"`
	Stage  string `json:"stage" msgpack:"stage"`
	Error  string `json:"error" msgpack:"error"`
}

// Report is the outcome of one evaluation run
type Report struct {
	RunID      string                      `json:"run_id" msgpack:"run_id"`
	StartedAt  time.Time                   `json:"started_at" msgpack:"started_at"`
	Duration   time.Duration               `json:"duration" msgpack:"duration"`
	Source     string                      `json:"source" msgpack:"source"`
	ProfileID  string                      `json:"profile_id" msgpack:"profile_id"`
	LimitsHash string                      `json:"limits_hash" msgpack:"limits_hash"`
	Holdings   []contracts.EnrichedHolding `json:"holdings" msgpack:"holdings"`
	Findings   []contracts.Finding         `json:"findings" msgpack:"findings"`
	Lines      []string                    `json:"lines" msgpack:"lines"`
	Digest     string                      `json:"digest" msgpack:"digest"`
	Failures   []FailedSymbol              `json:"failures" msgpack:"failures"`
	CacheHits  int                         `json:"cache_hits" msgpack:"cache_hits"`
	CacheMiss  int                         `json:"cache_misses" msgpack:"cache_misses"`
}

// Record converts the report for the audit history
func (r *Report) Record() *audit.RunRecord {
	return &audit.RunRecord{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		Duration:   r.Duration,
		Holdings:   len(r.Holdings),
		Failures:   len(r.Failures),
		LimitsHash: r.LimitsHash,
		Findings:   r.Findings,
		Digest:     r.Digest,
	}
}

// Deps wires the service. Recorder, Publisher, Redis and Metrics are optional.
type Deps struct {
	Cache     *varcache.Cache
	Enricher  *enrich.Enricher
	Engine    *risk.RuleEngine
	Profile   *limitsconfig.Profile
	Recorder  Recorder
	Publisher Publisher
	Redis     *redis.Cache
	Metrics   *metrics.Registry
	Log       zerolog.Logger
}

// Service runs the enrich → evaluate → report pipeline
// ⭐ SSOT: every evaluation entry point (CLI, API, scheduler) goes through Run
type Service struct {
	cache     *varcache.Cache
	enricher  *enrich.Enricher
	engine    *risk.RuleEngine
	profile   *limitsconfig.Profile
	limits    risk.RiskLimits
	hash      string
	recorder  Recorder
	publisher Publisher
	redis     *redis.Cache
	metrics   *metrics.Registry
	log       zerolog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	latest *Report
}

// NewService validates the limits profile and builds the service
func NewService(deps Deps) (*Service, error) {
	if deps.Cache == nil || deps.Enricher == nil || deps.Profile == nil {
		return nil, fmt.Errorf("%w: cache, enricher and profile are required", contracts.ErrInvalidInput)
	}
	if deps.Engine == nil {
		deps.Engine = risk.NewRuleEngine()
	}

	limits := deps.Profile.RiskLimits()
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	hash, err := limitsconfig.Hash(deps.Profile)
	if err != nil {
		return nil, fmt.Errorf("hash limits profile: %w", err)
	}

	return &Service{
		cache:     deps.Cache,
		enricher:  deps.Enricher,
		engine:    deps.Engine,
		profile:   deps.Profile,
		limits:    limits,
		hash:      hash,
		recorder:  deps.Recorder,
		publisher: deps.Publisher,
		redis:     deps.Redis,
		metrics:   deps.Metrics,
		log:       deps.Log.With().Str("component", "monitor").Logger(),
		now:       time.Now,
	}, nil
}

// Limits returns the active limits
func (s *Service) Limits() risk.RiskLimits {
	return s.limits
}

// Profile returns the active limits profile
func (s *Service) Profile() *limitsconfig.Profile {
	return s.profile
}

// Cache returns the ticker risk cache
func (s *Service) Cache() *varcache.Cache {
	return s.cache
}

// EvaluateFile loads a CSV snapshot and runs it
func (s *Service) EvaluateFile(ctx context.Context, path string, opts portfolio.Options) (*Report, error) {
	holdings, err := portfolio.LoadCSV(path, opts)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, holdings, path)
}

// Run evaluates a decoded snapshot
func (s *Service) Run(ctx context.Context, holdings []contracts.Holding) (*Report, error) {
	normalized, err := portfolio.Normalize(holdings, "request")
	if err != nil {
		return nil, err
	}
	return s.run(ctx, normalized, "request")
}

func (s *Service) run(ctx context.Context, holdings []contracts.Holding, source string) (report *Report, err error) {
	started := s.now()
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	defer func() {
		var findings []contracts.Finding
		if report != nil {
			findings = report.Findings
		}
		s.metrics.ObserveEvaluation(s.now().Sub(started), err, findings)
		s.metrics.SetCacheCounts(s.cache.Counts())
	}()

	enriched, err := s.enricher.Enrich(ctx, holdings)
	if err != nil {
		log.Error().Err(err).Msg("enrichment aborted")
		return nil, fmt.Errorf("enrich holdings: %w", err)
	}

	findings, err := s.engine.Evaluate(enriched.Holdings, s.limits)
	if err != nil {
		log.Error().Err(err).Msg("rule evaluation failed")
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}

	report = &Report{
		RunID:      runID,
		StartedAt:  started,
		Source:     source,
		ProfileID:  s.profile.Meta.ProfileID,
		LimitsHash: s.hash,
		Holdings:   enriched.Holdings,
		Findings:   findings,
		Lines:      alert.Lines(findings),
		Digest:     alert.FormatDigest(findings),
		Failures:   make([]FailedSymbol, 0, len(enriched.Failures)),
		CacheHits:  enriched.Hits,
		CacheMiss:  enriched.Misses,
	}
	for _, f := range enriched.Failures {
		report.Failures = append(report.Failures, FailedSymbol{Symbol: f.Symbol, Stage: f.Stage, Error: f.Err.Error()})
	}
	report.Duration = s.now().Sub(started)

	s.publish(ctx, report, log)

	log.Info().
		Int("holdings", len(report.Holdings)).
		Int("findings", len(report.Findings)).
		Int("failures", len(report.Failures)).
		Dur("duration", report.Duration).
		Msg("evaluation complete")

	return report, nil
}

// publish fans the report out. Sink errors are logged, the run still succeeds.
func (s *Service) publish(ctx context.Context, report *Report, log zerolog.Logger) {
	s.mu.Lock()
	s.latest = report
	s.mu.Unlock()

	if s.recorder != nil {
		if err := s.recorder.SaveRun(ctx, report.Record()); err != nil {
			log.Warn().Err(err).Msg("failed to record run")
		}
	}
	if s.redis != nil {
		if err := s.redis.Set(ctx, redis.LatestRunKey(), report, redis.TTLDaily*7); err != nil {
			log.Warn().Err(err).Msg("failed to cache latest run")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Broadcast(report); err != nil {
			log.Warn().Err(err).Msg("failed to broadcast run")
		}
	}
}

// Latest returns the most recent report from this process, or from Redis
// when another process ran it. ok is false when no run is known.
func (s *Service) Latest(ctx context.Context) (*Report, bool, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		return latest, true, nil
	}

	if s.redis == nil {
		return nil, false, nil
	}
	var report Report
	found, err := s.redis.Get(ctx, redis.LatestRunKey(), &report)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	return &report, true, nil
}
