package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"skyxcorr/adapters/cache"
	"skyxcorr/adapters/memory"
	"skyxcorr/adapters/postgres"
	"skyxcorr/adapters/synthetic"
	"skyxcorr/app"
	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/migration"
	"skyxcorr/likelihood"
	"skyxcorr/ports"
)

// mcmc samples the posterior over the correlated fractions of one ingested
// sample. Chains persist step by step; rerunning with RESUME=true continues
// from the last stored walker positions.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	logger := internal.NewDefaultLogger()
	ctx := context.Background()

	field, detector, generator, err := buildSources(cfg)
	if err != nil {
		log.Fatalf("building sources: %v", err)
	}

	templateCache, err := cache.NewInMemoryCache()
	if err != nil {
		log.Fatalf("opening template cache: %v", err)
	}
	defer templateCache.Close()

	svc, err := app.NewAnalysisService(ctx, cfg, detector, field, generator, templateCache, logger)
	if err != nil {
		log.Fatalf("building analysis service: %v", err)
	}

	injected := envFloat("INJECTED_FRACTION", 0)
	src, err := generator.MixedTrial(injected, cfg.Stream("mcmc/sample"))
	if err != nil {
		log.Fatalf("drawing sample: %v", err)
	}
	if err := svc.Ingest(ctx, src); err != nil {
		log.Fatalf("ingesting sample: %v", err)
	}

	store, closeStore, err := openChainStore(ctx)
	if err != nil {
		log.Fatalf("opening chain store: %v", err)
	}
	defer closeStore()

	runTag := os.Getenv("RUN_TAG")
	if runTag == "" {
		runTag = cfg.FieldName
	}
	key := ports.ChainKey{
		RunTag:   runTag,
		NWalkers: envInt("N_WALKERS", 32),
		NDim:     cfg.NumActiveBins(),
	}
	nSteps := envInt("N_STEPS", 1000)
	resume := os.Getenv("RESUME") == "true"

	sampler := likelihood.NewSampler(cfg, svc.Engine(), store, logger)
	if err := sampler.Run(ctx, key, nSteps, resume, cfg.Stream("mcmc/walkers")); err != nil {
		log.Fatalf("sampling: %v", err)
	}

	discard := envInt("BURN_IN", nSteps/4)
	thin := envInt("THIN", 2)
	chain, err := store.Chain(key, discard, thin)
	if err != nil {
		log.Fatalf("reading chain: %v", err)
	}

	means := make([]float64, key.NDim)
	for _, pos := range chain {
		for d, v := range pos {
			means[d] += v
		}
	}
	logger.Info("chain %s: %d retained samples", runTag, len(chain))
	for d := range means {
		logger.Info("  bin %d: posterior mean f=%.4f", cfg.EbinMin+d, means[d]/float64(len(chain)))
	}
}

func buildSources(cfg config.AnalysisConfig) (*synthetic.Field, *synthetic.Detector, *synthetic.Generator, error) {
	auto := synthetic.PowerLawAuto(cfg.NFine, 1.0)
	fieldMask := synthetic.UniformMask(spectra.NPixel)
	field, err := synthetic.NewField(cfg.FieldName, auto, fieldMask)
	if err != nil {
		return nil, nil, nil, err
	}

	detector := synthetic.NewDetector(synthetic.BandMask(spectra.NPixel, 0.2), cfg.ExposureYears)
	detMask, _ := detector.Mask()
	mask, err := spectra.BuildSkyMask(detMask, fieldMask)
	if err != nil {
		return nil, nil, nil, err
	}

	counts := make([]int, cfg.Binning.NumBins())
	for i := range counts {
		counts[i] = envInt("TRIAL_COUNTS", 1000)
	}
	generator, err := synthetic.NewGenerator(cfg, field, mask, counts, envFloat("KERNEL_NOISE", 0.5))
	if err != nil {
		return nil, nil, nil, err
	}
	return field, detector, generator, nil
}

func openChainStore(ctx context.Context) (ports.ChainStore, func(), error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return memory.NewChainStore(), func() {}, nil
	}
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, nil, err
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewChainStore(db), func() { db.Close() }, nil
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
