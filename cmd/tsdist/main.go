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
	"skyxcorr/adapters/excel"
	"skyxcorr/adapters/memory"
	"skyxcorr/adapters/postgres"
	"skyxcorr/adapters/synthetic"
	"skyxcorr/app"
	"skyxcorr/domain/spectra"
	"skyxcorr/internal"
	"skyxcorr/internal/config"
	"skyxcorr/internal/migration"
	"skyxcorr/ports"
)

// tsdist maps the empirical test-statistic distribution at one injected
// fraction over N_TRIALS synthetic realizations. With DATABASE_URL set the
// values accumulate in PostgreSQL across batches.
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

	store, closeStore, err := openTSStore(ctx)
	if err != nil {
		log.Fatalf("opening TS store: %v", err)
	}
	defer closeStore()

	svc, err := app.NewAnalysisService(ctx, cfg, detector, field, generator, templateCache, logger)
	if err != nil {
		log.Fatalf("building analysis service: %v", err)
	}

	trials := app.NewTrialService(cfg, svc.Engine(), generator, store, logger)

	injected := envFloat("INJECTED_FRACTION", 0)
	nTrials := envInt("N_TRIALS", 100)
	model := os.Getenv("MODEL_TAG")
	if model == "" {
		model = "numu"
	}

	dist, err := trials.Run(ctx, injected, nTrials, model)
	if err != nil {
		log.Fatalf("running trials: %v", err)
	}

	logger.Info("f=%.3f trials=%d median=%.3f p90=%.3f p99=%.3f",
		injected, len(dist.Values), dist.Median, dist.P90, dist.P99)
	for threshold, frac := range dist.FractionAbove {
		logger.Info("  P(TS > %.0f) = %.4f", threshold, frac)
	}

	if out := os.Getenv("OUTPUT_XLSX"); out != "" {
		writer := excel.NewResultWriter()
		if err := writer.WriteTSDistribution("ts_distribution", dist); err != nil {
			log.Fatalf("writing workbook: %v", err)
		}
		if err := writer.Save(out); err != nil {
			log.Fatalf("saving workbook: %v", err)
		}
		logger.Info("wrote %s", out)
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

func openTSStore(ctx context.Context) (ports.TSStore, func(), error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return memory.NewTSStore(), func() {}, nil
	}
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, nil, err
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewTSStore(db), func() { db.Close() }, nil
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
