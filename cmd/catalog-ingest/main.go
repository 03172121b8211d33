// Command catalog-ingest bulk-loads gzipped CSV catalog feeds into PostgreSQL.
//
// Feeds are processed in sorted file order and rows upsert by barcode, so a
// barcode appearing in several feeds keeps the last feed's data. Parsing and
// database writes run as a pipeline; malformed rows are counted and skipped.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/zenthicai/retail360-Self-checkout-system/internal/domain/catalog"
	"github.com/zenthicai/retail360-Self-checkout-system/internal/repository"
)

const (
	// bloomCapacity covers the largest distributor catalogs we ingest. The
	// filter only flags repeated barcodes for the summary; correctness comes
	// from the upsert.
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	batchSize     = 500
	progressEvery = 100_000
)

// feedStats accumulates counters across all feeds.
type feedStats struct {
	parsed     uint64
	skipped    uint64
	duplicates uint64
	written    uint64
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz catalog feeds")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, flag.Args()); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, files []string) error {
	if len(files) == 0 {
		var err error
		files, err = filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
		if err != nil {
			return errors.Wrap(err, "glob feeds")
		}
	}
	if len(files) == 0 {
		return errors.Errorf("no feed files found in %s", dataDir)
	}
	// Sorted order makes the later-feed-wins behavior reproducible.
	sort.Strings(files)

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := repository.NewCatalogRepository(pool)
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	stats := &feedStats{}

	// Pipeline: one goroutine streams and parses the feeds in order, the
	// other writes batches. Feeds are not parsed in parallel on purpose;
	// that would race the later-feed-wins upserts.
	batches := make(chan []catalog.Product, 4)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(batches)
		for i, f := range files {
			slog.Info("ingesting feed",
				slog.Int("file", i+1),
				slog.Int("of", len(files)),
				slog.String("path", f),
			)
			if err := streamFeed(ctx, f, filter, stats, batches); err != nil {
				return errors.Wrapf(err, "ingest %s", f)
			}
		}
		return nil
	})

	g.Go(func() error {
		for batch := range batches {
			n, err := repo.UpsertMany(ctx, batch)
			if err != nil {
				return errors.Wrap(err, "upsert batch")
			}
			stats.written += uint64(n)
			if stats.written%progressEvery < batchSize {
				slog.Info("write progress", slog.Uint64("written", stats.written))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("ingest summary",
		slog.Uint64("parsed", stats.parsed),
		slog.Uint64("written", stats.written),
		slog.Uint64("skipped_rows", stats.skipped),
		slog.Uint64("repeated_barcodes", stats.duplicates),
	)
	return nil
}

// streamFeed decompresses one feed and sends parsed rows to the writer in
// batches. Row validation is the same as the admin CSV import.
func streamFeed(
	ctx context.Context,
	path string,
	filter *bloom.BloomFilter,
	stats *feedStats,
	batches chan<- []catalog.Product,
) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return errors.Wrapf(err, "read header of %s", path)
	}
	cols, err := catalog.ParseHeader(header)
	if err != nil {
		return errors.Wrapf(err, "parse header of %s", path)
	}

	batch := make([]catalog.Product, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		select {
		case batches <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
		batch = make([]catalog.Product, 0, batchSize)
		return nil
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.skipped++
			continue
		}

		p, err := cols.ParseRow(row)
		if err != nil {
			stats.skipped++
			continue
		}

		stats.parsed++
		if stats.parsed%progressEvery == 0 {
			slog.Info("parse progress", slog.Uint64("rows", stats.parsed))
		}

		// TestAndAdd may rarely report a false positive; the count is
		// informational only.
		if filter.TestAndAddString(p.Barcode) {
			stats.duplicates++
		}

		batch = append(batch, p)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	return flush()
}
