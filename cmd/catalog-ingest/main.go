// Command catalog-ingest loads supplier product feeds into the catalog.
//
// Each supplier ships a gzipped feed of candidate catalog records, one per
// line: sku,name,price,category,stock. Feeds are noisy and contain SKUs the
// print shop cannot actually source, so a SKU is accepted only when it
// appears in at least two independent feeds. Feeds are far too large to hold
// in memory, so the cross-feed check runs in two streaming passes over bloom
// filters.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/printkart/storefront/internal/repository"
)

const (
	bloomCapacity = 20_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	minSKULen     = 4
	maxSKULen     = 64
)

const upsertProductSQL = `
	INSERT INTO products (id, name, price, category, stock, active)
	VALUES ($1, $2, $3, $4, $5, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		price = EXCLUDED.price,
		category = EXCLUDED.category,
		stock = EXCLUDED.stock,
		active = TRUE`

// feedRecord is one parsed supplier feed line.
type feedRecord struct {
	sku      string
	name     string
	price    decimal.Decimal
	category string
	stock    int
}

// fileResult holds candidate records found in a single feed during pass 2,
// with a bitmask of the feeds each SKU was seen in.
type fileResult struct {
	records map[string]feedRecord
	seen    map[string]uint
}

func main() {
	var (
		dataDir     string
		numFeeds    int
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing feedN.gz supplier files")
	flag.IntVar(&numFeeds, "feeds", 3, "number of supplier feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if numFeeds < 2 {
		slog.Error("at least two feeds are required for cross-feed verification")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, numFeeds, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir string, numFeeds int, databaseURL string) error {
	files := make([]string, numFeeds)
	for i := 0; i < numFeeds; i++ {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("feed%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: build one bloom filter of SKUs per feed, concurrently.
	slog.Info("pass 1: building bloom filters", slog.Int("feeds", numFeeds))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: collect records whose SKU appears in 2+ feeds.
	slog.Info("pass 2: cross-checking feeds")

	verified, err := findVerifiedRecords(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "find verified records")
	}

	slog.Info("verified products found", slog.Int("count", len(verified)))

	if len(verified) == 0 {
		slog.Info("no verified products to upsert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeProducts(ctx, pool, verified); err != nil {
		return errors.Wrap(err, "write products to database")
	}

	return nil
}

// buildBloomFilters creates one bloom filter per feed, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFeed(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFeed(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			sku, _, ok := strings.Cut(line, ",")
			if !ok || len(sku) < minSKULen || len(sku) > maxSKULen {
				return
			}
			filter.AddString(sku)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("records", count),
				)
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for feed %d", idx+1)
		}

		slog.Info("pass 1 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_records", count),
		)

		filters[idx] = filter
		return nil
	}
}

// findVerifiedRecords re-streams each feed and checks SKUs against OTHER
// feeds' bloom filters. A record is verified if its SKU appears in 2 or more
// feeds; the record data itself is taken from whichever feed listed it.
func findVerifiedRecords(
	ctx context.Context,
	files []string,
	filters []*bloom.BloomFilter,
) (map[string]feedRecord, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFeed(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge feed bitmasks and keep records seen in 2+ feeds.
	merged := make(map[string]uint)
	records := make(map[string]feedRecord)
	for _, r := range results {
		for sku, mask := range r.seen {
			merged[sku] |= mask
			if _, ok := records[sku]; !ok {
				records[sku] = r.records[sku]
			}
		}
	}

	verified := make(map[string]feedRecord)
	for sku, mask := range merged {
		if bits.OnesCount(mask) >= 2 {
			verified[sku] = records[sku]
		}
	}

	return verified, nil
}

func findCandidatesInFeed(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		records := make(map[string]feedRecord)
		seen := make(map[string]uint)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			rec, err := parseFeedLine(line)
			if err != nil {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress",
					slog.Int("feed", idx+1),
					slog.Uint64("records", count),
				)
			}

			// Check whether this SKU appears in any OTHER feed's filter.
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(rec.sku) {
					seen[rec.sku] |= fileBit
					records[rec.sku] = rec
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan feed %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("feed", idx+1),
			slog.Uint64("total_records", count),
			slog.Int("candidates", len(seen)),
		)

		results[idx] = fileResult{records: records, seen: seen}
		return nil
	}
}

// parseFeedLine parses "sku,name,price,category,stock". Malformed lines are
// skipped rather than failing the whole feed.
func parseFeedLine(line string) (feedRecord, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return feedRecord{}, errors.Errorf("expected 5 fields, got %d", len(fields))
	}

	sku := strings.TrimSpace(fields[0])
	if len(sku) < minSKULen || len(sku) > maxSKULen {
		return feedRecord{}, errors.New("sku length out of range")
	}

	price, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
	if err != nil {
		return feedRecord{}, errors.Wrap(err, "parse price")
	}
	if price.IsNegative() {
		return feedRecord{}, errors.New("negative price")
	}

	stock, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil || stock < 0 {
		return feedRecord{}, errors.New("invalid stock")
	}

	return feedRecord{
		sku:      sku,
		name:     strings.TrimSpace(fields[1]),
		price:    price,
		category: strings.TrimSpace(fields[3]),
		stock:    stock,
	}, nil
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
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

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeProducts upserts all verified catalog records.
func writeProducts(ctx context.Context, pool *pgxpool.Pool, verified map[string]feedRecord) error {
	slog.Info("writing products to database", slog.Int("count", len(verified)))

	written := 0
	for _, rec := range verified {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			rec.sku, rec.name, rec.price, rec.category, rec.stock,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", rec.sku)
		}

		written++
		if written%100 == 0 || written == len(verified) {
			slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(verified)))
		}
	}

	return nil
}
