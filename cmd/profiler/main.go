package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand" //nolint:gosec // intentional use for reproducible benchmarks
	"net/http"
	_ "net/http/pprof" //nolint:gosec // intentional profiling endpoint
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"strconv"
	"time"

	"github.com/felixge/fgprof"

	"github.com/meigma/zipkit"
)

type config struct {
	mode        string
	files       int
	fileSize    int
	dirCount    int
	compression string
	encryption  string
	password    string
	pattern     string
	fgProfile   string
	duration    time.Duration
	iterations  int
	pprofAddr   string
	cpuProfile  string
	memProfile  string
	traceFile   string
	workers     int
	cold        bool
	readRandom  bool
	tempDir     string
	keepTemp    bool
	randomSeed  int64
	verbose     bool
}

//nolint:unused // sink variables prevent compiler optimizations in profiling
var (
	sinkBytes []byte
	sinkEntry zipkit.Entry
)

//nolint:gocognit,gocyclo // main function complexity is acceptable for CLI tool
func main() {
	cfg := parseFlags()

	if cfg.pprofAddr != "" {
		go func() {
			log.Printf("pprof listening on %s", cfg.pprofAddr)
			//nolint:gosec // intentional pprof server without timeouts for profiling
			if err := http.ListenAndServe(cfg.pprofAddr, nil); err != nil {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	dir, cleanup, err := setupTempDir(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if cleanup != nil {
		defer cleanup() //nolint:errcheck // cleanup errors are non-fatal in profiler
	}

	srcDir := filepath.Join(dir, "src")
	paths, err := makeFiles(srcDir, cfg.files, cfg.fileSize, cfg.dirCount, cfg.pattern, cfg.randomSeed)
	if err != nil {
		log.Fatal(err) //nolint:gocritic // exitAfterDefer is intentional - cleanup is best-effort
	}

	archivePath := filepath.Join(dir, "dataset.zip")
	if err := buildArchive(cfg, archivePath, srcDir); err != nil {
		log.Fatal(err)
	}

	if cfg.fgProfile != "" {
		fgFile, fgErr := os.Create(cfg.fgProfile)
		if fgErr != nil {
			log.Fatal(fgErr)
		}
		stopFG := fgprof.Start(fgFile, fgprof.FormatPprof)
		defer func() {
			if err := stopFG(); err != nil {
				log.Printf("fgprof stop error: %v", err)
			}
			_ = fgFile.Close()
		}()
	}

	if cfg.cpuProfile != "" {
		cpuFile, cpuErr := os.Create(cfg.cpuProfile)
		if cpuErr != nil {
			log.Fatal(cpuErr)
		}
		if cpuErr = pprof.StartCPUProfile(cpuFile); cpuErr != nil {
			log.Fatal(cpuErr)
		}
		defer func() {
			pprof.StopCPUProfile()
			_ = cpuFile.Close()
		}()
	}

	if cfg.traceFile != "" {
		traceFile, traceErr := os.Create(cfg.traceFile)
		if traceErr != nil {
			log.Fatal(traceErr)
		}
		if traceErr = trace.Start(traceFile); traceErr != nil {
			log.Fatal(traceErr)
		}
		defer func() {
			trace.Stop()
			_ = traceFile.Close()
		}()
	}

	stats, err := runProfile(cfg, archivePath, srcDir, dir, paths)
	if err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile != "" {
		runtime.GC()
		f, err := os.Create(cfg.memProfile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.WriteHeapProfile(f); err != nil {
			log.Fatal(err)
		}
		_ = f.Close()
	}

	fmt.Printf("mode=%s ops=%d bytes=%d elapsed=%s throughput=%.2f MB/s\n",
		cfg.mode,
		stats.ops,
		stats.bytes,
		stats.elapsed,
		float64(stats.bytes)/(1024*1024)/stats.elapsed.Seconds(),
	)
}

type profileStats struct {
	ops     int
	bytes   int64
	elapsed time.Duration
}

//nolint:gocognit,gocyclo,gocritic // complexity is inherent to multi-mode profiler dispatch; hugeParam acceptable for profiler
func runProfile(cfg config, archivePath, srcDir, workDir string, paths []string) (profileStats, error) {
	ctx := context.Background()
	start := time.Now()
	ops := 0
	var byteCount int64
	datasetBytes := int64(cfg.files) * int64(cfg.fileSize)

	shouldContinue := func() bool {
		if cfg.iterations > 0 {
			return ops < cfg.iterations
		}
		return time.Since(start) < cfg.duration
	}

	switch cfg.mode {
	case "readentry":
		a, err := zipkit.Open(archivePath, archiveOptions(cfg)...)
		if err != nil {
			return profileStats{}, err
		}
		defer a.Close()

		rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks
		for shouldContinue() {
			path := pickPath(paths, ops, rng, cfg.readRandom)
			content, err := a.ReadEntry(path)
			if err != nil {
				return profileStats{}, err
			}
			sinkBytes = content
			byteCount += int64(len(content))
			ops++
		}

	case "entry-lookup":
		a, err := zipkit.Open(archivePath)
		if err != nil {
			return profileStats{}, err
		}
		defer a.Close()

		rng := rand.New(rand.NewSource(cfg.randomSeed)) //nolint:gosec // intentional for reproducible benchmarks
		for shouldContinue() {
			path := pickPath(paths, ops, rng, cfg.readRandom)
			e, err := a.Entry(path)
			if err != nil {
				return profileStats{}, err
			}
			sinkEntry = e
			ops++
		}

	case "open":
		for shouldContinue() {
			a, err := zipkit.Open(archivePath)
			if err != nil {
				return profileStats{}, err
			}
			if a.Len() != len(paths) {
				_ = a.Close()
				return profileStats{}, fmt.Errorf("expected %d entries, got %d", len(paths), a.Len())
			}
			_ = a.Close()
			ops++
		}

	case "validate":
		if cfg.password == "" {
			return profileStats{}, errors.New("validate mode requires -password")
		}
		a, err := zipkit.Open(archivePath)
		if err != nil {
			return profileStats{}, err
		}
		defer a.Close()
		for shouldContinue() {
			if err := a.ValidatePassword(cfg.password); err != nil {
				return profileStats{}, err
			}
			ops++
		}

	case "pack":
		out := filepath.Join(workDir, "pack.zip")
		for shouldContinue() {
			if _, err := zipkit.CreateFromDirectory(ctx, out, srcDir, packOptions(cfg)...); err != nil {
				return profileStats{}, err
			}
			byteCount += datasetBytes
			ops++
		}

	case "extract":
		for shouldContinue() {
			dest := filepath.Join(workDir, "extract")
			if cfg.cold {
				dest = filepath.Join(dest, "iter-"+strconv.Itoa(ops))
			}
			if _, err := zipkit.ExtractFile(ctx, archivePath, dest, extractOptions(cfg)...); err != nil {
				return profileStats{}, err
			}
			if cfg.cold {
				if err := os.RemoveAll(dest); err != nil {
					return profileStats{}, err
				}
			}
			byteCount += datasetBytes
			ops++
		}

	case "batch":
		const jobsPerOp = 4
		for shouldContinue() {
			jobs := make([]zipkit.Job, jobsPerOp)
			for i := range jobs {
				dest := filepath.Join(workDir, "batch", strconv.Itoa(ops), strconv.Itoa(i))
				jobs[i] = zipkit.ExtractJob(archivePath, dest, nil, extractOptions(cfg)...)
			}
			if err := zipkit.RunBatch(ctx, jobs, cfg.workers); err != nil {
				return profileStats{}, err
			}
			if err := os.RemoveAll(filepath.Join(workDir, "batch")); err != nil {
				return profileStats{}, err
			}
			byteCount += datasetBytes * jobsPerOp
			ops++
		}

	default:
		return profileStats{}, fmt.Errorf("unknown mode: %s", cfg.mode)
	}

	return profileStats{
		ops:     ops,
		bytes:   byteCount,
		elapsed: time.Since(start),
	}, nil
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.mode, "mode", "readentry", "mode: readentry, entry-lookup, open, validate, pack, extract, batch")
	flag.IntVar(&cfg.files, "files", 512, "number of files")
	flag.IntVar(&cfg.fileSize, "file-size", 16<<10, "file size in bytes")
	flag.IntVar(&cfg.dirCount, "dir-count", 16, "number of directories")
	flag.StringVar(&cfg.compression, "compression", "deflate", "compression: store, deflate or zstd")
	flag.StringVar(&cfg.encryption, "encryption", "aes", "encryption used with -password: aes or zipcrypto")
	flag.StringVar(&cfg.password, "password", "", "encrypt the dataset with this password")
	flag.StringVar(&cfg.pattern, "pattern", "compressible", "pattern: compressible or random")
	flag.StringVar(&cfg.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
	flag.DurationVar(&cfg.duration, "duration", 10*time.Second, "duration to run (ignored if iterations > 0)")
	flag.IntVar(&cfg.iterations, "iterations", 0, "number of iterations to run")
	flag.StringVar(&cfg.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	flag.StringVar(&cfg.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	flag.StringVar(&cfg.memProfile, "memprofile", "", "write heap profile to file")
	flag.StringVar(&cfg.traceFile, "trace", "", "write trace to file")
	flag.IntVar(&cfg.workers, "workers", 0, "batch workers: 0 uses GOMAXPROCS")
	flag.BoolVar(&cfg.cold, "cold", true, "extract into a fresh directory each iteration")
	flag.BoolVar(&cfg.readRandom, "read-random", true, "randomize readentry path selection")
	flag.StringVar(&cfg.tempDir, "temp-dir", "", "directory to use for dataset")
	flag.BoolVar(&cfg.keepTemp, "keep-temp", false, "keep temp dir after run")
	flag.Int64Var(&cfg.randomSeed, "seed", 1, "random seed")
	flag.BoolVar(&cfg.verbose, "v", false, "log archive operations to stderr")
	flag.Parse()
	return cfg
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func logger(cfg config) *slog.Logger {
	if !cfg.verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func archiveOptions(cfg config) []zipkit.Option {
	opts := []zipkit.Option{
		zipkit.WithCompression(parseCompression(cfg.compression)),
		zipkit.WithLogger(logger(cfg)),
	}
	if cfg.password != "" {
		opts = append(opts,
			zipkit.WithPassword(cfg.password),
			zipkit.WithEncryption(parseEncryption(cfg.encryption)),
		)
	}
	return opts
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func packOptions(cfg config) []zipkit.PackOption {
	return []zipkit.PackOption{
		zipkit.PackWithArchiveOptions(archiveOptions(cfg)...),
		zipkit.PackWithMaxFiles(-1),
	}
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func extractOptions(cfg config) []zipkit.ExtractOption {
	return []zipkit.ExtractOption{
		zipkit.ExtractWithPassword(cfg.password),
		zipkit.ExtractWithOverwrite(true),
		zipkit.ExtractWithLogger(logger(cfg)),
	}
}

func pickPath(paths []string, idx int, rng *rand.Rand, random bool) string {
	if random {
		return paths[rng.Intn(len(paths))]
	}
	return paths[idx%len(paths)]
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func setupTempDir(cfg config) (string, func() error, error) {
	if cfg.tempDir != "" {
		return cfg.tempDir, nil, os.MkdirAll(cfg.tempDir, 0o755) //nolint:gosec // 0o755 is intentional for profiler temp dirs
	}
	dir, err := os.MkdirTemp("", "zipkit-profiler-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() error {
		if cfg.keepTemp {
			return nil
		}
		return os.RemoveAll(dir)
	}
	return dir, cleanup, nil
}

func makeFiles(dir string, fileCount, fileSize, dirCount int, pattern string, seed int64) ([]string, error) {
	if dirCount <= 0 {
		dirCount = 1
	}
	paths := make([]string, 0, fileCount)
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // intentional use for reproducible benchmarks
	for i := range fileCount {
		relPath := fmt.Sprintf("dir%02d/file%05d.dat", i%dirCount, i)
		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil { //nolint:gosec // 0o755 is intentional for profiler
			return nil, err
		}

		content := make([]byte, fileSize)
		switch pattern {
		case "random":
			if _, err := rng.Read(content); err != nil {
				return nil, err
			}
		default:
			fillByte := byte('a' + (i % 26))
			for j := range content {
				content[j] = fillByte
			}
			if len(content) > 0 {
				content[0] = byte(i)
			}
		}

		if err := os.WriteFile(fullPath, content, 0o644); err != nil { //nolint:gosec // 0o644 is intentional for profiler test files
			return nil, err
		}
		paths = append(paths, relPath)
	}
	return paths, nil
}

//nolint:gocritic // hugeParam acceptable for config struct in CLI tool
func buildArchive(cfg config, archivePath, srcDir string) error {
	stats, err := zipkit.CreateFromDirectory(context.Background(), archivePath, srcDir, packOptions(cfg)...)
	if err != nil {
		return err
	}
	log.Printf("dataset: %d files, %d bytes", stats.Files, stats.TotalBytes)
	return nil
}

func parseCompression(name string) zipkit.Method {
	switch name {
	case "store":
		return zipkit.MethodStore
	case "deflate":
		return zipkit.MethodDeflate
	case "zstd":
		return zipkit.MethodZstd
	default:
		log.Fatalf("unknown compression: %s", name)
		return zipkit.MethodStore
	}
}

func parseEncryption(name string) zipkit.Encryption {
	switch name {
	case "aes":
		return zipkit.EncryptionAES256
	case "zipcrypto":
		return zipkit.EncryptionZipCrypto
	default:
		log.Fatalf("unknown encryption: %s", name)
		return zipkit.EncryptionNone
	}
}
