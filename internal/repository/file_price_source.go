package repository

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	applogger "FinSelect/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

var ErrNoPriceData = errors.New("no price data")

// FilePriceSource serves candles from text files under a directory. A file
// holds one bar per line: "YYYYMMDD price" or "YYYYMMDD open high low close
// [volume]", separated by spaces, tabs or commas. Symbol files are looked up as
// SYMBOL_TF.txt, then SYMBOL.txt. Parsed files are cached until they change.
type FilePriceSource struct {
	dir string
	l   *applogger.Logger

	mu    sync.RWMutex
	cache map[string][]models.Candle
	// gens counts invalidations per path; a parse started before one is not cached.
	gens map[string]uint64
	// onOpen runs after a file is opened for parsing.
	onOpen func(path string)

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewFilePriceSource(dir string) *FilePriceSource {
	return &FilePriceSource{
		dir:   dir,
		l:     applogger.Nop(),
		cache: make(map[string][]models.Candle),
		gens:  make(map[string]uint64),
		done:  make(chan struct{}),
	}
}

// SetLogger injects a structured logger.
func (s *FilePriceSource) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// Watch invalidates cached files when they are written, replaced or removed.
// It returns once the watcher is registered; events are handled until ctx ends
// or Close is called.
func (s *FilePriceSource) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("price watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.watcher = w

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
					s.Invalidate(ev.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.l.Warn("price watcher error", applogger.Error(err))
			}
		}
	}()
	return nil
}

// Invalidate drops the cached bars of path.
func (s *FilePriceSource) Invalidate(path string) {
	path = filepath.Clean(path)
	s.mu.Lock()
	_, had := s.cache[path]
	delete(s.cache, path)
	s.gens[path]++
	s.mu.Unlock()
	if had {
		s.l.Debug("price file invalidated", applogger.String("path", path))
	}
}

func (s *FilePriceSource) Close() error {
	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}

func (s *FilePriceSource) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	all, err := s.load(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}
	lo := sort.Search(len(all), func(i int) bool { return !all[i].Bucket.Before(from) })
	hi := sort.Search(len(all), func(i int) bool { return all[i].Bucket.After(to) })
	if lo >= hi {
		return []models.Candle{}, nil
	}
	return append([]models.Candle(nil), all[lo:hi]...), nil
}

// GetLatestNCandles returns up to n most recent candles in ascending order.
func (s *FilePriceSource) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	if n <= 0 {
		return nil, fmt.Errorf("latest candles: n must be positive, got %d", n)
	}
	all, err := s.load(ctx, symbol, tf)
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return append([]models.Candle(nil), all...), nil
}

func (s *FilePriceSource) load(ctx context.Context, symbol string, tf domrepo.Timeframe) ([]models.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(symbol, tf)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	cached, ok := s.cache[path]
	gen := s.gens[path]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()
	if s.onOpen != nil {
		s.onOpen(path)
	}

	start := time.Now()
	candles, err := ParseCandles(f, symbol)
	if err != nil {
		s.l.Error("price file parse error", applogger.String("path", path), applogger.Error(err))
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	s.mu.Lock()
	stale := s.gens[path] != gen
	if !stale {
		s.cache[path] = candles
	}
	s.mu.Unlock()
	if stale {
		s.l.Debug("price file changed while loading, not cached", applogger.String("path", path))
	}

	s.l.Debug("price file loaded",
		applogger.String("path", path),
		applogger.Int("rows", len(candles)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return candles, nil
}

func (s *FilePriceSource) resolve(symbol string, tf domrepo.Timeframe) (string, error) {
	if symbol == "" || strings.ContainsAny(symbol, `/\`) || strings.Contains(symbol, "..") {
		return "", fmt.Errorf("invalid symbol %q", symbol)
	}
	for _, name := range []string{symbol + "_" + string(tf) + ".txt", symbol + ".txt"} {
		p := filepath.Clean(filepath.Join(s.dir, name))
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no price file for %s in %s", ErrNoPriceData, symbol, s.dir)
}

// ParseCandles reads bars in the price file format. Dates must be strictly
// increasing and every price positive.
func ParseCandles(r io.Reader, symbol string) ([]models.Candle, error) {
	sc := bufio.NewScanner(r)
	var out []models.Candle
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		c, err := parseCandleLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(out); n > 0 && !c.Bucket.After(out[n-1].Bucket) {
			return nil, fmt.Errorf("line %d: date %s is not after %s", line, c.Bucket.Format("20060102"), out[n-1].Bucket.Format("20060102"))
		}
		c.Symbol = symbol
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read prices: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoPriceData
	}
	return out, nil
}

func parseCandleLine(text string) (models.Candle, error) {
	var c models.Candle
	if len(text) < 8 {
		return c, errors.New("line too short")
	}
	date, err := time.Parse("20060102", text[:8])
	if err != nil {
		return c, fmt.Errorf("invalid date %q", text[:8])
	}
	c.Bucket = date

	fields := strings.FieldsFunc(text[8:], func(r rune) bool { return r == ' ' || r == '\t' || r == ',' })
	if len(fields) == 0 {
		return c, errors.New("no price found")
	}
	vals := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return c, fmt.Errorf("invalid price %q", f)
		}
		vals = append(vals, v)
	}

	if len(vals) >= 4 {
		c.Open, c.High, c.Low, c.Close = vals[0], vals[1], vals[2], vals[3]
		if len(vals) >= 5 {
			c.Volume = vals[4]
		}
	} else {
		c.Open, c.High, c.Low, c.Close = vals[0], vals[0], vals[0], vals[0]
	}
	for _, p := range []float64{c.Open, c.High, c.Low, c.Close} {
		if !(p > 0) {
			return c, fmt.Errorf("non-positive price %v", p)
		}
	}
	return c, nil
}
