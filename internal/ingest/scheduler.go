package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/lox/rainseason/internal/seasonal"
	"github.com/lox/rainseason/internal/store"
)

const (
	DefaultPrewarmInterval  = 60 * time.Minute
	DefaultPayloadRetention = 30 // days
	prewarmConcurrency      = 4
	cleanupAt               = "03:00"
)

// Refresher recomputes and caches the outlook for a coordinate.
type Refresher interface {
	Refresh(ctx context.Context, lat, lon float64) (seasonal.SeasonalForecast, error)
}

// Prewarmer keeps cached outlooks fresh for the active locations and
// purges expired cache rows and old raw payloads once a day.
type Prewarmer struct {
	scheduler        *gocron.Scheduler
	store            *store.Store
	outlooks         Refresher
	interval         time.Duration
	payloadRetention int
}

func NewPrewarmer(st *store.Store, outlooks Refresher, interval time.Duration, loc *time.Location) *Prewarmer {
	if loc == nil {
		loc = time.UTC
	}
	if interval <= 0 {
		interval = DefaultPrewarmInterval
	}
	return &Prewarmer{
		scheduler:        gocron.NewScheduler(loc),
		store:            st,
		outlooks:         outlooks,
		interval:         interval,
		payloadRetention: DefaultPayloadRetention,
	}
}

// Start schedules the prewarm and cleanup jobs and starts the scheduler.
// The first prewarm runs immediately.
func (p *Prewarmer) Start() error {
	minutes := int(p.interval.Minutes())
	if minutes <= 0 {
		minutes = 1
	}

	_, err := p.scheduler.Every(minutes).Minutes().SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := p.PrewarmOnce(ctx); err != nil {
			log.Printf("scheduler: prewarm: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule prewarm: %w", err)
	}

	_, err = p.scheduler.Every(1).Day().At(cleanupAt).SingletonMode().Do(func() {
		if err := p.CleanupOnce(time.Now()); err != nil {
			log.Printf("scheduler: cleanup: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}

	p.scheduler.StartAsync()
	return nil
}

func (p *Prewarmer) Stop() {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
}

// Run starts the scheduler and blocks until ctx is done.
func (p *Prewarmer) Run(ctx context.Context) error {
	if err := p.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	log.Println("scheduler: shutting down")
	p.Stop()
	return nil
}

// PrewarmOnce refreshes the outlook for every active location and returns
// how many succeeded. Individual failures are logged, not returned.
func (p *Prewarmer) PrewarmOnce(ctx context.Context) (int, error) {
	locations, err := p.store.GetActiveLocations()
	if err != nil {
		return 0, fmt.Errorf("get active locations: %w", err)
	}
	if len(locations) == 0 {
		log.Println("scheduler: no locations configured; nothing to prewarm")
		return 0, nil
	}

	log.Printf("scheduler: prewarming %d locations", len(locations))
	results := make([]bool, len(locations))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prewarmConcurrency)
	for i, loc := range locations {
		g.Go(func() error {
			sf, err := p.outlooks.Refresh(gctx, loc.Latitude, loc.Longitude)
			if err != nil {
				log.Printf("scheduler: prewarm %s: %v", loc.Name, err)
				return nil
			}
			results[i] = true
			log.Printf("scheduler: %s: %s season, onset %s", loc.Name, sf.SeasonType, sf.OnsetStatus)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	ok := 0
	for _, r := range results {
		if r {
			ok++
		}
	}
	return ok, nil
}

// CleanupOnce deletes outlook cache rows expired at now and raw payloads
// past the retention window.
func (p *Prewarmer) CleanupOnce(now time.Time) error {
	expired, err := p.store.DeleteExpiredOutlooks(now)
	if err != nil {
		return fmt.Errorf("delete expired outlooks: %w", err)
	}
	payloads, err := p.store.CleanupOldRawPayloads(p.payloadRetention)
	if err != nil {
		return fmt.Errorf("cleanup raw payloads: %w", err)
	}
	log.Printf("scheduler: cleanup removed %d cached outlooks, %d raw payloads", expired, payloads)
	return nil
}
