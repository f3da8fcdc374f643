package worker

import (
	"context"
	"errors"
	"log"
	"time"

	"mailkit/utils"
)

// DomainLoader is satisfied by *utils.Checker.
type DomainLoader interface {
	LoadTempDomains(ctx context.Context) (int, error)
}

// BlocklistWorker keeps the temporary-domain blocklist fresh by pulling the
// configured source list on a fixed interval.
type BlocklistWorker struct {
	Loader       DomainLoader
	Interval     time.Duration
	InitialDelay time.Duration
	Logger       *log.Logger
}

func NewBlocklistWorker(loader DomainLoader, interval time.Duration, logger *log.Logger) *BlocklistWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &BlocklistWorker{
		Loader:       loader,
		Interval:     interval,
		InitialDelay: 10 * time.Second,
		Logger:       logger,
	}
}

// Start blocks until ctx is cancelled. It runs one refresh after
// InitialDelay and then one per Interval.
func (bw *BlocklistWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	select {
	case <-ctx.Done():
		return
	case <-time.After(bw.InitialDelay):
	}

	bw.Logger.Println("Blocklist worker started")
	if !bw.refresh(ctx) {
		return
	}

	ticker := time.NewTicker(bw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			bw.Logger.Println("Blocklist worker shutting down...")
			return
		case <-ticker.C:
			bw.refresh(ctx)
		}
	}
}

// refresh returns false when there is nothing to refresh from.
func (bw *BlocklistWorker) refresh(ctx context.Context) bool {
	added, err := bw.Loader.LoadTempDomains(ctx)
	if errors.Is(err, utils.ErrNoDomainSource) {
		bw.Logger.Println("No domain source configured, blocklist worker stopping")
		return false
	}
	if err != nil {
		bw.Logger.Printf("Error refreshing temporary domains: %v", err)
		utils.LogError("BlocklistRefresh", err, nil)
		return true
	}
	bw.Logger.Printf("Temporary domains refreshed, %d new", added)
	return true
}
