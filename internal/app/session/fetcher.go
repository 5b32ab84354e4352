package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"rentline/internal/domain/inbox"
	"rentline/internal/infra/catalog"
	"rentline/internal/infra/messaging"
)

// Bootstrap is the merged result of the two conversation queries plus
// the item metadata resolved for every referenced item.
type Bootstrap struct {
	Mine   []inbox.ItemSeed
	Others []inbox.OtherSeed
	Items  map[string]inbox.ItemMeta
}

// Fetcher performs the initial inbox load: both conversation bootstrap
// queries, then a batch of item-detail lookups for every distinct item
// either query referenced.
type Fetcher struct {
	Messaging *messaging.Client
	Catalog   *catalog.Client
	Images    catalog.ImageResolver
	Logger    *slog.Logger
	// MetaWorkers bounds the concurrent item-detail lookups.
	// Defaults to 4.
	MetaWorkers int
	// Timeout bounds one whole Load. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration
}

// Load fetches and merges both views for one user. A failure of either
// conversation query fails the whole load; a failed item-detail lookup
// only degrades that item to placeholder metadata.
func (f *Fetcher) Load(ctx context.Context, userID string) (Bootstrap, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	ownerGroups, err := f.Messaging.OwnerGroups(ctx, userID)
	if err != nil {
		return Bootstrap{}, err
	}
	renterGroups, err := f.Messaging.RenterGroups(ctx, userID)
	if err != nil {
		return Bootstrap{}, err
	}

	boot := Bootstrap{Items: make(map[string]inbox.ItemMeta)}

	// JSON objects carry no order, so owned items enter the store in
	// ascending item-ID order; that is the documented tie-break for
	// equal activity timestamps.
	ownedIDs := make([]string, 0, len(ownerGroups))
	for itemID := range ownerGroups {
		ownedIDs = append(ownedIDs, itemID)
	}
	sort.Strings(ownedIDs)
	for _, itemID := range ownedIDs {
		seed := inbox.ItemSeed{ItemID: itemID}
		for _, part := range ownerGroups[itemID] {
			seed.Counterparts = append(seed.Counterparts, inbox.CounterpartSeed{
				UserID:   part.RenterID,
				LatestAt: part.LatestAt.Time,
			})
		}
		boot.Mine = append(boot.Mine, seed)
	}
	for _, g := range renterGroups {
		boot.Others = append(boot.Others, inbox.OtherSeed{
			ItemID:   g.ItemID,
			OwnerID:  g.OwnerID,
			LatestAt: g.LatestAt.Time,
		})
	}

	itemIDs := make([]string, 0, len(ownedIDs)+len(renterGroups))
	seen := make(map[string]bool)
	for _, id := range ownedIDs {
		if !seen[id] {
			seen[id] = true
			itemIDs = append(itemIDs, id)
		}
	}
	for _, g := range renterGroups {
		if g.ItemID != "" && !seen[g.ItemID] {
			seen[g.ItemID] = true
			itemIDs = append(itemIDs, g.ItemID)
		}
	}

	f.resolveMeta(ctx, itemIDs, boot.Items)
	if ctx.Err() != nil {
		// The inbox was torn down mid-fetch; the result must not seed
		// anything.
		return Bootstrap{}, ctx.Err()
	}
	return boot, nil
}

func (f *Fetcher) resolveMeta(ctx context.Context, itemIDs []string, out map[string]inbox.ItemMeta) {
	workers := f.MetaWorkers
	if workers <= 0 {
		workers = 4
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for _, itemID := range itemIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			meta := f.metaForItem(ctx, id)
			mu.Lock()
			out[id] = meta
			mu.Unlock()
		}(itemID)
	}
	wg.Wait()
}

func (f *Fetcher) metaForItem(ctx context.Context, itemID string) inbox.ItemMeta {
	item, err := f.Catalog.Get(ctx, itemID)
	if err != nil {
		if f.Logger != nil {
			f.Logger.Warn("item metadata lookup failed, using placeholder", "itemid", itemID, "error", err)
		}
		return inbox.ItemMeta{ID: itemID, Title: itemID, ImageURL: f.Images.URL("")}
	}
	return inbox.ItemMeta{ID: itemID, Title: item.Title, ImageURL: f.Images.URL(item.Image)}
}
