package flip

import (
	"context"
	"fmt"

	"github.com/kilianp07/flipnotify/core/model"
)

// enrich fills visibility data for flips likely to be admitted. Lookups
// are skipped in fast mode, when nothing needs them, and for flips below
// the minimum profit unless the profit itself depends on the lowest bin.
func (p *Processor) enrich(ctx context.Context, flips []*model.FlipInstance, s *model.FilterSettings) {
	if p.enricher == nil || s.FastMode || !s.NeedsVisibility() {
		return
	}
	for _, f := range flips {
		if !s.BasedOnLBin && s.MinProfit > f.Profit {
			continue
		}
		if err := p.fillVisibility(ctx, f, s); err != nil {
			p.log.Warnf("visibility for flip %d: %v", f.ID(), err)
			p.monitor.CaptureException(err, map[string]string{
				"stage":   "visibility",
				"auction": f.Auction().UUID,
			})
		}
	}
}

func (p *Processor) fillVisibility(ctx context.Context, f *model.FlipInstance, s *model.FilterSettings) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.enricher.FillVisibility(ctx, f, s)
}

// Lookup resolves the data shown by the visibility settings.
type Lookup interface {
	LowestBin(ctx context.Context, tag string) (int64, error)
	SellerName(ctx context.Context, sellerID string) (string, error)
}

// LookupEnricher implements Enricher on top of a Lookup.
type LookupEnricher struct {
	Lookup Lookup
}

// FillVisibility sets lowest bin and seller name as requested by s. With
// BasedOnLBin the profit is recomputed against the lowest bin.
func (l LookupEnricher) FillVisibility(ctx context.Context, f *model.FlipInstance, s *model.FilterSettings) error {
	if s.Visibility.LowestBin || s.BasedOnLBin {
		lbin, err := l.Lookup.LowestBin(ctx, f.Auction().Tag)
		if err != nil {
			return fmt.Errorf("lowest bin of %s: %w", f.Auction().Tag, err)
		}
		f.LowestBin = lbin
		f.ShowLowestBin = s.Visibility.LowestBin
		if s.BasedOnLBin && lbin > 0 {
			f.Profit = lbin - f.Cost
			if f.Cost > 0 {
				f.ProfitPercentage = float64(f.Profit) * 100 / float64(f.Cost)
			}
		}
	}
	if s.Visibility.Seller {
		name, err := l.Lookup.SellerName(ctx, f.Auction().Seller)
		if err != nil {
			return fmt.Errorf("seller name of %s: %w", f.Auction().Seller, err)
		}
		f.SellerName = name
		f.ShowSeller = true
	}
	return nil
}
