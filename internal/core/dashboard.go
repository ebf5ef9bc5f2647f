package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// DashboardStats is the headline view of the business.
type DashboardStats struct {
	TotalSales   float64 `json:"totalSales"`
	InvoiceCount int     `json:"invoiceCount"`
	LowStock     int     `json:"lowStock"`
	ExpiringSoon int     `json:"expiringSoon"`
	ProductCount int64   `json:"productCount"`
	PartyCount   int64   `json:"partyCount"`
}

// Dashboard aggregates sales and stock health. A product is low on stock
// below Billing.LowStockThreshold units and expiring soon when its expiry
// falls strictly between now and Billing.ExpiryWindowMonths from now.
// Products with an unreadable expiry are not counted as expiring.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	now := s.now()
	horizon := now.AddDate(0, s.cfg.Billing.ExpiryWindowMonths, 0)
	threshold := float64(s.cfg.Billing.LowStockThreshold)

	_, invoices, err := s.table(TableInvoices)
	if err != nil {
		return stats, err
	}
	sales := decimal.Zero
	err = invoices.Scan(ctx, func(rec Record) error {
		total, _ := ParseNumber(rec.Values["grandTotal"])
		sales = sales.Add(decimal.NewFromFloat(total))
		stats.InvoiceCount++
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan invoices: %w", err)
	}
	stats.TotalSales = sales.InexactFloat64()

	_, products, err := s.table(TableProducts)
	if err != nil {
		return stats, err
	}
	err = products.Scan(ctx, func(rec Record) error {
		p := ProductFromRecord(rec)
		stats.ProductCount++
		if p.Stock < threshold {
			stats.LowStock++
		}
		if exp, ok := ParseDate(p.Expiry); ok && exp.After(now) && exp.Before(horizon) {
			stats.ExpiringSoon++
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("scan products: %w", err)
	}

	_, parties, err := s.table(TableParties)
	if err != nil {
		return stats, err
	}
	if stats.PartyCount, err = parties.Count(ctx); err != nil {
		return stats, fmt.Errorf("count parties: %w", err)
	}

	return stats, nil
}
