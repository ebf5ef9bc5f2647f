package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/pharmadist/internal/logging"
)

// stockLookupLimit bounds the name scan used to find the batch an invoice
// line was sold from.
const stockLookupLimit = 1000

// CreateInvoice prices draft for its party, stores the invoice and draws the
// billed and free quantities from stock of the matching product batch.
// Lines whose product and batch are not in inventory are billed without a
// stock movement.
func (s *Service) CreateInvoice(ctx context.Context, draft InvoiceDraft) (Invoice, error) {
	if draft.PartyID == 0 {
		return Invoice{}, ErrNoParty
	}

	partyRec, err := s.GetRecord(ctx, TableParties, draft.PartyID)
	if err != nil {
		return Invoice{}, fmt.Errorf("load invoice party: %w", err)
	}
	party := PartyFromRecord(partyRec)

	company, err := s.Company(ctx)
	if err != nil {
		return Invoice{}, err
	}

	inv, err := BuildInvoice(party, company, draft, s.now())
	if err != nil {
		return Invoice{}, err
	}

	vals, err := ToValues(inv)
	if err != nil {
		return Invoice{}, err
	}
	_, invoices, err := s.table(TableInvoices)
	if err != nil {
		return Invoice{}, err
	}
	ids, err := invoices.BulkInsert(ctx, []Values{vals})
	if err != nil {
		return Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}
	inv.ID = ids[0]

	log := logging.WithFields(ctx, "invoice_no", inv.InvoiceNo, "party", inv.PartyName)
	if err := s.drawStocks(ctx, inv.Items); err != nil {
		return inv, err
	}
	log.Info("invoice created", "items", len(inv.Items), "grand_total", inv.GrandTotal)

	return inv, nil
}

// drawStocks draws every line of an invoice under stockMu, so concurrent
// invoices for one batch never overwrite each other's decrement. A failure
// leaves the invoice stored and the earlier lines drawn.
func (s *Service) drawStocks(ctx context.Context, items []InvoiceItem) error {
	s.stockMu.Lock()
	defer s.stockMu.Unlock()

	for _, item := range items {
		if err := s.drawStock(ctx, item); err != nil {
			return fmt.Errorf("update stock for %s/%s: %w", item.ProductName, item.Batch, err)
		}
	}
	return nil
}

// drawStock reduces the stock of the product whose name and batch match item
// exactly.
func (s *Service) drawStock(ctx context.Context, item InvoiceItem) error {
	_, products, err := s.table(TableProducts)
	if err != nil {
		return err
	}

	candidates, err := products.PrefixScan(ctx, FieldName, strings.ToLower(item.ProductName), stockLookupLimit)
	if err != nil {
		return err
	}
	for _, rec := range candidates {
		p := ProductFromRecord(rec)
		if p.Name != item.ProductName || p.Batch != item.Batch {
			continue
		}
		return products.Update(ctx, rec.ID, Values{
			FieldStock: p.Stock - (item.Qty + item.FreeQty),
		})
	}
	return nil
}

// GetInvoice fetches a stored invoice.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	rec, err := s.GetRecord(ctx, TableInvoices, id)
	if err != nil {
		return Invoice{}, err
	}
	var inv Invoice
	if err := FromRecord(rec, &inv); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}
