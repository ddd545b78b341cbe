package billing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shopledger/shopledger/internal/shared"
	"github.com/shopledger/shopledger/internal/stock"
)

type testProduct struct {
	Name     string
	SKU      string
	Price    float64
	Discount float64
	Stock    int
}

// memoryStore mimics the transactional repository: every WithTx call runs
// serialised against a snapshot and rolls back on error, matching the
// all-or-nothing contract of the SQL implementation.
type memoryStore struct {
	mu          sync.Mutex
	products    map[int64]*testProduct
	adjustments []stock.Adjustment
	invoices    map[int64]*Invoice
	nextInvID   int64
	nextNumber  int64
	nextAdjID   int64
}

func newMemoryStore(products map[int64]*testProduct) *memoryStore {
	return &memoryStore{products: products, invoices: map[int64]*Invoice{}}
}

func (m *memoryStore) snapshot() *memoryStore {
	copyProducts := make(map[int64]*testProduct, len(m.products))
	for id, p := range m.products {
		cp := *p
		copyProducts[id] = &cp
	}
	copyInvoices := make(map[int64]*Invoice, len(m.invoices))
	for id, inv := range m.invoices {
		ci := *inv
		ci.Lines = append([]Line(nil), inv.Lines...)
		copyInvoices[id] = &ci
	}
	return &memoryStore{
		products:    copyProducts,
		adjustments: append([]stock.Adjustment(nil), m.adjustments...),
		invoices:    copyInvoices,
		nextInvID:   m.nextInvID,
		nextNumber:  m.nextNumber,
		nextAdjID:   m.nextAdjID,
	}
}

func (m *memoryStore) restore(snap *memoryStore) {
	m.products = snap.products
	m.adjustments = snap.adjustments
	m.invoices = snap.invoices
	m.nextInvID = snap.nextInvID
	m.nextNumber = snap.nextNumber
	m.nextAdjID = snap.nextAdjID
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshot()
	committed := false
	// rollback also covers a panicking callback, like the deferred
	// tx.Rollback in the SQL implementation
	defer func() {
		if !committed {
			m.restore(snap)
		}
	}()
	if err := fn(ctx, &memoryTx{store: m}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (m *memoryStore) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return *inv, nil
}

func (m *memoryStore) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) NextNumber(ctx context.Context) (string, error) {
	t.store.nextNumber++
	return fmt.Sprintf("INV-%06d", t.store.nextNumber), nil
}

func (t *memoryTx) ProductSnapshot(ctx context.Context, productID int64) (ProductSnapshot, error) {
	p, ok := t.store.products[productID]
	if !ok {
		return ProductSnapshot{}, stock.ErrProductNotFound
	}
	return ProductSnapshot{Name: p.Name, SKU: p.SKU, UnitPrice: p.Price, DiscountPct: p.Discount}, nil
}

func (t *memoryTx) ApplyAdjustment(ctx context.Context, in stock.RecordInput) (stock.PostedAdjustment, error) {
	p, ok := t.store.products[in.ProductID]
	if !ok {
		return stock.PostedAdjustment{}, stock.ErrProductNotFound
	}
	next := p.Stock + in.QuantityChange
	if next < 0 {
		return stock.PostedAdjustment{}, &stock.InsufficientStockError{ProductID: in.ProductID, Requested: -in.QuantityChange, Available: p.Stock}
	}
	p.Stock = next
	t.store.nextAdjID++
	adj := stock.Adjustment{
		ID:             t.store.nextAdjID,
		ProductID:      in.ProductID,
		ActorID:        in.ActorID,
		QuantityChange: in.QuantityChange,
		Reason:         in.Reason,
		Note:           in.Note,
	}
	t.store.adjustments = append(t.store.adjustments, adj)
	return stock.PostedAdjustment{Adjustment: adj, StockAfter: next}, nil
}

func (t *memoryTx) InsertInvoice(ctx context.Context, inv *Invoice) error {
	t.store.nextInvID++
	inv.ID = t.store.nextInvID
	clone := *inv
	t.store.invoices[inv.ID] = &clone
	return nil
}

func (t *memoryTx) InsertLines(ctx context.Context, invoiceID int64, lines []Line) error {
	inv := t.store.invoices[invoiceID]
	inv.Lines = append([]Line(nil), lines...)
	return nil
}

func (t *memoryTx) InvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, ok := t.store.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return *inv, nil
}

func (t *memoryTx) SetStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	t.store.invoices[id].Status = status
	return nil
}

// memoryIdempotency is a map-backed IdempotencyPort.
type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: map[string]bool{}}
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func defaultRates() TaxRates {
	return TaxRates{CGSTPercent: 2.5, SGSTPercent: 2.5}
}

func TestIssueInvoiceComputesTotals(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Discount: 10, Stock: 10},
		2: {Name: "Sugar 1kg", SKU: "SUG-01", Price: 50, Discount: 0, Stock: 10},
	})
	svc := NewService(nil, store, nil, nil, nil, defaultRates())

	inv, err := svc.IssueInvoice(context.Background(), IssueInput{
		CustomerName: "Asha",
		ActorID:      3,
		Items: []IssueItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "INV-000001", inv.Number)
	require.Equal(t, StatusActive, inv.Status)
	require.InDelta(t, 230.0, inv.Subtotal, 0.001)
	require.InDelta(t, 5.75, inv.CGSTAmount, 0.001)
	require.InDelta(t, 5.75, inv.SGSTAmount, 0.001)
	require.InDelta(t, 241.50, inv.GrandTotal, 0.001)
	require.Len(t, inv.Lines, 2)
	require.Equal(t, "Masala Tea", inv.Lines[0].ProductName)
	require.Equal(t, "TEA-01", inv.Lines[0].ProductSKU)

	// one Sale adjustment per line, stock deducted
	require.Len(t, store.adjustments, 2)
	require.Equal(t, 8, store.products[1].Stock)
	require.Equal(t, 9, store.products[2].Stock)
}

func TestIssueInvoiceFreezesPrices(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Discount: 10, Stock: 10},
	})
	svc := NewService(nil, store, nil, nil, nil, defaultRates())

	inv, err := svc.IssueInvoice(context.Background(), IssueInput{
		CustomerName: "Asha",
		Items:        []IssueItem{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)

	// catalog edit after the sale
	store.products[1].Price = 500
	store.products[1].Discount = 0

	got, err := svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.InDelta(t, 100.0, got.Lines[0].UnitPrice, 0.001)
	require.InDelta(t, 10.0, got.Lines[0].DiscountPct, 0.001)
	require.InDelta(t, inv.GrandTotal, got.GrandTotal, 0.001)
}

func TestIssueInvoiceRejectsOversellWithoutSideEffects(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 5},
	})
	svc := NewService(nil, store, nil, nil, nil, defaultRates())

	_, err := svc.IssueInvoice(context.Background(), IssueInput{
		CustomerName: "Asha",
		Items:        []IssueItem{{ProductID: 1, Quantity: 6}},
	})
	var ise *stock.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Equal(t, 6, ise.Requested)
	require.Equal(t, 5, ise.Available)

	require.Empty(t, store.invoices)
	require.Empty(t, store.adjustments)
	require.Equal(t, 5, store.products[1].Stock)
}

func TestIssueInvoiceRollsBackEarlierLines(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 10},
		2: {Name: "Sugar 1kg", SKU: "SUG-01", Price: 50, Stock: 1},
	})
	svc := NewService(nil, store, nil, nil, nil, defaultRates())

	_, err := svc.IssueInvoice(context.Background(), IssueInput{
		CustomerName: "Asha",
		Items: []IssueItem{
			{ProductID: 1, Quantity: 4},
			{ProductID: 2, Quantity: 3},
		},
	})
	var ise *stock.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	require.Equal(t, int64(2), ise.ProductID)

	// the first line's deduction must have been rolled back
	require.Equal(t, 10, store.products[1].Stock)
	require.Equal(t, 1, store.products[2].Stock)
	require.Empty(t, store.adjustments)
	require.Empty(t, store.invoices)
}

func TestIssueInvoiceValidation(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 10},
	})
	svc := NewService(nil, store, nil, nil, nil, defaultRates())
	ctx := context.Background()

	_, err := svc.IssueInvoice(ctx, IssueInput{CustomerName: "  ", Items: []IssueItem{{ProductID: 1, Quantity: 1}}})
	require.ErrorIs(t, err, ErrCustomerNameRequired)

	_, err = svc.IssueInvoice(ctx, IssueInput{CustomerName: "Asha"})
	require.ErrorIs(t, err, ErrNoItems)

	_, err = svc.IssueInvoice(ctx, IssueInput{CustomerName: "Asha", Items: []IssueItem{{ProductID: 1, Quantity: 0}}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.IssueInvoice(ctx, IssueInput{CustomerName: "Asha", Items: []IssueItem{{ProductID: 42, Quantity: 1}}})
	require.ErrorIs(t, err, stock.ErrProductNotFound)
}

func TestConcurrentInvoicesNeverOversell(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 10},
	})
	svc := NewService(nil, store, nil, nil, nil, defaultRates())

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.IssueInvoice(context.Background(), IssueInput{
				CustomerName: "Asha",
				Items:        []IssueItem{{ProductID: 1, Quantity: 6}},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var failures, successes int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		failures++
		var ise *stock.InsufficientStockError
		require.ErrorAs(t, err, &ise)
	}
	require.Equal(t, 1, successes)
	require.Equal(t, 1, failures)
	require.Equal(t, 4, store.products[1].Stock)
}

func TestIssueInvoiceSequentialNumbers(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 100},
	})
	svc := NewService(nil, store, nil, nil, nil, defaultRates())
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		inv, err := svc.IssueInvoice(ctx, IssueInput{
			CustomerName: "Asha",
			Items:        []IssueItem{{ProductID: 1, Quantity: 1}},
		})
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("INV-%06d", i), inv.Number)
	}
}

func TestIssueInvoiceIdempotency(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 10},
	})
	idem := newMemoryIdempotency()
	svc := NewService(nil, store, nil, idem, nil, defaultRates())
	ctx := context.Background()

	input := IssueInput{
		CustomerName: "Asha",
		RequestID:    "6ba7b810-9dad-41d1-80b4-00c04fd430c8",
		Items:        []IssueItem{{ProductID: 1, Quantity: 2}},
	}
	_, err := svc.IssueInvoice(ctx, input)
	require.NoError(t, err)

	_, err = svc.IssueInvoice(ctx, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Equal(t, 8, store.products[1].Stock)
}

func TestIssueInvoiceRejectsMalformedRequestID(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 10},
	})
	svc := NewService(nil, store, nil, newMemoryIdempotency(), nil, defaultRates())

	_, err := svc.IssueInvoice(context.Background(), IssueInput{
		CustomerName: "Asha",
		RequestID:    "not-a-uuid",
		Items:        []IssueItem{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrBadRequestID)
	require.Equal(t, 10, store.products[1].Stock)
}

func TestIssueInvoiceIdempotencyKeyReleasedOnFailure(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 1},
	})
	idem := newMemoryIdempotency()
	svc := NewService(nil, store, nil, idem, nil, defaultRates())
	ctx := context.Background()

	input := IssueInput{
		CustomerName: "Asha",
		RequestID:    "6ba7b810-9dad-41d1-80b4-00c04fd430c8",
		Items:        []IssueItem{{ProductID: 1, Quantity: 5}},
	}
	_, err := svc.IssueInvoice(ctx, input)
	var ise *stock.InsufficientStockError
	require.ErrorAs(t, err, &ise)

	// a failed attempt must not poison the retry
	input.Items[0].Quantity = 1
	_, err = svc.IssueInvoice(ctx, input)
	require.NoError(t, err)
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 10},
	})

	require.Panics(t, func() {
		_ = store.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
			_, err := tx.ApplyAdjustment(ctx, stock.RecordInput{
				ProductID:      1,
				QuantityChange: -4,
				Reason:         stock.ReasonSale,
			})
			require.NoError(t, err)
			panic("handler crashed mid-transaction")
		})
	})

	// nothing from the aborted transaction survives
	require.Equal(t, 10, store.products[1].Stock)
	require.Empty(t, store.adjustments)
}

type failingAudit struct{}

func (failingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	return errors.New("audit store down")
}

func TestIssueInvoiceSurvivesAuditFailure(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 10},
	})
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(logger, store, failingAudit{}, nil, nil, defaultRates())

	inv, err := svc.IssueInvoice(context.Background(), IssueInput{
		CustomerName: "Asha",
		ActorID:      3,
		Items:        []IssueItem{{ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusActive, inv.Status)
	require.Equal(t, 8, store.products[1].Stock)
	require.Contains(t, buf.String(), "audit record failed")
}

func TestVoidInvoiceRestoresStock(t *testing.T) {
	store := newMemoryStore(map[int64]*testProduct{
		1: {Name: "Masala Tea", SKU: "TEA-01", Price: 100, Stock: 10},
	})
	svc := NewService(nil, store, nil, nil, nil, defaultRates())
	ctx := context.Background()

	inv, err := svc.IssueInvoice(ctx, IssueInput{
		CustomerName: "Asha",
		Items:        []IssueItem{{ProductID: 1, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 6, store.products[1].Stock)

	voided, err := svc.VoidInvoice(ctx, inv.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, voided.Status)
	require.Equal(t, 10, store.products[1].Stock)
	// totals keep their issue-time values
	require.InDelta(t, inv.GrandTotal, voided.GrandTotal, 0.001)

	// the restore is itself a ledger entry
	last := store.adjustments[len(store.adjustments)-1]
	require.Equal(t, stock.ReasonInvoiceVoid, last.Reason)
	require.Equal(t, 4, last.QuantityChange)

	_, err = svc.VoidInvoice(ctx, inv.ID, 9)
	require.ErrorIs(t, err, ErrAlreadyVoid)
}
