package tests

import (
	"context"
	"testing"

	"tiendapos/internal/dto"
	"tiendapos/internal/model"
	"tiendapos/internal/repository"
	"tiendapos/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubSaleRepo is an in-memory SaleRepository for testing.
type stubSaleRepo struct {
	sales map[uuid.UUID]*model.Sale

	// failCodes injects one SQLSTATE per upcoming CreateTx call, consumed in
	// order; an empty string means that call succeeds. createCalls counts
	// attempts so tests can assert the retry behavior.
	failCodes   []string
	createCalls int
}

func newStubSaleRepo() *stubSaleRepo {
	return &stubSaleRepo{sales: make(map[uuid.UUID]*model.Sale)}
}

func (r *stubSaleRepo) CreateTx(_ *gorm.DB, s *model.Sale) error {
	r.createCalls++
	if len(r.failCodes) > 0 {
		code := r.failCodes[0]
		r.failCodes = r.failCodes[1:]
		if code != "" {
			return &pgconn.PgError{Code: code, Message: "fallo inyectado"}
		}
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	for i := range s.Items {
		if s.Items[i].ID == uuid.Nil {
			s.Items[i].ID = uuid.New()
		}
		s.Items[i].SaleID = s.ID
	}
	stored := *s
	stored.Items = append([]model.SaleItem(nil), s.Items...)
	r.sales[s.ID] = &stored
	return nil
}

func (r *stubSaleRepo) find(userID, id uuid.UUID) (*model.Sale, error) {
	s, ok := r.sales[id]
	if !ok || s.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	out := *s
	out.Items = append([]model.SaleItem(nil), s.Items...)
	return &out, nil
}

func (r *stubSaleRepo) FindByID(_ context.Context, userID, id uuid.UUID) (*model.Sale, error) {
	return r.find(userID, id)
}

func (r *stubSaleRepo) FindByIDTx(_ *gorm.DB, userID, id uuid.UUID) (*model.Sale, error) {
	return r.find(userID, id)
}

func (r *stubSaleRepo) UpdateAmendedTx(_ *gorm.DB, s *model.Sale) error {
	stored, ok := r.sales[s.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for i := range s.Items {
		s.Items[i].SaleID = s.ID
		if s.Items[i].ID == uuid.Nil {
			s.Items[i].ID = uuid.New()
		}
	}
	stored.Items = append([]model.SaleItem(nil), s.Items...)
	stored.Subtotal = s.Subtotal
	stored.Tax = s.Tax
	stored.Total = s.Total
	stored.Status = s.Status
	// CreatedAt deliberately untouched.
	return nil
}

func (r *stubSaleRepo) List(_ context.Context, userID uuid.UUID, filter dto.SaleFilter) ([]model.Sale, int64, error) {
	var result []model.Sale
	for _, s := range r.sales {
		if s.UserID != userID {
			continue
		}
		if filter.Status != "" && filter.Status != "all" && s.Status != filter.Status {
			continue
		}
		result = append(result, *s)
	}
	return result, int64(len(result)), nil
}

func (r *stubSaleRepo) DB() *gorm.DB { return nil }

var _ repository.SaleRepository = (*stubSaleRepo)(nil)

// stubSettingsRepo returns fixed tax settings.
type stubSettingsRepo struct {
	settings *model.TaxSettings
}

func (r *stubSettingsRepo) Get(_ context.Context, userID uuid.UUID) (*model.TaxSettings, error) {
	return r.GetTx(nil, userID)
}

func (r *stubSettingsRepo) GetTx(_ *gorm.DB, userID uuid.UUID) (*model.TaxSettings, error) {
	if r.settings != nil {
		return r.settings, nil
	}
	return &model.TaxSettings{UserID: userID, Enabled: false, Rate: decimal.Zero, Name: "IVA"}, nil
}

func (r *stubSettingsRepo) Upsert(_ context.Context, s *model.TaxSettings) error {
	r.settings = s
	return nil
}

var _ repository.TaxSettingsRepository = (*stubSettingsRepo)(nil)

// ── SaleService factory for tests ────────────────────────────────────────────

type saleFixture struct {
	svc          service.SaleService
	saleRepo     *stubSaleRepo
	productRepo  *stubProductRepo
	movementRepo *stubMovementRepo
	settingsRepo *stubSettingsRepo
	userID       uuid.UUID
}

func buildSaleSvc() *saleFixture {
	f := &saleFixture{
		saleRepo:     newStubSaleRepo(),
		productRepo:  newStubProductRepo(),
		movementRepo: &stubMovementRepo{},
		settingsRepo: &stubSettingsRepo{},
		userID:       uuid.New(),
	}
	f.svc = service.NewSaleService(f.saleRepo, f.productRepo, f.movementRepo, f.settingsRepo, nil)
	return f
}

func line(p *model.Product, qty int) dto.SaleItemRequest {
	return dto.SaleItemRequest{ProductID: p.ID.String(), Quantity: qty}
}

// ── ProcessSale tests ─────────────────────────────────────────────────────────

func TestProcessSale_HappyPath(t *testing.T) {
	f := buildSaleSvc()
	cola := seedProduct(f.productRepo, f.userID, "Coca Cola 600ml", 25.00, 10)
	pan := seedProduct(f.productRepo, f.userID, "Pan Blanco", 42.00, 5)

	resp, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(cola, 2), line(pan, 1)},
		PaymentMethod: model.PaymentEfectivo,
	})
	require.NoError(t, err)

	assert.Equal(t, model.SaleCompleted, resp.Status)
	assert.Equal(t, "92", resp.Subtotal.String()) // 2×25 + 1×42
	assert.True(t, resp.Tax.IsZero())
	assert.Equal(t, resp.Subtotal.Add(resp.Tax).String(), resp.Total.String())
	require.Len(t, resp.Items, 2)

	// Stock decremented
	assert.Equal(t, 8, f.productRepo.products[cola.ID].Stock)
	assert.Equal(t, 4, f.productRepo.products[pan.ID].Stock)

	// One salida ledger entry per line, negative quantity, chained snapshots
	require.Len(t, f.movementRepo.movements, 2)
	for _, mov := range f.movementRepo.movements {
		assert.Equal(t, model.MovementSalida, mov.Type)
		assert.Negative(t, mov.Quantity)
		assert.Equal(t, mov.PreviousStock+mov.Quantity, mov.NewStock)
		assert.Contains(t, mov.Reason, "Venta #")
		assert.Equal(t, "Ana", mov.UserName)
	}
}

func TestProcessSale_TaxApplied(t *testing.T) {
	f := buildSaleSvc()
	f.settingsRepo.settings = &model.TaxSettings{
		UserID:  f.userID,
		Enabled: true,
		Rate:    decimal.NewFromFloat(0.16),
		Name:    "IVA",
	}
	p := seedProduct(f.productRepo, f.userID, "Queso 400g", 100.00, 10)

	resp, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(p, 3)},
		PaymentMethod: model.PaymentTarjeta,
	})
	require.NoError(t, err)
	assert.Equal(t, "300", resp.Subtotal.String())
	assert.Equal(t, "48", resp.Tax.String()) // 300 × 0.16
	assert.Equal(t, "348", resp.Total.String())
}

func TestProcessSale_EmptyCart(t *testing.T) {
	f := buildSaleSvc()
	_, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		PaymentMethod: model.PaymentEfectivo,
	})
	assert.ErrorIs(t, err, service.ErrEmptyCart)
}

func TestProcessSale_NotAuthenticated(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Galletas", 15.00, 10)

	_, err := f.svc.ProcessSale(context.Background(), uuid.Nil, "", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(p, 1)},
		PaymentMethod: model.PaymentEfectivo,
	})
	assert.ErrorIs(t, err, service.ErrNotAuthenticated)
}

func TestProcessSale_AllOrNothing(t *testing.T) {
	f := buildSaleSvc()
	ok := seedProduct(f.productRepo, f.userID, "Jugo 1L", 30.00, 20)
	scarce := seedProduct(f.productRepo, f.userID, "Vino Reserva", 500.00, 2)

	var insufficient *service.InsufficientStockError
	_, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(ok, 5), line(scarce, 3)}, // 3 > 2
		PaymentMethod: model.PaymentEfectivo,
	})
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, scarce.ID, insufficient.ProductID)
	assert.Equal(t, 2, insufficient.Available)
	assert.Equal(t, 3, insufficient.Requested)

	// The valid line must not have been applied either.
	assert.Equal(t, 20, f.productRepo.products[ok.ID].Stock)
	assert.Empty(t, f.saleRepo.sales)
	assert.Empty(t, f.movementRepo.movements)
}

func TestProcessSale_UnknownProduct(t *testing.T) {
	f := buildSaleSvc()

	var notFound *service.ProductNotFoundError
	_, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{{ProductID: uuid.New().String(), Quantity: 1}},
		PaymentMethod: model.PaymentEfectivo,
	})
	assert.ErrorAs(t, err, &notFound)
}

func TestProcessSale_InactiveProductRejected(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Descontinuado", 10.00, 50)
	p.Active = false

	var notFound *service.ProductNotFoundError
	_, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(p, 1)},
		PaymentMethod: model.PaymentEfectivo,
	})
	assert.ErrorAs(t, err, &notFound)
}

func TestProcessSale_MergesDuplicateLines(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Chicles", 5.00, 10)

	resp, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(p, 2), line(p, 3)},
		PaymentMethod: model.PaymentEfectivo,
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 5, resp.Items[0].Quantity)
	assert.Equal(t, 5, f.productRepo.products[p.ID].Stock)
	assert.Len(t, f.movementRepo.movements, 1)
}

func TestProcessSale_ConcurrentWriterWinsRace(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Oferta Flash", 99.00, 5)
	// The validation read sees 5 units, but the guarded decrement is rejected
	// as if another sale committed in between.
	f.productRepo.rejectDecrement = true

	var insufficient *service.InsufficientStockError
	_, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(p, 2)},
		PaymentMethod: model.PaymentEfectivo,
	})
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, p.ID, insufficient.ProductID)
	assert.Empty(t, f.movementRepo.movements)
}

func TestProcessSale_RetriesSerializationConflict(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Mate Cocido", 14.00, 10)
	// First attempt collides (40001 serialization_failure), second succeeds.
	f.saleRepo.failCodes = []string{"40001"}

	resp, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(p, 2)},
		PaymentMethod: model.PaymentEfectivo,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, f.saleRepo.createCalls)

	// The retry re-ran the whole transaction exactly once more: a single
	// sale, a single decrement, a single ledger entry.
	assert.Len(t, f.saleRepo.sales, 1)
	assert.Equal(t, 8, f.productRepo.products[p.ID].Stock)
	assert.Len(t, f.movementRepo.movements, 1)
	assert.Equal(t, model.SaleCompleted, resp.Status)
}

func TestProcessSale_ConnectionFailureIsStoreUnavailable(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Fosforos", 4.00, 10)
	// Class 08 on every attempt: the pipeline retries with backoff, then
	// surfaces the sentinel so the handler can answer 503.
	f.saleRepo.failCodes = []string{"08006", "08006", "08006"}

	_, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         []dto.SaleItemRequest{line(p, 1)},
		PaymentMethod: model.PaymentEfectivo,
	})
	require.ErrorIs(t, err, service.ErrStoreUnavailable)
	assert.Equal(t, 3, f.saleRepo.createCalls)

	// Nothing committed.
	assert.Empty(t, f.saleRepo.sales)
	assert.Equal(t, 10, f.productRepo.products[p.ID].Stock)
	assert.Empty(t, f.movementRepo.movements)
}

func TestProcessSale_SnapshotsTrackGuardedWrite(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Yerba 1kg", 50.00, 10)

	// Between the validation read (sees 10) and the guarded decrement,
	// another committed sale drains four units. The guard still passes
	// (6 >= 3) and the ledger snapshots must reflect the live row, not the
	// stale read.
	f.productRepo.afterFind = func() {
		drained := *p
		drained.Stock = 6
		f.productRepo.products[p.ID] = &drained
	}

	_ = processSale(t, f, line(p, 3))

	require.Len(t, f.movementRepo.movements, 1)
	mov := f.movementRepo.movements[0]
	assert.Equal(t, 6, mov.PreviousStock)
	assert.Equal(t, 3, mov.NewStock)
	assert.Equal(t, 3, f.productRepo.products[p.ID].Stock)
}

// ── AmendSale tests ───────────────────────────────────────────────────────────

func processSale(t *testing.T, f *saleFixture, items ...dto.SaleItemRequest) *dto.SaleResponse {
	t.Helper()
	resp, err := f.svc.ProcessSale(context.Background(), f.userID, "Ana", dto.CreateSaleRequest{
		Items:         items,
		PaymentMethod: model.PaymentEfectivo,
	})
	require.NoError(t, err)
	return resp
}

func TestAmendSale_ReduceQuantityRestoresStock(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Cerveza 355ml", 20.00, 10)
	sale := processSale(t, f, line(p, 6))
	require.Equal(t, 4, f.productRepo.products[p.ID].Stock)

	resp, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", uuid.MustParse(sale.ID), dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(p, 2)},
		Status: model.SaleCompleted,
	})
	require.NoError(t, err)

	// 10 - 2: four units returned to the shelf.
	assert.Equal(t, 8, f.productRepo.products[p.ID].Stock)
	assert.Equal(t, "40", resp.Subtotal.String())

	// The reconciliation appended an entrada of +4.
	last := f.movementRepo.movements[len(f.movementRepo.movements)-1]
	assert.Equal(t, model.MovementEntrada, last.Type)
	assert.Equal(t, 4, last.Quantity)
	assert.Contains(t, last.Reason, "Ajuste venta #")
}

func TestAmendSale_CancelRestoresEverything(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Yogurt 1L", 32.00, 7)
	sale := processSale(t, f, line(p, 3))
	require.Equal(t, 4, f.productRepo.products[p.ID].Stock)

	resp, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", uuid.MustParse(sale.ID), dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(p, 3)},
		Status: model.SaleCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SaleCancelled, resp.Status)
	assert.Equal(t, 7, f.productRepo.products[p.ID].Stock)
}

func TestAmendSale_CancelThenCompleteRoundTrip(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Cereal 500g", 48.00, 12)
	sale := processSale(t, f, line(p, 4))
	saleID := uuid.MustParse(sale.ID)
	require.Equal(t, 8, f.productRepo.products[p.ID].Stock)

	_, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", saleID, dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(p, 4)},
		Status: model.SaleCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, f.productRepo.products[p.ID].Stock)

	resp, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", saleID, dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(p, 4)},
		Status: model.SaleCompleted,
	})
	require.NoError(t, err)

	// Net effect of the round trip is zero.
	assert.Equal(t, model.SaleCompleted, resp.Status)
	assert.Equal(t, 8, f.productRepo.products[p.ID].Stock)
}

func TestAmendSale_PreservesOriginalPrices(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Chocolate 100g", 35.00, 20)
	sale := processSale(t, f, line(p, 2))

	// Catalog price changes after the sale.
	f.productRepo.products[p.ID].Price = decimal.NewFromFloat(50.00)

	resp, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", uuid.MustParse(sale.ID), dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(p, 3)},
		Status: model.SaleCompleted,
	})
	require.NoError(t, err)

	// The product was already on the sale: its original unit price survives.
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "35", resp.Items[0].Price.String())
	assert.Equal(t, "105", resp.Subtotal.String())
}

func TestAmendSale_NewProductTakesCurrentPrice(t *testing.T) {
	f := buildSaleSvc()
	original := seedProduct(f.productRepo, f.userID, "Te Verde", 40.00, 10)
	added := seedProduct(f.productRepo, f.userID, "Miel 250g", 60.00, 10)
	sale := processSale(t, f, line(original, 1))

	resp, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", uuid.MustParse(sale.ID), dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(original, 1), line(added, 2)},
		Status: model.SaleCompleted,
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "160", resp.Subtotal.String()) // 40 + 2×60
	assert.Equal(t, 8, f.productRepo.products[added.ID].Stock)
}

func TestAmendSale_InsufficientStockForIncrease(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Edicion Limitada", 200.00, 5)
	sale := processSale(t, f, line(p, 3)) // stock now 2

	// New quantity 9 > restored level 2+3=5.
	var insufficient *service.InsufficientStockError
	_, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", uuid.MustParse(sale.ID), dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(p, 9)},
		Status: model.SaleCompleted,
	})
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Available)
	assert.Equal(t, 9, insufficient.Requested)

	// Rolled back: stock and sale unchanged.
	assert.Equal(t, 2, f.productRepo.products[p.ID].Stock)
	stored, err := f.saleRepo.FindByID(context.Background(), f.userID, uuid.MustParse(sale.ID))
	require.NoError(t, err)
	assert.Equal(t, model.SaleCompleted, stored.Status)
	assert.Equal(t, 3, stored.Items[0].Quantity)
}

func TestAmendSale_StockInconsistencyIsHardError(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Conservas", 70.00, 10)
	sale := processSale(t, f, line(p, 2))

	// Simulate the guard rejecting the reconciliation delta: the validation
	// passed on the earlier read, then a concurrent writer moved the stock.
	f.productRepo.rejectAdjust = true

	var inconsistent *service.StockInconsistencyError
	_, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", uuid.MustParse(sale.ID), dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(p, 1)},
		Status: model.SaleCompleted,
	})
	require.ErrorAs(t, err, &inconsistent)
	assert.Equal(t, p.ID, inconsistent.ProductID)
}

func TestAmendSale_NotFound(t *testing.T) {
	f := buildSaleSvc()
	_, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", uuid.New(), dto.AmendSaleRequest{
		Status: model.SaleCancelled,
	})
	assert.ErrorIs(t, err, service.ErrSaleNotFound)
}

func TestAmendSale_OtherUserSaleInvisible(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Privado", 10.00, 5)
	sale := processSale(t, f, line(p, 1))

	intruder := uuid.New()
	_, err := f.svc.AmendSale(context.Background(), intruder, "Eve", uuid.MustParse(sale.ID), dto.AmendSaleRequest{
		Status: model.SaleCancelled,
	})
	assert.ErrorIs(t, err, service.ErrSaleNotFound)
}

// ── Read path tests ───────────────────────────────────────────────────────────

func TestGetSale(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Snack", 12.00, 9)
	sale := processSale(t, f, line(p, 2))

	resp, err := f.svc.GetSale(context.Background(), f.userID, uuid.MustParse(sale.ID))
	require.NoError(t, err)
	assert.Equal(t, sale.ID, resp.ID)
	assert.Equal(t, sale.Total.String(), resp.Total.String())
}

func TestListSales_StatusFilter(t *testing.T) {
	f := buildSaleSvc()
	p := seedProduct(f.productRepo, f.userID, "Refresco", 18.00, 50)

	s1 := processSale(t, f, line(p, 1))
	processSale(t, f, line(p, 2))

	_, err := f.svc.AmendSale(context.Background(), f.userID, "Ana", uuid.MustParse(s1.ID), dto.AmendSaleRequest{
		Items:  []dto.SaleItemRequest{line(p, 1)},
		Status: model.SaleCancelled,
	})
	require.NoError(t, err)

	completed, err := f.svc.ListSales(context.Background(), f.userID, dto.SaleFilter{Status: model.SaleCompleted})
	require.NoError(t, err)
	assert.Len(t, completed.Data, 1)

	all, err := f.svc.ListSales(context.Background(), f.userID, dto.SaleFilter{Status: "all"})
	require.NoError(t, err)
	assert.Len(t, all.Data, 2)
}
