package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tiendapos/internal/dto"
	"tiendapos/internal/model"
	"tiendapos/internal/repository"
	"tiendapos/internal/worker"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SaleService interface {
	ProcessSale(ctx context.Context, userID uuid.UUID, userName string, req dto.CreateSaleRequest) (*dto.SaleResponse, error)
	AmendSale(ctx context.Context, userID uuid.UUID, userName string, saleID uuid.UUID, req dto.AmendSaleRequest) (*dto.SaleResponse, error)
	GetSale(ctx context.Context, userID, id uuid.UUID) (*dto.SaleResponse, error)
	ListSales(ctx context.Context, userID uuid.UUID, filter dto.SaleFilter) (*dto.SaleListResponse, error)
}

type saleService struct {
	repo         repository.SaleRepository
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	settingsRepo repository.TaxSettingsRepository
	dispatcher   *worker.Dispatcher
}

func NewSaleService(
	repo repository.SaleRepository,
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	settingsRepo repository.TaxSettingsRepository,
	dispatcher *worker.Dispatcher,
) SaleService {
	return &saleService{
		repo:         repo,
		productRepo:  productRepo,
		movementRepo: movementRepo,
		settingsRepo: settingsRepo,
		dispatcher:   dispatcher,
	}
}

const (
	txTimeout  = 15 * time.Second
	txAttempts = 3
	txBackoff  = 100 * time.Millisecond
)

// runTx executes fn inside a GORM transaction when db is available, or calls
// fn(nil) directly when db is nil (unit test mode with stub repositories).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// runTxRetry retries the transaction on serialization conflicts and deadlocks
// (bounded, with backoff). Transient connectivity failures surface as
// ErrStoreUnavailable after the attempts are exhausted.
func runTxRetry(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= txAttempts; attempt++ {
		err = runTx(ctx, db, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("retrying sale transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(txBackoff << (attempt - 1)):
		}
	}
	if isConnectionError(err) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return true
		}
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 — connection exceptions
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08"
	}
	return false
}

// ── ProcessSale ───────────────────────────────────────────────────────────────
// Converts a cart snapshot into a durable, stock-consistent sale. The whole
// read-validate-decrement-write sequence runs in ONE transaction:
//  1. re-read every product and validate stock — all-or-nothing, the first
//     failing line aborts before anything is written
//  2. persist the sale (status=completed, totals from tax settings)
//  3. conditionally decrement each product's stock (UPDATE … WHERE stock >= qty);
//     a rejected guard means a concurrent sale won the race — rollback
//  4. append one salida ledger entry per line with before/after snapshots
// After commit, the receipt job is enqueued best-effort: its failure never
// unwinds the sale.

func (s *saleService) ProcessSale(ctx context.Context, userID uuid.UUID, userName string, req dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyCart
	}
	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	var sale model.Sale
	txErr := runTxRetry(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		settings, err := s.settingsRepo.GetTx(orDB(tx, s.repo.DB()), userID)
		if err != nil {
			return err
		}

		// 1. Validate every line against live stock before touching anything.
		type resolvedLine struct {
			product *model.Product
			qty     int
		}
		resolved := make([]resolvedLine, 0, len(lines))
		subtotal := decimal.Zero
		for _, l := range lines {
			p, err := s.findProductTx(tx, userID, l.productID)
			if err != nil {
				return err
			}
			if p.Stock < l.qty {
				return &InsufficientStockError{ProductID: p.ID, Available: p.Stock, Requested: l.qty}
			}
			subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(l.qty))))
			resolved = append(resolved, resolvedLine{product: p, qty: l.qty})
		}

		tax := decimal.Zero
		if settings.Enabled {
			tax = subtotal.Mul(settings.Rate).Round(2)
		}

		// 2. Persist the sale first so ledger entries can reference it.
		sale = model.Sale{
			UserID:        userID,
			Subtotal:      subtotal,
			Tax:           tax,
			Total:         subtotal.Add(tax),
			PaymentMethod: req.PaymentMethod,
			Status:        model.SaleCompleted,
		}
		for _, r := range resolved {
			sale.Items = append(sale.Items, model.SaleItem{
				ProductID: r.product.ID,
				Name:      r.product.Name,
				Price:     r.product.Price,
				Quantity:  r.qty,
			})
		}
		if err := s.repo.CreateTx(tx, &sale); err != nil {
			return err
		}

		// 3+4. Conditional decrement plus ledger entry per line.
		reason := fmt.Sprintf("Venta #%s", sale.ShortID())
		for _, r := range resolved {
			newStock, ok, err := s.productRepo.DecrementStockTx(tx, userID, r.product.ID, r.qty)
			if err != nil {
				return err
			}
			if !ok {
				// A concurrent sale consumed the stock between our read and
				// the guarded write. Re-read so the error carries live numbers.
				avail := 0
				if fresh, err := s.productRepo.FindByIDTx(orDB(tx, s.repo.DB()), userID, r.product.ID); err == nil {
					avail = fresh.Stock
				}
				return &InsufficientStockError{ProductID: r.product.ID, Available: avail, Requested: r.qty}
			}
			// Snapshots come from the UPDATE's RETURNING, so they stay exact
			// even when another committed sale moved the stock after our read.
			mov := &model.StockMovement{
				UserID:        userID,
				ProductID:     r.product.ID,
				Type:          model.MovementSalida,
				Quantity:      -r.qty,
				Reason:        reason,
				UserName:      userName,
				PreviousStock: newStock + r.qty,
				NewStock:      newStock,
			}
			if err := s.movementRepo.CreateTx(tx, mov); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// Best-effort receipt — failure here must not unwind a committed sale.
	if s.dispatcher != nil && req.CustomerEmail != nil && *req.CustomerEmail != "" {
		if err := s.dispatcher.EnqueueReceipt(ctx, worker.ReceiptJob{
			SaleID: sale.ID.String(),
			UserID: userID.String(),
			Email:  *req.CustomerEmail,
		}); err != nil {
			log.Warn().Err(err).Str("sale_id", sale.ID.String()).Msg("receipt enqueue failed")
		}
	}

	return saleToResponse(&sale), nil
}

// ── AmendSale ─────────────────────────────────────────────────────────────────
// Changes a recorded sale's items and/or status while keeping stock correct,
// in one transaction:
//  1. load the sale
//  2. if it was completed, restore every original quantity into a delta map
//  3. completed/pending targets re-consume stock from the restored level
//     (validating restoredStock >= qty per product); cancelled keeps the
//     restoration as-is
//  4. apply non-zero deltas with a stock + delta >= 0 guard — a rejected
//     guard is a HARD error (StockInconsistencyError, rollback), never a
//     silent clamp to zero
//  5. rewrite items/totals/status; the original timestamp is preserved

func (s *saleService) AmendSale(ctx context.Context, userID uuid.UUID, userName string, saleID uuid.UUID, req dto.AmendSaleRequest) (*dto.SaleResponse, error) {
	if userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	var sale *model.Sale
	txErr := runTxRetry(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		sale, err = s.repo.FindByIDTx(orDB(tx, s.repo.DB()), userID, saleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSaleNotFound
			}
			return err
		}

		// Delta accumulation keeps product order stable so the resulting
		// ledger entries are deterministic.
		delta := make(map[uuid.UUID]int)
		var order []uuid.UUID
		accumulate := func(pid uuid.UUID, d int) {
			if _, seen := delta[pid]; !seen {
				order = append(order, pid)
			}
			delta[pid] += d
		}

		// 2. Full restoration of a completed sale's stock.
		if sale.Status == model.SaleCompleted {
			for _, item := range sale.Items {
				accumulate(item.ProductID, item.Quantity)
			}
		}

		// Original unit prices survive item edits; products new to the sale
		// take their current catalog price.
		priceOf := make(map[uuid.UUID]model.SaleItem, len(sale.Items))
		for _, item := range sale.Items {
			priceOf[item.ProductID] = item
		}

		newItems := make([]model.SaleItem, 0, len(lines))
		subtotal := decimal.Zero
		for _, l := range lines {
			p, err := s.findProductTx(tx, userID, l.productID)
			if err != nil {
				return err
			}
			// 3. Re-consume from the restored level when the target state
			// holds stock; a cancelled sale holds none.
			if req.Status == model.SaleCompleted || req.Status == model.SalePending {
				restored := p.Stock + delta[l.productID]
				if restored < l.qty {
					return &InsufficientStockError{ProductID: p.ID, Available: restored, Requested: l.qty}
				}
				accumulate(l.productID, -l.qty)
			}
			price := p.Price
			name := p.Name
			if orig, ok := priceOf[l.productID]; ok {
				price = orig.Price
				name = orig.Name
			}
			newItems = append(newItems, model.SaleItem{
				ProductID: p.ID,
				Name:      name,
				Price:     price,
				Quantity:  l.qty,
			})
			subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(l.qty))))
		}

		// 4. Apply the reconciled deltas and write the audit trail.
		reason := fmt.Sprintf("Ajuste venta #%s (%s)", sale.ShortID(), req.Status)
		for _, pid := range order {
			d := delta[pid]
			if d == 0 {
				continue
			}
			newStock, ok, err := s.productRepo.AdjustStockTx(tx, userID, pid, d)
			if err != nil {
				return err
			}
			if !ok {
				stock := 0
				if fresh, err := s.productRepo.FindByIDTx(orDB(tx, s.repo.DB()), userID, pid); err == nil {
					stock = fresh.Stock
				}
				log.Warn().
					Str("product_id", pid.String()).
					Int("stock", stock).
					Int("delta", d).
					Msg("amendment would drive stock negative — rolling back")
				return &StockInconsistencyError{ProductID: pid, Stock: stock, Delta: d}
			}
			movType := model.MovementEntrada
			if d < 0 {
				movType = model.MovementSalida
			}
			mov := &model.StockMovement{
				UserID:        userID,
				ProductID:     pid,
				Type:          movType,
				Quantity:      d,
				Reason:        reason,
				UserName:      userName,
				PreviousStock: newStock - d,
				NewStock:      newStock,
			}
			if err := s.movementRepo.CreateTx(tx, mov); err != nil {
				return err
			}
		}

		// 5. Rewrite the sale. Totals follow current tax settings.
		settings, err := s.settingsRepo.GetTx(orDB(tx, s.repo.DB()), userID)
		if err != nil {
			return err
		}
		tax := decimal.Zero
		if settings.Enabled {
			tax = subtotal.Mul(settings.Rate).Round(2)
		}
		sale.Items = newItems
		sale.Subtotal = subtotal
		sale.Tax = tax
		sale.Total = subtotal.Add(tax)
		sale.Status = req.Status
		return s.repo.UpdateAmendedTx(tx, sale)
	})
	if txErr != nil {
		return nil, txErr
	}
	return saleToResponse(sale), nil
}

func (s *saleService) GetSale(ctx context.Context, userID, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	return saleToResponse(sale), nil
}

// ListSales returns a paginated list of sales filtered by date and status.
func (s *saleService) ListSales(ctx context.Context, userID uuid.UUID, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	sales, total, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.SaleResponse, 0, len(sales))
	for i := range sales {
		items = append(items, *saleToResponse(&sales[i]))
	}
	return &dto.SaleListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type cartLine struct {
	productID uuid.UUID
	qty       int
}

// mergeLines collapses repeated product ids into single lines, preserving
// first-seen order.
func mergeLines(items []dto.SaleItemRequest) ([]cartLine, error) {
	idx := make(map[uuid.UUID]int, len(items))
	var lines []cartLine
	for _, item := range items {
		pid, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product_id inválido: %w", err)
		}
		if i, ok := idx[pid]; ok {
			lines[i].qty += item.Quantity
			continue
		}
		idx[pid] = len(lines)
		lines = append(lines, cartLine{productID: pid, qty: item.Quantity})
	}
	return lines, nil
}

// findProductTx loads an active, user-owned product inside the transaction,
// normalizing the repository's not-found into the domain error.
func (s *saleService) findProductTx(tx *gorm.DB, userID, id uuid.UUID) (*model.Product, error) {
	p, err := s.productRepo.FindByIDTx(orDB(tx, s.repo.DB()), userID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		return nil, err
	}
	if !p.Active {
		return nil, &ProductNotFoundError{ProductID: id}
	}
	return p, nil
}

// orDB picks the live transaction when one exists; stubs in unit tests pass a
// nil tx and a nil DB, and their repository fakes ignore the handle anyway.
func orDB(tx, db *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func saleToResponse(s *model.Sale) *dto.SaleResponse {
	items := make([]dto.SaleItemResponse, 0, len(s.Items))
	for _, item := range s.Items {
		items = append(items, dto.SaleItemResponse{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return &dto.SaleResponse{
		ID:            s.ID.String(),
		Items:         items,
		Subtotal:      s.Subtotal,
		Tax:           s.Tax,
		Total:         s.Total,
		PaymentMethod: s.PaymentMethod,
		Status:        s.Status,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
	}
}
