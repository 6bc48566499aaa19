package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tiendapos/internal/infra"
	"tiendapos/internal/model"
	"tiendapos/internal/repository"
)

// ReceiptWorker mails plain-text receipts for completed sales. Failures here
// never affect the sale itself — the job retries and eventually lands in the
// DLQ for manual resend.
type ReceiptWorker struct {
	saleRepo repository.SaleRepository
	mailer   *infra.Mailer
	cb       *infra.CircuitBreaker
}

func NewReceiptWorker(saleRepo repository.SaleRepository, mailer *infra.Mailer, cb *infra.CircuitBreaker) *ReceiptWorker {
	return &ReceiptWorker{saleRepo: saleRepo, mailer: mailer, cb: cb}
}

// Handle processes a single queued ReceiptJob.
func (w *ReceiptWorker) Handle(ctx context.Context, payload json.RawMessage) error {
	var job ReceiptJob
	if err := json.Unmarshal(payload, &job); err != nil {
		return fmt.Errorf("receipt: invalid payload: %w", err)
	}

	saleID, err := uuid.Parse(job.SaleID)
	if err != nil {
		return fmt.Errorf("receipt: invalid sale id %q: %w", job.SaleID, err)
	}
	userID, err := uuid.Parse(job.UserID)
	if err != nil {
		return fmt.Errorf("receipt: invalid user id %q: %w", job.UserID, err)
	}

	sale, err := w.saleRepo.FindByID(ctx, userID, saleID)
	if err != nil {
		return fmt.Errorf("receipt: failed to load sale %s: %w", job.SaleID, err)
	}

	subject := fmt.Sprintf("Recibo de compra — Venta #%s", sale.ShortID())
	body := renderReceipt(sale)

	err = w.cb.Execute(func() error {
		return w.mailer.SendReceipt(job.Email, subject, body)
	})
	if err != nil {
		return fmt.Errorf("receipt: send failed for sale %s: %w", job.SaleID, err)
	}

	log.Info().
		Str("sale_id", job.SaleID).
		Str("email", job.Email).
		Msg("receipt sent")
	return nil
}

// renderReceipt builds the plain-text receipt body.
func renderReceipt(sale *model.Sale) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Venta #%s\n", sale.ShortID())
	fmt.Fprintf(&b, "Fecha: %s\n", sale.CreatedAt.Format("02/01/2006 15:04"))
	fmt.Fprintf(&b, "Método de pago: %s\n\n", sale.PaymentMethod)

	for _, item := range sale.Items {
		lineTotal := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		fmt.Fprintf(&b, "%-30s %3d x %8s = %10s\n", item.Name, item.Quantity, "$"+item.Price.StringFixed(2), "$"+lineTotal.StringFixed(2))
	}

	fmt.Fprintf(&b, "\nSubtotal: $%s\n", sale.Subtotal.StringFixed(2))
	if !sale.Tax.IsZero() {
		fmt.Fprintf(&b, "Impuestos: $%s\n", sale.Tax.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total: $%s\n", sale.Total.StringFixed(2))
	fmt.Fprintf(&b, "\nGracias por su compra.\n")
	return b.String()
}
