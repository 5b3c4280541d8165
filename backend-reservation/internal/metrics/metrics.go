package metrics

import (
	"context"
	"sync"

	"github.com/prohmpiriya/seat-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Seat hold counters
	HoldsClaimed   *telemetry.Counter
	HoldsContended *telemetry.Counter
	HoldsReleased  *telemetry.Counter

	// Checkout counters
	PaymentsStarted    *telemetry.Counter
	PaymentsCaptured   *telemetry.Counter
	PaymentsAborted    *telemetry.Counter
	DuplicateCaptures  *telemetry.Counter
	PaymentsRefunded   *telemetry.Counter
	TicketsTransferred *telemetry.Counter

	// Histograms
	CaptureDuration *telemetry.Histogram

	initOnce sync.Once
	initErr  error
)

// Init initializes all reservation metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	counters := []struct {
		dst  **telemetry.Counter
		opts telemetry.MetricOpts
	}{
		{&HoldsClaimed, telemetry.MetricOpts{Name: "seat_holds_claimed_total", Description: "Seat holds acquired", Unit: "1"}},
		{&HoldsContended, telemetry.MetricOpts{Name: "seat_holds_contended_total", Description: "Seat claims lost to another buyer", Unit: "1"}},
		{&HoldsReleased, telemetry.MetricOpts{Name: "seat_holds_released_total", Description: "Seat holds released", Unit: "1"}},
		{&PaymentsStarted, telemetry.MetricOpts{Name: "payments_started_total", Description: "Charges created for carts", Unit: "1"}},
		{&PaymentsCaptured, telemetry.MetricOpts{Name: "payments_captured_total", Description: "Charges captured and tickets sold", Unit: "1"}},
		{&PaymentsAborted, telemetry.MetricOpts{Name: "payments_aborted_total", Description: "Charges cancelled before capture", Unit: "1"}},
		{&DuplicateCaptures, telemetry.MetricOpts{Name: "payments_duplicate_captures_total", Description: "Capture callbacks rejected as duplicates", Unit: "1"}},
		{&PaymentsRefunded, telemetry.MetricOpts{Name: "payments_refunded_total", Description: "Captured charges refunded after a failed sale", Unit: "1"}},
		{&TicketsTransferred, telemetry.MetricOpts{Name: "tickets_transferred_total", Description: "Tickets moved to another owner", Unit: "1"}},
	}
	for _, c := range counters {
		counter, err := telemetry.NewCounter(c.opts)
		if err != nil {
			return err
		}
		*c.dst = counter
	}

	var err error
	CaptureDuration, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "payment_capture_duration_seconds",
		Description: "Time from capture callback to committed sale",
		Unit:        "s",
	})
	return err
}

// RecordClaim records the outcome of one seat claim
func RecordClaim(ctx context.Context, ok bool) {
	if ok {
		HoldsClaimed.Inc(ctx)
		return
	}
	HoldsContended.Inc(ctx)
}

// RecordRelease records released holds
func RecordRelease(ctx context.Context, n int) {
	HoldsReleased.Add(ctx, int64(n))
}

// RecordPaymentStarted records a created charge
func RecordPaymentStarted(ctx context.Context, seatSaleID string) {
	PaymentsStarted.Inc(ctx, attribute.String("seat_sale_id", seatSaleID))
}

// RecordCapture records a committed sale
func RecordCapture(ctx context.Context, seatSaleID string, tickets int, durationSeconds float64) {
	PaymentsCaptured.Inc(ctx,
		attribute.String("seat_sale_id", seatSaleID),
		attribute.Int("tickets", tickets),
	)
	CaptureDuration.Record(ctx, durationSeconds, attribute.String("seat_sale_id", seatSaleID))
}

// RecordDuplicateCapture records a rejected replay
func RecordDuplicateCapture(ctx context.Context) {
	DuplicateCaptures.Inc(ctx)
}

// RecordRefund records a captured charge returned to the buyer
func RecordRefund(ctx context.Context) {
	PaymentsRefunded.Inc(ctx)
}

// RecordAbort records a cancelled charge
func RecordAbort(ctx context.Context) {
	PaymentsAborted.Inc(ctx)
}

// RecordTransfer records tickets changing owner
func RecordTransfer(ctx context.Context, kind string, n int) {
	TicketsTransferred.Add(ctx, int64(n), attribute.String("kind", kind))
}
