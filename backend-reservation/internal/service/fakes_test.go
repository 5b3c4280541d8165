package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/domain"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/gateway"
	"github.com/prohmpiriya/seat-rush/backend-reservation/internal/repository"
	pkgredis "github.com/prohmpiriya/seat-rush/pkg/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// MockEventPublisher is a mock implementation of EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event *domain.TicketEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	return nil
}

// memoryTicketRepository mirrors the guarded writes of the Postgres store
type memoryTicketRepository struct {
	mu       sync.Mutex
	tickets  map[string]*domain.Ticket
	reserves map[string]*domain.TicketReserve
	orders   map[string]*domain.Order
	// sellErr fails SellTickets after the guards pass
	sellErr error
}

func newMemoryTicketRepository(tickets ...*domain.Ticket) *memoryTicketRepository {
	r := &memoryTicketRepository{
		tickets:  make(map[string]*domain.Ticket),
		reserves: make(map[string]*domain.TicketReserve),
		orders:   make(map[string]*domain.Order),
	}
	for _, t := range tickets {
		r.tickets[t.ID] = t
	}
	return r
}

func (r *memoryTicketRepository) get(id string) *domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tickets[id]; ok {
		c := *t
		return &c
	}
	return nil
}

func (r *memoryTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if t := r.get(id); t != nil {
		return t, nil
	}
	return nil, domain.ErrTicketNotFound
}

func (r *memoryTicketRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Ticket, error) {
	var out []*domain.Ticket
	for _, id := range ids {
		if t := r.get(id); t != nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryTicketRepository) GetByTransferToken(ctx context.Context, token string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.TransferToken != "" && t.TransferToken == token {
			c := *t
			return &c, nil
		}
	}
	return nil, domain.ErrTransferTokenNotFound
}

func (r *memoryTicketRepository) GetByUnitID(ctx context.Context, unitID string) ([]*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Ticket
	for _, t := range r.tickets {
		if t.SeatUnitID == unitID {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryTicketRepository) GetCurrentReserve(ctx context.Context, ticketID string) (*domain.TicketReserve, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.reserves {
		if res.TicketID == ticketID && res.Current() {
			c := *res
			return &c, nil
		}
	}
	return nil, domain.ErrTicketNotSold
}

func (r *memoryTicketRepository) GetOrderByChargeID(ctx context.Context, chargeID string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ChargeID != "" && o.ChargeID == chargeID {
			return o, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}

func (r *memoryTicketRepository) UpdateStatus(ctx context.Context, ids []string, tr domain.TicketTransition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		t, ok := r.tickets[id]
		if !ok || t.HasOwner() || !tr.Allows(t.Status) {
			return domain.ErrTransferConflict
		}
	}
	for _, id := range ids {
		r.tickets[id].Status = tr.Target()
	}
	return nil
}

func (r *memoryTicketRepository) SellTickets(ctx context.Context, p repository.SaleParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if p.Order.ChargeID != "" && o.ChargeID == p.Order.ChargeID {
			return domain.ErrDuplicateCapture
		}
	}
	for _, res := range p.Reserves {
		t, ok := r.tickets[res.TicketID]
		if !ok || t.HasOwner() || !p.Transition.Allows(t.Status) {
			return fmt.Errorf("ticket %s: %w", res.TicketID, domain.ErrTransferConflict)
		}
	}
	if r.sellErr != nil {
		return r.sellErr
	}
	r.orders[p.Order.ID] = p.Order
	for _, res := range p.Reserves {
		t := r.tickets[res.TicketID]
		t.Status = p.Transition.Target()
		t.UserID = p.Order.UserID
		t.AdmissionCode = p.AdmissionCodes[res.TicketID]
		t.TransferToken = ""
		r.reserves[res.ID] = res
	}
	return nil
}

func (r *memoryTicketRepository) IssueTransferToken(ctx context.Context, ticketID, ownerID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[ticketID]
	if !ok || t.UserID != ownerID || t.Status != domain.TicketSold || t.TransferToken != "" || t.AdmissionStarted {
		return domain.ErrTransferConflict
	}
	t.TransferToken = token
	return nil
}

func (r *memoryTicketRepository) CancelTransferToken(ctx context.Context, ticketID, ownerID, token, admissionCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[ticketID]
	if !ok || t.UserID != ownerID || t.TransferToken != token {
		return domain.ErrTransferConflict
	}
	t.TransferToken = ""
	t.AdmissionCode = admissionCode
	return nil
}

func (r *memoryTicketRepository) ApplyTransfer(ctx context.Context, p repository.TransferParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prior, ok := r.reserves[p.PriorReserveID]
	if !ok || !prior.Current() {
		return domain.ErrTransferConflict
	}
	t, ok := r.tickets[p.TicketID]
	if !ok || t.UserID != p.FromUserID || t.TransferToken != p.TransferToken || t.Status != domain.TicketSold || t.AdmissionStarted {
		return domain.ErrTransferConflict
	}
	at := p.Order.OrderedAt
	prior.TransferToReserveID = p.Reserve.ID
	prior.TransferredAt = &at
	r.orders[p.Order.ID] = p.Order
	r.reserves[p.Reserve.ID] = p.Reserve
	t.UserID = p.Order.UserID
	t.TransferToken = ""
	t.AdmissionCode = p.AdmissionCode
	return nil
}

func (r *memoryTicketRepository) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

// memoryCatalog is a fixed catalog
type memoryCatalog struct {
	sales     map[string]*domain.SeatSale
	seatTypes map[string]*domain.SeatType
	options   map[string]*domain.SeatTypeOption
	areas     map[string]*domain.SeatArea
	coupons   map[string]*domain.Coupon
	grants    map[string]bool
	campaigns map[string]*domain.Campaign
}

func (c *memoryCatalog) GetSeatSale(ctx context.Context, id string) (*domain.SeatSale, error) {
	if s, ok := c.sales[id]; ok {
		return s, nil
	}
	return nil, domain.ErrSeatSaleNotFound
}

func (c *memoryCatalog) GetSeatTypes(ctx context.Context, ids []string) (map[string]*domain.SeatType, error) {
	out := make(map[string]*domain.SeatType)
	for _, id := range ids {
		if st, ok := c.seatTypes[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

func (c *memoryCatalog) GetSeatTypeOptions(ctx context.Context, ids []string) (map[string]*domain.SeatTypeOption, error) {
	out := make(map[string]*domain.SeatTypeOption)
	for _, id := range ids {
		if o, ok := c.options[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func (c *memoryCatalog) GetSeatAreas(ctx context.Context, ids []string) (map[string]*domain.SeatArea, error) {
	out := make(map[string]*domain.SeatArea)
	for _, id := range ids {
		if a, ok := c.areas[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (c *memoryCatalog) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	if cp, ok := c.coupons[id]; ok {
		return cp, nil
	}
	return nil, domain.ErrCouponNotFound
}

func (c *memoryCatalog) IsCouponUsableByUser(ctx context.Context, couponID, userID string) (bool, error) {
	return c.grants[couponID+"/"+userID], nil
}

func (c *memoryCatalog) GetCampaignByCode(ctx context.Context, code string) (*domain.Campaign, error) {
	if cp, ok := c.campaigns[code]; ok {
		return cp, nil
	}
	return nil, domain.ErrCampaignNotFound
}

func newCatalog() *memoryCatalog {
	approved := now.Add(-24 * time.Hour)
	return &memoryCatalog{
		sales: map[string]*domain.SeatSale{
			"sale-1": {
				ID:               "sale-1",
				ScheduleID:       "schedule-1",
				Status:           domain.SeatSaleOnSale,
				SalesStartAt:     now.Add(-time.Hour),
				SalesEndAt:       now.Add(time.Hour),
				AdmissionCloseAt: now.Add(6 * time.Hour),
			},
			"sale-2": {
				ID:           "sale-2",
				ScheduleID:   "schedule-2",
				Status:       domain.SeatSaleBeforeSale,
				SalesStartAt: now.Add(time.Hour),
				SalesEndAt:   now.Add(2 * time.Hour),
			},
		},
		seatTypes: map[string]*domain.SeatType{
			"st-s":   {ID: "st-s", SeatSaleID: "sale-1", MasterSeatTypeID: "m-s", Name: "S", Price: 2000},
			"st-box": {ID: "st-box", SeatSaleID: "sale-1", MasterSeatTypeID: "m-box", Name: "Box", Price: 8000},
			"st-b":   {ID: "st-b", SeatSaleID: "sale-2", MasterSeatTypeID: "m-s", Name: "B", Price: 1000},
		},
		options: map[string]*domain.SeatTypeOption{
			"opt-cushion": {ID: "opt-cushion", SeatTypeID: "st-s", Title: "Cushion", Price: 300},
			"opt-box":     {ID: "opt-box", SeatTypeID: "st-box", Title: "Catering", Price: 500},
		},
		areas: map[string]*domain.SeatArea{"area-1": {ID: "area-1", Name: "North"}},
		coupons: map[string]*domain.Coupon{
			"coupon-10": {ID: "coupon-10", Title: "10% off", Rate: 10, ApprovedAt: &approved, AvailableEndAt: now.Add(24 * time.Hour)},
			"coupon-draft": {ID: "coupon-draft", Title: "draft", Rate: 50, AvailableEndAt: now.Add(24 * time.Hour)},
		},
		grants: map[string]bool{"coupon-10/alice": true, "coupon-draft/alice": true},
		campaigns: map[string]*domain.Campaign{
			"SPRING": {ID: "camp-1", Code: "SPRING", Rate: 20, StartAt: now.Add(-time.Hour), EndAt: now.Add(time.Hour), Approved: true},
			"OLD":    {ID: "camp-2", Code: "OLD", Rate: 20, StartAt: now.Add(-48 * time.Hour), EndAt: now.Add(-24 * time.Hour), Approved: true},
		},
	}
}

func seat(id string) *domain.Ticket {
	return &domain.Ticket{ID: id, SeatSaleID: "sale-1", SeatTypeID: "st-s", SeatAreaID: "area-1", SeatNumber: id, Status: domain.TicketAvailable}
}

func unitSeat(id, unitID string) *domain.Ticket {
	t := seat(id)
	t.SeatTypeID = "st-box"
	t.SeatUnitID = unitID
	return t
}

func defaultTickets() []*domain.Ticket {
	t4 := seat("t4")
	t4.SeatSaleID = "sale-2"
	t4.SeatTypeID = "st-b"
	return []*domain.Ticket{seat("t1"), seat("t2"), seat("t3"), t4, unitSeat("u1", "box-1"), unitSeat("u2", "box-1")}
}

// env wires the services over miniredis and the in-memory stores
type env struct {
	mr        *miniredis.Miniredis
	holdRepo  *repository.RedisHoldRepository
	cartRepo  *repository.RedisCartRepository
	tickets   *memoryTicketRepository
	catalog   *memoryCatalog
	holds     TicketHoldService
	validator *RuleValidator
	gateway   *gateway.MockGateway
	carts     CartService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { client.Close() })

	e := &env{
		mr:       mr,
		holdRepo: repository.NewRedisHoldRepository(client),
		cartRepo: repository.NewRedisCartRepository(client),
		tickets:  newMemoryTicketRepository(defaultTickets()...),
		catalog:  newCatalog(),
		gateway:  gateway.NewMockGateway(nil),
	}
	e.holds = NewTicketHoldService(e.holdRepo, domain.CartTTL)
	e.validator = NewRuleValidator(e.tickets, e.catalog, 4, clock)
	e.carts = NewCartService(e.cartRepo, e.tickets, e.catalog, e.holds, e.validator, e.gateway, &CartServiceConfig{Now: clock})
	return e
}

func (e *env) owner(ticketID string) string {
	v, err := e.mr.Get(fmt.Sprintf("ticket:temporary_owner:%s", ticketID))
	if err != nil {
		return ""
	}
	return v
}

func selections(ids ...string) []domain.Selection {
	out := make([]domain.Selection, len(ids))
	for i, id := range ids {
		out[i] = domain.Selection{TicketID: id}
	}
	return out
}
