package usecase_test

import (
	"context"
	"sort"
	"strings"
	"sync"

	"smartshop/internal/domain/model"
	repo "smartshop/internal/repository"
)

// =====================
// in-memory TransactionManager
// =====================

// memDB は1つのトランザクションで見える状態。
// WithinTxはコピーに対して fn を実行し、成功したときだけ差し替える
type memDB struct {
	products map[int64]model.Product
	orders   map[int64]model.Order
	items    []model.OrderItem
	seq      map[string]int64
	audits   []model.AuditLog

	nextOrderID int64
	nextItemID  int64
	nextAuditID int64
}

func (d *memDB) clone() *memDB {
	c := &memDB{
		products:    make(map[int64]model.Product, len(d.products)),
		orders:      make(map[int64]model.Order, len(d.orders)),
		items:       append([]model.OrderItem(nil), d.items...),
		seq:         make(map[string]int64, len(d.seq)),
		audits:      append([]model.AuditLog(nil), d.audits...),
		nextOrderID: d.nextOrderID,
		nextItemID:  d.nextItemID,
		nextAuditID: d.nextAuditID,
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.seq {
		c.seq[k] = v
	}
	return c
}

type memStore struct {
	mu sync.Mutex
	db *memDB

	// Orders().Create を何回 ErrDuplicateOrderCode で失敗させるか
	duplicateCodeFailures int
	txCount               int
}

func newMemStore(products ...model.Product) *memStore {
	db := &memDB{
		products: map[int64]model.Product{},
		orders:   map[int64]model.Order{},
		seq:      map[string]int64{},
	}
	for _, p := range products {
		db.products[p.ID] = p
	}
	return &memStore{db: db}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++

	work := s.db.clone()
	if err := fn(&memRepos{s: s, db: work}); err != nil {
		return err
	}
	s.db = work
	return nil
}

// テストからのコミット済み状態の参照
func (s *memStore) snapshot() *memDB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.clone()
}

func (s *memStore) seedOrder(o model.Order) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.db.nextOrderID++
	o.ID = s.db.nextOrderID
	s.db.orders[o.ID] = o
	return o.ID
}

func (s *memStore) order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.orders[id]
}

type memRepos struct {
	s  *memStore
	db *memDB
}

func (r *memRepos) Orders() repo.OrderRepository                 { return memOrders{r} }
func (r *memRepos) OrderItems() repo.OrderItemRepository         { return memOrderItems{r} }
func (r *memRepos) OrderCodes() repo.OrderCodeSequenceRepository { return memOrderCodes{r} }
func (r *memRepos) Products() repo.ProductRepository             { return memProducts{r} }
func (r *memRepos) AuditLogs() repo.AuditLogRepository           { return memAudits{r} }

type memOrders struct{ r *memRepos }

func (m memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := m.r.db.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m memOrders) FindByOrderCode(ctx context.Context, code string) (model.Order, error) {
	for _, o := range m.r.db.orders {
		if o.OrderCode == code {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.r.db.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

func (m memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	if m.r.s.duplicateCodeFailures > 0 {
		m.r.s.duplicateCodeFailures--
		return 0, repo.ErrDuplicateOrderCode
	}
	for _, o := range m.r.db.orders {
		if o.OrderCode == order.OrderCode {
			return 0, repo.ErrDuplicateOrderCode
		}
	}
	m.r.db.nextOrderID++
	order.ID = m.r.db.nextOrderID
	m.r.db.orders[order.ID] = order
	return order.ID, nil
}

func (m memOrders) TransitionStatus(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	o, ok := m.r.db.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.r.db.orders[orderID] = o
	return true, nil
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.r.db.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, int64(len(out)), nil
}

type memOrderItems struct{ r *memRepos }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for i := range items {
		m.r.db.nextItemID++
		items[i].ID = m.r.db.nextItemID
		items[i].OrderID = orderID
		items[i].Position = i
		m.r.db.items = append(m.r.db.items, items[i])
	}
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	var out []model.OrderItem
	for _, it := range m.r.db.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

type memOrderCodes struct{ r *memRepos }

func (m memOrderCodes) Next(ctx context.Context, day string, codePrefix string) (int64, error) {
	if v, ok := m.r.db.seq[day]; ok {
		m.r.db.seq[day] = v + 1
		return v + 1, nil
	}
	var n int64
	for _, o := range m.r.db.orders {
		if strings.HasPrefix(o.OrderCode, codePrefix) {
			n++
		}
	}
	m.r.db.seq[day] = n + 1
	return n + 1, nil
}

type memProducts struct{ r *memRepos }

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	p, ok := m.r.db.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

type memAudits struct{ r *memRepos }

func (m memAudits) Create(ctx context.Context, log model.AuditLog) error {
	m.r.db.nextAuditID++
	log.ID = m.r.db.nextAuditID
	m.r.db.audits = append(m.r.db.audits, log)
	return nil
}

func (m memAudits) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	var out []model.AuditLog
	for _, a := range m.r.db.audits {
		if f.ResourceType != nil && a.ResourceType != *f.ResourceType {
			continue
		}
		if f.ResourceID != nil && a.ResourceID != *f.ResourceID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
