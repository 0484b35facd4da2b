package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/domain"
	"storefront/internal/mail"
	"storefront/internal/repository"
	"storefront/internal/storage"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory backing for every repository. WithinTx snapshots
// it and restores the snapshot when the callback fails.
type memStore struct {
	mu sync.Mutex

	nextID     int64
	users      map[int64]*domain.User
	products   map[int64]*domain.Product
	cart       map[int64]*domain.CartLine
	orders     map[int64]*domain.Order
	orderItems map[int64]*domain.OrderItem
	reviews    map[int64]*domain.Review

	// failOrderItems makes OrderItems().Create fail, to exercise rollback.
	failOrderItems bool
}

func newMemStore() *memStore {
	return &memStore{
		users:      make(map[int64]*domain.User),
		products:   make(map[int64]*domain.Product),
		cart:       make(map[int64]*domain.CartLine),
		orders:     make(map[int64]*domain.Order),
		orderItems: make(map[int64]*domain.OrderItem),
		reviews:    make(map[int64]*domain.Review),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func cloneMap[T any](src map[int64]*T) map[int64]*T {
	dst := make(map[int64]*T, len(src))
	for k, v := range src {
		c := *v
		dst[k] = &c
	}
	return dst
}

type snapshot struct {
	nextID     int64
	users      map[int64]*domain.User
	products   map[int64]*domain.Product
	cart       map[int64]*domain.CartLine
	orders     map[int64]*domain.Order
	orderItems map[int64]*domain.OrderItem
}

func (m *memStore) snapshot() snapshot {
	return snapshot{
		nextID:     m.nextID,
		users:      cloneMap(m.users),
		products:   cloneMap(m.products),
		cart:       cloneMap(m.cart),
		orders:     cloneMap(m.orders),
		orderItems: cloneMap(m.orderItems),
	}
}

func (m *memStore) restore(s snapshot) {
	m.nextID = s.nextID
	m.users = s.users
	m.products = s.products
	m.cart = s.cart
	m.orders = s.orders
	m.orderItems = s.orderItems
}

// WithinTx serializes transactions with the store mutex; repository calls
// made inside fn run under that lock.
func (m *memStore) WithinTx(ctx context.Context, fn func(r repository.TxRepos) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(memTx{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memStore) addUser(name, email string) *domain.User {
	u := &domain.User{ID: m.id(), Name: name, Email: email, CreatedAt: time.Now()}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addProduct(p domain.Product) *domain.Product {
	p.ID = m.id()
	m.products[p.ID] = &p
	return &p
}

type memTx struct{ m *memStore }

func (t memTx) Users() repository.UserRepository           { return memUsers{t.m, false} }
func (t memTx) Products() repository.ProductRepository     { return memProducts{t.m, false} }
func (t memTx) Cart() repository.CartRepository            { return memCart{t.m, false} }
func (t memTx) Orders() repository.OrderRepository         { return memOrders{t.m, false} }
func (t memTx) OrderItems() repository.OrderItemRepository { return memOrderItems{t.m, false} }

// Repositories used outside a transaction take the store lock per call.
func (m *memStore) userRepo() repository.UserRepository           { return memUsers{m, true} }
func (m *memStore) productRepo() repository.ProductRepository     { return memProducts{m, true} }
func (m *memStore) cartRepo() repository.CartRepository           { return memCart{m, true} }
func (m *memStore) orderRepo() repository.OrderRepository         { return memOrders{m, true} }
func (m *memStore) orderItemRepo() repository.OrderItemRepository { return memOrderItems{m, true} }
func (m *memStore) reviewRepo() repository.ReviewRepository       { return memReviews{m, true} }

// lockFn returns the lock/unlock pair: repositories used inside WithinTx
// already hold the mutex.
func lockFn(m *memStore, locking bool) func() {
	if !locking {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

// users

type memUsers struct {
	m       *memStore
	locking bool
}

func (r memUsers) Create(ctx context.Context, user *domain.User) error {
	defer lockFn(r.m, r.locking)()
	for _, u := range r.m.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = r.m.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	c := *user
	r.m.users[user.ID] = &c
	return nil
}

func (r memUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer lockFn(r.m, r.locking)()
	for _, u := range r.m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	defer lockFn(r.m, r.locking)()
	u, ok := r.m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) List(ctx context.Context) ([]*domain.User, error) {
	defer lockFn(r.m, r.locking)()
	out := make([]*domain.User, 0, len(r.m.users))
	for _, id := range sortedKeys(r.m.users) {
		c := *r.m.users[id]
		out = append(out, &c)
	}
	return out, nil
}

// products

type memProducts struct {
	m       *memStore
	locking bool
}

func (r memProducts) Create(ctx context.Context, p *domain.Product) error {
	defer lockFn(r.m, r.locking)()
	p.ID = r.m.id()
	c := *p
	r.m.products[p.ID] = &c
	return nil
}

func (r memProducts) Update(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	defer lockFn(r.m, r.locking)()
	p, ok := r.m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.StockQuantity != nil {
		p.StockQuantity = *patch.StockQuantity
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	c := *p
	return &c, nil
}

func (r memProducts) Delete(ctx context.Context, id int64) error {
	defer lockFn(r.m, r.locking)()
	if _, ok := r.m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.m.products, id)
	return nil
}

func (r memProducts) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	defer lockFn(r.m, r.locking)()
	p, ok := r.m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	c := *p
	return &c, nil
}

func (r memProducts) List(ctx context.Context) ([]*domain.Product, error) {
	return r.Search(ctx, "")
}

func (r memProducts) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	defer lockFn(r.m, r.locking)()
	out := []*domain.Product{}
	for _, id := range sortedKeys(r.m.products) {
		p := r.m.products[id]
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memProducts) DecrementStock(ctx context.Context, id int64, qty int) error {
	defer lockFn(r.m, r.locking)()
	p, ok := r.m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.StockQuantity < qty {
		return domain.ErrOutOfStock
	}
	p.StockQuantity -= qty
	return nil
}

func (r memProducts) IncrementStock(ctx context.Context, id int64, qty int) error {
	defer lockFn(r.m, r.locking)()
	p, ok := r.m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.StockQuantity += qty
	return nil
}

// cart

type memCart struct {
	m       *memStore
	locking bool
}

func (r memCart) find(userID, productID int64) *domain.CartLine {
	for _, l := range r.m.cart {
		if l.UserID == userID && l.ProductID == productID {
			return l
		}
	}
	return nil
}

func (r memCart) AddQuantity(ctx context.Context, userID, productID int64, delta int) (*domain.CartLine, error) {
	defer lockFn(r.m, r.locking)()
	if _, ok := r.m.users[userID]; !ok {
		return nil, domain.NewError(domain.ErrNotFound, "foreign key")
	}
	line := r.find(userID, productID)
	if line == nil {
		line = &domain.CartLine{ID: r.m.id(), UserID: userID, ProductID: productID, CreatedAt: time.Now()}
		r.m.cart[line.ID] = line
	}
	line.Quantity += delta
	c := *line
	return &c, nil
}

func (r memCart) LockLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error) {
	defer lockFn(r.m, r.locking)()
	line := r.find(userID, productID)
	if line == nil {
		return nil, domain.ErrCartItemNotFound
	}
	c := *line
	return &c, nil
}

func (r memCart) SetQuantity(ctx context.Context, lineID int64, quantity int) (*domain.CartLine, error) {
	defer lockFn(r.m, r.locking)()
	line, ok := r.m.cart[lineID]
	if !ok {
		return nil, domain.ErrCartItemNotFound
	}
	line.Quantity = quantity
	c := *line
	return &c, nil
}

func (r memCart) DeleteLine(ctx context.Context, userID, productID int64) (*domain.CartLine, error) {
	defer lockFn(r.m, r.locking)()
	line := r.find(userID, productID)
	if line == nil {
		return nil, nil
	}
	delete(r.m.cart, line.ID)
	return line, nil
}

func (r memCart) DeleteAll(ctx context.Context, userID int64) ([]*domain.CartLine, error) {
	defer lockFn(r.m, r.locking)()
	var out []*domain.CartLine
	for _, id := range sortedKeys(r.m.cart) {
		if l := r.m.cart[id]; l.UserID == userID {
			out = append(out, l)
			delete(r.m.cart, id)
		}
	}
	return out, nil
}

func (r memCart) ListItems(ctx context.Context, userID int64) ([]*domain.CartItem, error) {
	defer lockFn(r.m, r.locking)()
	out := []*domain.CartItem{}
	for _, id := range sortedKeys(r.m.cart) {
		l := r.m.cart[id]
		if l.UserID != userID {
			continue
		}
		p := r.m.products[l.ProductID]
		out = append(out, &domain.CartItem{
			ID: l.ID, ProductID: l.ProductID, Name: p.Name, ImageURL: p.ImageURL,
			Price: p.Price, Quantity: l.Quantity, CreatedAt: l.CreatedAt,
		})
	}
	return out, nil
}

func (r memCart) LockCheckoutLines(ctx context.Context, userID int64, cartID *int64) ([]domain.CheckoutLine, error) {
	defer lockFn(r.m, r.locking)()
	var out []domain.CheckoutLine
	for _, id := range sortedKeys(r.m.cart) {
		l := r.m.cart[id]
		if l.UserID != userID || (cartID != nil && l.ID != *cartID) {
			continue
		}
		out = append(out, domain.CheckoutLine{
			CartLineID: l.ID, ProductID: l.ProductID, Quantity: l.Quantity,
			Price: r.m.products[l.ProductID].Price,
		})
	}
	return out, nil
}

func (r memCart) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	defer lockFn(r.m, r.locking)()
	var n int64
	for _, id := range ids {
		if _, ok := r.m.cart[id]; ok {
			delete(r.m.cart, id)
			n++
		}
	}
	return n, nil
}

// orders

type memOrders struct {
	m       *memStore
	locking bool
}

func (r memOrders) Create(ctx context.Context, o *domain.Order) error {
	defer lockFn(r.m, r.locking)()
	o.ID = r.m.id()
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	c := *o
	r.m.orders[o.ID] = &c
	return nil
}

func (r memOrders) FindByID(ctx context.Context, id int64) (*domain.Order, error) {
	defer lockFn(r.m, r.locking)()
	o, ok := r.m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (r memOrders) List(ctx context.Context) ([]*domain.Order, error) {
	return r.filter(func(*domain.Order) bool { return true }), nil
}

func (r memOrders) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return r.filter(func(o *domain.Order) bool { return o.UserID == userID }), nil
}

func (r memOrders) filter(keep func(*domain.Order) bool) []*domain.Order {
	defer lockFn(r.m, r.locking)()
	out := []*domain.Order{}
	for _, id := range sortedKeys(r.m.orders) {
		if o := r.m.orders[id]; keep(o) {
			c := *o
			out = append(out, &c)
		}
	}
	return out
}

func (r memOrders) Update(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error) {
	defer lockFn(r.m, r.locking)()
	o, ok := r.m.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.PaymentMethod != nil {
		o.PaymentMethod = *patch.PaymentMethod
	}
	c := *o
	return &c, nil
}

func (r memOrders) Delete(ctx context.Context, id int64) error {
	defer lockFn(r.m, r.locking)()
	if _, ok := r.m.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(r.m.orders, id)
	for itemID, item := range r.m.orderItems {
		if item.OrderID == id {
			delete(r.m.orderItems, itemID)
		}
	}
	return nil
}

type memOrderItems struct {
	m       *memStore
	locking bool
}

func (r memOrderItems) Create(ctx context.Context, item *domain.OrderItem) error {
	defer lockFn(r.m, r.locking)()
	if r.m.failOrderItems {
		return errors.New("order items unavailable")
	}
	item.ID = r.m.id()
	item.TotalAmount = item.UniquePrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	c := *item
	r.m.orderItems[item.ID] = &c
	return nil
}

func (r memOrderItems) List(ctx context.Context) ([]*domain.OrderItem, error) {
	return r.filter(func(*domain.OrderItem) bool { return true }), nil
}

func (r memOrderItems) ListByOrder(ctx context.Context, orderID int64) ([]*domain.OrderItem, error) {
	return r.filter(func(item *domain.OrderItem) bool { return item.OrderID == orderID }), nil
}

func (r memOrderItems) ListByUserOrder(ctx context.Context, userID, orderID int64) ([]*domain.OrderItem, error) {
	return r.filter(func(item *domain.OrderItem) bool {
		return item.UserID == userID && item.OrderID == orderID
	}), nil
}

func (r memOrderItems) filter(keep func(*domain.OrderItem) bool) []*domain.OrderItem {
	defer lockFn(r.m, r.locking)()
	out := []*domain.OrderItem{}
	for _, id := range sortedKeys(r.m.orderItems) {
		if item := r.m.orderItems[id]; keep(item) {
			c := *item
			out = append(out, &c)
		}
	}
	return out
}

// reviews

type memReviews struct {
	m       *memStore
	locking bool
}

func (r memReviews) Create(ctx context.Context, review *domain.Review) error {
	defer lockFn(r.m, r.locking)()
	for _, existing := range r.m.reviews {
		if review.UserID != nil && existing.UserID != nil &&
			*existing.UserID == *review.UserID && existing.ProductID == review.ProductID {
			return domain.ErrReviewExists
		}
	}
	review.ID = r.m.id()
	c := *review
	r.m.reviews[review.ID] = &c
	return nil
}

func (r memReviews) FindByID(ctx context.Context, id int64) (*domain.Review, error) {
	defer lockFn(r.m, r.locking)()
	review, ok := r.m.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	c := *review
	return &c, nil
}

func (r memReviews) List(ctx context.Context) ([]*domain.Review, error) {
	defer lockFn(r.m, r.locking)()
	out := []*domain.Review{}
	for _, id := range sortedKeys(r.m.reviews) {
		c := *r.m.reviews[id]
		out = append(out, &c)
	}
	return out, nil
}

func (r memReviews) ListByProduct(ctx context.Context, productID int64) ([]*domain.ReviewDetail, error) {
	defer lockFn(r.m, r.locking)()
	out := []*domain.ReviewDetail{}
	for _, id := range sortedKeys(r.m.reviews) {
		review := r.m.reviews[id]
		if review.ProductID != productID {
			continue
		}
		detail := &domain.ReviewDetail{Review: *review, ProductName: r.m.products[productID].Name}
		if review.UserID != nil {
			if u, ok := r.m.users[*review.UserID]; ok {
				detail.AuthorName = u.Name
			}
		}
		out = append(out, detail)
	}
	return out, nil
}

func (r memReviews) Update(ctx context.Context, id int64, rating *int, comment *string) (*domain.Review, error) {
	defer lockFn(r.m, r.locking)()
	review, ok := r.m.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	if rating != nil {
		review.Rating = *rating
	}
	if comment != nil {
		review.Comment = *comment
	}
	c := *review
	return &c, nil
}

func (r memReviews) Delete(ctx context.Context, id int64) error {
	defer lockFn(r.m, r.locking)()
	if _, ok := r.m.reviews[id]; !ok {
		return domain.ErrReviewNotFound
	}
	delete(r.m.reviews, id)
	return nil
}

func sortedKeys[T any](m map[int64]*T) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// mailer and image store

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	fail bool
}

func (m *recordingMailer) Dispatch(ctx context.Context, msg mail.Message) mail.Receipt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return mail.Receipt{ID: msg.ID, Sent: false, Queued: true}
	}
	m.sent = append(m.sent, msg)
	return mail.Receipt{ID: msg.ID, Sent: true}
}

type memImages struct {
	saved   map[string]bool
	deleted []string
	n       int
	saveErr error
}

func newMemImages() *memImages {
	return &memImages{saved: make(map[string]bool)}
}

func (s *memImages) Save(ctx context.Context, upload storage.Upload) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.n++
	url := "/uploads/" + strings.Repeat("i", s.n) + "-" + upload.Filename
	s.saved[url] = true
	return url, nil
}

func (s *memImages) Delete(ctx context.Context, url string) error {
	delete(s.saved, url)
	s.deleted = append(s.deleted, url)
	return nil
}
