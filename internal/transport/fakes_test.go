package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"storefront/internal/domain"
	"storefront/internal/service"
	"storefront/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// do sends a request to the router and returns the recorder
func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var passthrough = func(next http.Handler) http.Handler { return next }

// users

type memUsers struct {
	mu    sync.Mutex
	users []*domain.User
}

func (s *memUsers) Create(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	user.ID = int64(len(s.users) + 1)
	s.users = append(s.users, user)
	return nil
}

func (s *memUsers) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memUsers) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *memUsers) List(ctx context.Context) ([]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.User(nil), s.users...), nil
}

// cart

type fakeCart struct {
	addErr  error
	lastAdd [3]int64
	items   []*domain.CartItem
	removed [][2]int64
	cleared []int64
}

func (f *fakeCart) AddItem(ctx context.Context, userID, productID int64, quantity int) (*domain.CartLine, error) {
	f.lastAdd = [3]int64{userID, productID, int64(quantity)}
	if f.addErr != nil {
		return nil, f.addErr
	}
	return &domain.CartLine{ID: 1, UserID: userID, ProductID: productID, Quantity: quantity}, nil
}

func (f *fakeCart) ListItems(ctx context.Context, userID int64) ([]*domain.CartItem, error) {
	return f.items, nil
}

func (f *fakeCart) UpdateQuantity(ctx context.Context, userID, productID int64, quantity int) (*domain.CartLine, error) {
	if productID == 404 {
		return nil, domain.ErrCartItemNotFound
	}
	return &domain.CartLine{ID: 1, UserID: userID, ProductID: productID, Quantity: quantity}, nil
}

func (f *fakeCart) RemoveItem(ctx context.Context, userID, productID int64) error {
	f.removed = append(f.removed, [2]int64{userID, productID})
	return nil
}

func (f *fakeCart) Clear(ctx context.Context, userID int64) error {
	f.cleared = append(f.cleared, userID)
	return nil
}

// orders

type fakeOrders struct {
	placeErr  error
	lastPlace service.PlaceOrderInput
	emailSent bool
	orders    map[int64]*domain.Order
	patches   []domain.OrderPatch
	resent    []int64
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, input service.PlaceOrderInput) (*service.PlacementResult, error) {
	f.lastPlace = input
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	order := &domain.Order{ID: 10, UserID: input.UserID, PaymentMethod: input.PaymentMethod, Status: domain.OrderStatusPending}
	return &service.PlacementResult{
		Order:     order,
		Items:     []*domain.OrderItem{{ID: 1, OrderID: 10}},
		EmailID:   "mail-1",
		EmailSent: f.emailSent,
	}, nil
}

func (f *fakeOrders) ResendConfirmation(ctx context.Context, orderID int64) (*service.Confirmation, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if o.UserID == 0 {
		return nil, domain.ErrEmailMissing
	}
	f.resent = append(f.resent, orderID)
	return &service.Confirmation{EmailID: "mail-2", EmailSent: f.emailSent}, nil
}

func (f *fakeOrders) AllItems(ctx context.Context) ([]*domain.OrderItem, error) {
	out := []*domain.OrderItem{}
	for _, o := range f.orders {
		out = append(out, &domain.OrderItem{ID: o.ID, OrderID: o.ID, UserID: o.UserID})
	}
	return out, nil
}

func (f *fakeOrders) UserOrderItems(ctx context.Context, userID, orderID int64) ([]*domain.OrderItem, error) {
	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID {
		return []*domain.OrderItem{}, nil
	}
	return []*domain.OrderItem{{ID: orderID, OrderID: orderID, UserID: userID}}, nil
}

func (f *fakeOrders) Get(ctx context.Context, id int64) (*domain.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) List(ctx context.Context) ([]*domain.Order, error) {
	out := []*domain.Order{}
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrders) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	out := []*domain.Order{}
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) Items(ctx context.Context, orderID int64) ([]*domain.OrderItem, error) {
	if _, ok := f.orders[orderID]; !ok {
		return nil, domain.ErrOrderNotFound
	}
	return []*domain.OrderItem{{ID: 1, OrderID: orderID}}, nil
}

func (f *fakeOrders) Update(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error) {
	f.patches = append(f.patches, patch)
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	return o, nil
}

func (f *fakeOrders) Delete(ctx context.Context, id int64) error {
	if _, ok := f.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	delete(f.orders, id)
	return nil
}

// images

type fakeImages struct {
	saved []storage.Upload
	body  []string
}

func (f *fakeImages) Save(ctx context.Context, upload storage.Upload) (string, error) {
	if _, err := storageValidate(upload); err != nil {
		return "", err
	}
	b, _ := io.ReadAll(upload.Body)
	f.saved = append(f.saved, upload)
	f.body = append(f.body, string(b))
	return "/uploads/" + upload.Filename, nil
}

func (f *fakeImages) Delete(ctx context.Context, url string) error { return nil }

// storageValidate mirrors the extension check of the real stores
func storageValidate(upload storage.Upload) (string, error) {
	for _, ext := range storage.AllowedImageExtensions {
		if strings.HasSuffix(strings.ToLower(upload.Filename), ext) {
			return ext, nil
		}
	}
	return "", domain.ErrUnsupportedImage
}

type memProducts struct {
	mu       sync.Mutex
	products map[int64]*domain.Product
	next     int64
}

func newMemProducts() *memProducts {
	return &memProducts{products: make(map[int64]*domain.Product)}
}

func (m *memProducts) Create(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	p.ID = m.next
	m.products[p.ID] = p
	return nil
}

func (m *memProducts) Update(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
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
	return p, nil
}

func (m *memProducts) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memProducts) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *memProducts) List(ctx context.Context) ([]*domain.Product, error) {
	return m.Search(ctx, "")
}

func (m *memProducts) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*domain.Product{}
	for id := int64(1); id <= m.next; id++ {
		if p, ok := m.products[id]; ok && strings.Contains(strings.ToLower(p.Name), strings.ToLower(query)) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) DecrementStock(ctx context.Context, id int64, qty int) error { return nil }
func (m *memProducts) IncrementStock(ctx context.Context, id int64, qty int) error { return nil }

// reviews

type memReviews struct {
	reviews map[int64]*domain.Review
	next    int64
}

func (m *memReviews) Create(ctx context.Context, review *domain.Review) error {
	m.next++
	review.ID = m.next
	m.reviews[review.ID] = review
	return nil
}

func (m *memReviews) FindByID(ctx context.Context, id int64) (*domain.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	return r, nil
}

func (m *memReviews) List(ctx context.Context) ([]*domain.Review, error) {
	out := []*domain.Review{}
	for id := int64(1); id <= m.next; id++ {
		if r, ok := m.reviews[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReviews) ListByProduct(ctx context.Context, productID int64) ([]*domain.ReviewDetail, error) {
	out := []*domain.ReviewDetail{}
	for id := int64(1); id <= m.next; id++ {
		if r, ok := m.reviews[id]; ok && r.ProductID == productID {
			out = append(out, &domain.ReviewDetail{Review: *r, ProductName: "Pizza"})
		}
	}
	return out, nil
}

func (m *memReviews) Update(ctx context.Context, id int64, rating *int, comment *string) (*domain.Review, error) {
	r, ok := m.reviews[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	if rating != nil {
		r.Rating = *rating
	}
	if comment != nil {
		r.Comment = *comment
	}
	return r, nil
}

func (m *memReviews) Delete(ctx context.Context, id int64) error {
	if _, ok := m.reviews[id]; !ok {
		return domain.ErrReviewNotFound
	}
	delete(m.reviews, id)
	return nil
}

func newRouter(register func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	register(r)
	return r
}

var nopLogger = zap.NewNop()
