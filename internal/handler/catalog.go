package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/markethub/internal/middleware"
	"github.com/markethub/internal/model"
	"github.com/markethub/internal/repository"
)

// CatalogHandler serves the flat marketplace records: categories, companies,
// products, services, bookings, orders. All mutations replace the record
// wholesale; list endpoints support ?format=csv.
type CatalogHandler struct {
	categoryRepo *repository.CategoryRepository
	companyRepo  *repository.CompanyRepository
	productRepo  *repository.ProductRepository
	serviceRepo  *repository.ServiceRepository
	bookingRepo  *repository.BookingRepository
	orderRepo    *repository.OrderRepository
}

func NewCatalogHandler(
	categoryRepo *repository.CategoryRepository,
	companyRepo *repository.CompanyRepository,
	productRepo *repository.ProductRepository,
	serviceRepo *repository.ServiceRepository,
	bookingRepo *repository.BookingRepository,
	orderRepo *repository.OrderRepository,
) *CatalogHandler {
	return &CatalogHandler{
		categoryRepo: categoryRepo,
		companyRepo:  companyRepo,
		productRepo:  productRepo,
		serviceRepo:  serviceRepo,
		bookingRepo:  bookingRepo,
		orderRepo:    orderRepo,
	}
}

func listLimits(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	return limit, queryInt(r, "offset", 0)
}

func writeRepoError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, what+" not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to process "+what)
}

// writeCSV streams records as CSV for the admin export buttons.
func writeCSV(w http.ResponseWriter, filename string, header []string, rows [][]string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	cw := csv.NewWriter(w)
	_ = cw.Write(header)
	for _, row := range rows {
		_ = cw.Write(row)
	}
	cw.Flush()
}

func wantsCSV(r *http.Request) bool {
	return r.URL.Query().Get("format") == "csv"
}

// Per-entity CSV shapes. Money columns are rendered in major units.

func categoryCSV(categories []model.Category) ([]string, [][]string) {
	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		rows = append(rows, []string{c.ID, c.Name, c.Slug, c.CreatedAt.Format(time.RFC3339)})
	}
	return []string{"id", "name", "slug", "created_at"}, rows
}

func companyCSV(companies []model.Company) ([]string, [][]string) {
	rows := make([][]string, 0, len(companies))
	for _, c := range companies {
		rows = append(rows, []string{c.ID, c.Name, c.OwnerID, c.CategoryID, c.Location,
			c.CreatedAt.Format(time.RFC3339)})
	}
	return []string{"id", "name", "owner_id", "category_id", "location", "created_at"}, rows
}

func productCSV(products []model.Product) ([]string, [][]string) {
	rows := make([][]string, 0, len(products))
	for _, p := range products {
		rows = append(rows, []string{p.ID, p.Name, p.VendorID, p.CategoryID,
			fmt.Sprintf("%.2f", float64(p.PriceCents)/100), p.Currency,
			strconv.FormatBool(p.InStock), p.CreatedAt.Format(time.RFC3339)})
	}
	return []string{"id", "name", "vendor_id", "category_id", "price", "currency", "in_stock", "created_at"}, rows
}

func serviceCSV(services []model.Service) ([]string, [][]string) {
	rows := make([][]string, 0, len(services))
	for _, s := range services {
		rows = append(rows, []string{s.ID, s.Name, s.VendorID, s.CategoryID,
			fmt.Sprintf("%.2f", float64(s.PriceCents)/100), s.Currency,
			s.CreatedAt.Format(time.RFC3339)})
	}
	return []string{"id", "name", "vendor_id", "category_id", "price", "currency", "created_at"}, rows
}

func bookingCSV(bookings []model.Booking) ([]string, [][]string) {
	rows := make([][]string, 0, len(bookings))
	for _, b := range bookings {
		rows = append(rows, []string{b.ID, b.ServiceID, b.BuyerID, string(b.Status),
			b.ScheduledAt.Format(time.RFC3339), b.CreatedAt.Format(time.RFC3339)})
	}
	return []string{"id", "service_id", "buyer_id", "status", "scheduled_at", "created_at"}, rows
}

func orderCSV(orders []model.Order) ([]string, [][]string) {
	rows := make([][]string, 0, len(orders))
	for _, o := range orders {
		rows = append(rows, []string{o.ID, o.ProductID, o.BuyerID, strconv.Itoa(o.Quantity),
			fmt.Sprintf("%.2f", float64(o.TotalCents)/100), o.Currency, string(o.Status),
			o.CreatedAt.Format(time.RFC3339)})
	}
	return []string{"id", "product_id", "buyer_id", "quantity", "total", "currency", "status", "created_at"}, rows
}

// --- Categories ---

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryRepo.List(r.Context())
	if err != nil {
		writeRepoError(w, err, "categories")
		return
	}
	if wantsCSV(r) {
		header, rows := categoryCSV(categories)
		writeCSV(w, "categories.csv", header, rows)
		return
	}
	writeData(w, http.StatusOK, "categories", categories)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	c, err := h.categoryRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, err, "category")
		return
	}
	writeData(w, http.StatusOK, "category", c)
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c model.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now().UTC()
	if err := h.categoryRepo.Create(r.Context(), &c); err != nil {
		writeRepoError(w, err, "category")
		return
	}
	writeData(w, http.StatusCreated, "category", c)
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var c model.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	c.ID = chi.URLParam(r, "id")
	if err := h.categoryRepo.Update(r.Context(), &c); err != nil {
		writeRepoError(w, err, "category")
		return
	}
	writeData(w, http.StatusOK, "category", c)
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.categoryRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRepoError(w, err, "category")
		return
	}
	writeOK(w)
}

// --- Companies ---

func (h *CatalogHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	limit, offset := listLimits(r)
	companies, err := h.companyRepo.List(r.Context(), r.URL.Query().Get("category_id"), limit, offset)
	if err != nil {
		writeRepoError(w, err, "companies")
		return
	}
	if wantsCSV(r) {
		header, rows := companyCSV(companies)
		writeCSV(w, "companies.csv", header, rows)
		return
	}
	writeData(w, http.StatusOK, "companies", companies)
}

func (h *CatalogHandler) GetCompany(w http.ResponseWriter, r *http.Request) {
	c, err := h.companyRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, err, "company")
		return
	}
	writeData(w, http.StatusOK, "company", c)
}

func (h *CatalogHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var c model.Company
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	c.ID = uuid.New().String()
	c.OwnerID = middleware.GetUserID(r.Context())
	c.CreatedAt = time.Now().UTC()
	if err := h.companyRepo.Create(r.Context(), &c); err != nil {
		writeRepoError(w, err, "company")
		return
	}
	writeData(w, http.StatusCreated, "company", c)
}

func (h *CatalogHandler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var c model.Company
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil || c.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	c.ID = chi.URLParam(r, "id")
	if err := h.companyRepo.Update(r.Context(), &c); err != nil {
		writeRepoError(w, err, "company")
		return
	}
	writeData(w, http.StatusOK, "company", c)
}

func (h *CatalogHandler) DeleteCompany(w http.ResponseWriter, r *http.Request) {
	if err := h.companyRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRepoError(w, err, "company")
		return
	}
	writeOK(w)
}

// --- Products ---

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, offset := listLimits(r)
	products, err := h.productRepo.List(r.Context(), r.URL.Query().Get("vendor_id"), r.URL.Query().Get("category_id"), limit, offset)
	if err != nil {
		writeRepoError(w, err, "products")
		return
	}
	if wantsCSV(r) {
		header, rows := productCSV(products)
		writeCSV(w, "products.csv", header, rows)
		return
	}
	writeData(w, http.StatusOK, "products", products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.productRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, err, "product")
		return
	}
	writeData(w, http.StatusOK, "product", p)
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	p.ID = uuid.New().String()
	p.VendorID = middleware.GetUserID(r.Context())
	p.CreatedAt = time.Now().UTC()
	if p.Currency == "" {
		p.Currency = "USD"
	}
	if err := h.productRepo.Create(r.Context(), &p); err != nil {
		writeRepoError(w, err, "product")
		return
	}
	writeData(w, http.StatusCreated, "product", p)
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p model.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := h.productRepo.Update(r.Context(), &p); err != nil {
		writeRepoError(w, err, "product")
		return
	}
	writeData(w, http.StatusOK, "product", p)
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.productRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRepoError(w, err, "product")
		return
	}
	writeOK(w)
}

// --- Services ---

func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	limit, offset := listLimits(r)
	services, err := h.serviceRepo.List(r.Context(), r.URL.Query().Get("vendor_id"), r.URL.Query().Get("category_id"), limit, offset)
	if err != nil {
		writeRepoError(w, err, "services")
		return
	}
	if wantsCSV(r) {
		header, rows := serviceCSV(services)
		writeCSV(w, "services.csv", header, rows)
		return
	}
	writeData(w, http.StatusOK, "services", services)
}

func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	s, err := h.serviceRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, err, "service")
		return
	}
	writeData(w, http.StatusOK, "service", s)
}

func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var s model.Service
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil || s.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	s.ID = uuid.New().String()
	s.VendorID = middleware.GetUserID(r.Context())
	s.CreatedAt = time.Now().UTC()
	if s.Currency == "" {
		s.Currency = "USD"
	}
	if err := h.serviceRepo.Create(r.Context(), &s); err != nil {
		writeRepoError(w, err, "service")
		return
	}
	writeData(w, http.StatusCreated, "service", s)
}

func (h *CatalogHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var s model.Service
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil || s.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	s.ID = chi.URLParam(r, "id")
	if err := h.serviceRepo.Update(r.Context(), &s); err != nil {
		writeRepoError(w, err, "service")
		return
	}
	writeData(w, http.StatusOK, "service", s)
}

func (h *CatalogHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	if err := h.serviceRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRepoError(w, err, "service")
		return
	}
	writeOK(w)
}

// --- Bookings ---

func (h *CatalogHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit, offset := listLimits(r)
	bookings, err := h.bookingRepo.List(r.Context(), r.URL.Query().Get("buyer_id"), r.URL.Query().Get("vendor_id"), limit, offset)
	if err != nil {
		writeRepoError(w, err, "bookings")
		return
	}
	if wantsCSV(r) {
		header, rows := bookingCSV(bookings)
		writeCSV(w, "bookings.csv", header, rows)
		return
	}
	writeData(w, http.StatusOK, "bookings", bookings)
}

func (h *CatalogHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, err := h.bookingRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, err, "booking")
		return
	}
	writeData(w, http.StatusOK, "booking", b)
}

func (h *CatalogHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var b model.Booking
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.ServiceID == "" {
		writeError(w, http.StatusBadRequest, "service_id is required")
		return
	}
	if _, err := h.serviceRepo.GetByID(r.Context(), b.ServiceID); err != nil {
		writeRepoError(w, err, "service")
		return
	}
	b.ID = uuid.New().String()
	b.BuyerID = middleware.GetUserID(r.Context())
	if b.Status == "" {
		b.Status = model.BookingPending
	}
	b.CreatedAt = time.Now().UTC()
	if err := h.bookingRepo.Create(r.Context(), &b); err != nil {
		writeRepoError(w, err, "booking")
		return
	}
	writeData(w, http.StatusCreated, "booking", b)
}

func (h *CatalogHandler) UpdateBooking(w http.ResponseWriter, r *http.Request) {
	var b model.Booking
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.ID = chi.URLParam(r, "id")
	if err := h.bookingRepo.Update(r.Context(), &b); err != nil {
		writeRepoError(w, err, "booking")
		return
	}
	writeData(w, http.StatusOK, "booking", b)
}

func (h *CatalogHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.bookingRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRepoError(w, err, "booking")
		return
	}
	writeOK(w)
}

// --- Orders ---

func (h *CatalogHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := listLimits(r)
	orders, err := h.orderRepo.List(r.Context(), r.URL.Query().Get("buyer_id"), r.URL.Query().Get("vendor_id"), limit, offset)
	if err != nil {
		writeRepoError(w, err, "orders")
		return
	}
	if wantsCSV(r) {
		header, rows := orderCSV(orders)
		writeCSV(w, "orders.csv", header, rows)
		return
	}
	writeData(w, http.StatusOK, "orders", orders)
}

func (h *CatalogHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orderRepo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeRepoError(w, err, "order")
		return
	}
	writeData(w, http.StatusOK, "order", o)
}

func (h *CatalogHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var o model.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil || o.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}
	if o.Quantity <= 0 {
		o.Quantity = 1
	}
	p, err := h.productRepo.GetByID(r.Context(), o.ProductID)
	if err != nil {
		writeRepoError(w, err, "product")
		return
	}
	o.ID = uuid.New().String()
	o.BuyerID = middleware.GetUserID(r.Context())
	o.TotalCents = p.PriceCents * int64(o.Quantity)
	o.Currency = p.Currency
	if o.Status == "" {
		o.Status = model.OrderPending
	}
	o.CreatedAt = time.Now().UTC()
	if err := h.orderRepo.Create(r.Context(), &o); err != nil {
		writeRepoError(w, err, "order")
		return
	}
	writeData(w, http.StatusCreated, "order", o)
}

func (h *CatalogHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var o model.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	o.ID = chi.URLParam(r, "id")
	if err := h.orderRepo.Update(r.Context(), &o); err != nil {
		writeRepoError(w, err, "order")
		return
	}
	writeData(w, http.StatusOK, "order", o)
}

func (h *CatalogHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orderRepo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeRepoError(w, err, "order")
		return
	}
	writeOK(w)
}
