package handler

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/markethub/internal/model"
)

func renderCSV(t *testing.T, filename string, header []string, rows [][]string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	writeCSV(rec, filename, header, rows)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, filename) {
		t.Fatalf("content disposition %q missing %q", cd, filename)
	}
	return rec.Body.String()
}

func TestCategoryCSV(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	header, rows := categoryCSV([]model.Category{
		{ID: "c1", Name: "Tools", Slug: "tools", CreatedAt: created},
	})
	got := renderCSV(t, "categories.csv", header, rows)
	want := "id,name,slug,created_at\nc1,Tools,tools,2026-03-01T10:00:00Z\n"
	if got != want {
		t.Fatalf("csv mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestProductCSVRendersPriceInMajorUnits(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	header, rows := productCSV([]model.Product{
		{ID: "p1", Name: "Drill", VendorID: "v1", CategoryID: "c1",
			PriceCents: 129950, Currency: "USD", InStock: true, CreatedAt: created},
	})
	got := renderCSV(t, "products.csv", header, rows)
	want := "id,name,vendor_id,category_id,price,currency,in_stock,created_at\n" +
		"p1,Drill,v1,c1,1299.50,USD,true,2026-03-01T10:00:00Z\n"
	if got != want {
		t.Fatalf("csv mismatch:\ngot  %q\nwant %q", got, want)
	}
}

func TestCatalogCSVCoversEveryListEntity(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	type export struct {
		name   string
		header []string
		rows   [][]string
	}
	var exports []export
	add := func(name string, header []string, rows [][]string) {
		exports = append(exports, export{name, header, rows})
	}

	h, r := categoryCSV([]model.Category{{ID: "c1", CreatedAt: created}})
	add("categories", h, r)
	h, r = companyCSV([]model.Company{{ID: "co1", CreatedAt: created}})
	add("companies", h, r)
	h, r = serviceCSV([]model.Service{{ID: "s1", CreatedAt: created}})
	add("services", h, r)
	h, r = bookingCSV([]model.Booking{{ID: "b1", ScheduledAt: created, CreatedAt: created}})
	add("bookings", h, r)
	h, r = orderCSV([]model.Order{{ID: "o1", Quantity: 2, TotalCents: 500, CreatedAt: created}})
	add("orders", h, r)

	for _, e := range exports {
		if len(e.rows) != 1 {
			t.Fatalf("%s: %d rows, want 1", e.name, len(e.rows))
		}
		if len(e.rows[0]) != len(e.header) {
			t.Fatalf("%s: row width %d does not match header width %d",
				e.name, len(e.rows[0]), len(e.header))
		}
	}
}

func TestWantsCSV(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/products?format=csv", nil)
	if !wantsCSV(r) {
		t.Fatal("format=csv should select the export path")
	}
	r = httptest.NewRequest("GET", "/api/products", nil)
	if wantsCSV(r) {
		t.Fatal("no format param should return json")
	}
}
