package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_ListBookings(t *testing.T) {
	var gotAuth, gotOrg, gotFrom string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotOrg = r.URL.Query().Get("org_id")
		gotFrom = r.URL.Query().Get("from")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"id":"b1","status":"completed","start_at":"2024-05-01T14:00:00Z","patient_id":"p1"},
			{"id":"b2","status":"no_show","start_at":"2024-05-01T16:00:00Z","patient_id":"p2"}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-token")
	from := time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 4, 6, 0, 0, 0, time.UTC)

	bookings, err := client.ListBookings(context.Background(), "org-1", from, to)
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}

	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotOrg != "org-1" {
		t.Errorf("org_id = %q", gotOrg)
	}
	if gotFrom != "2024-05-01T06:00:00Z" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(bookings) != 2 {
		t.Fatalf("bookings = %d, want 2", len(bookings))
	}
	if bookings[0].ID != "b1" || bookings[0].Status != "completed" {
		t.Errorf("bookings[0] = %+v", bookings[0])
	}
	if bookings[1].PatientID != "p2" {
		t.Errorf("bookings[1] = %+v", bookings[1])
	}
}

func TestClient_ListBookings_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t")
	bookings, err := client.ListBookings(context.Background(), "org-1", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if bookings == nil || len(bookings) != 0 {
		t.Errorf("bookings = %v, want empty non-nil slice", bookings)
	}
}

func TestClient_ListBookings_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "t")
	_, err := client.ListBookings(context.Background(), "org-1", time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
