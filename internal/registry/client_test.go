package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetStudent_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.EscapedPath() != "/api/students/NKU%2F2020%2F1234" {
			t.Fatalf("path = %s, want escaped registration number", r.URL.EscapedPath())
		}

		resp := StudentRecord{
			RegistrationNumber: "NKU/2020/1234",
			Name:               "John Doe",
			Email:              "john.doe@student.nkumba.edu",
			Faculty:            "Computing and Technology",
			Course:             "Bachelor of Science in Software Engineering",
			GraduationYear:     2024,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, err := client.GetStudent(ctx, "NKU/2020/1234")
	if err != nil {
		t.Fatalf("GetStudent error: %v", err)
	}
	if code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", code, http.StatusOK)
	}
	if res == nil || res.RegistrationNumber != "NKU/2020/1234" || res.GraduationYear != 2024 {
		t.Fatalf("unexpected response: %+v", res)
	}
}

func TestGetStudent_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, code, err := client.GetStudent(ctx, "NKU/1999/0000")
	if err != nil {
		t.Fatalf("GetStudent error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil record for 404, got %+v", res)
	}
	if code != http.StatusNotFound {
		t.Fatalf("status code = %d, want %d", code, http.StatusNotFound)
	}
}

func TestGetStudent_NotConfigured(t *testing.T) {
	client := &Client{}

	_, _, err := client.GetStudent(context.Background(), "NKU/2020/1234")
	if err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}
