package accounts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/augustodasneves/supportagent/internal/models"
)

func TestProfileFoundByIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/wa/+5511999998888" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(models.UserProfile{Name: "Maria Silva", PhoneNumber: "+5511999998888"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	profile, err := c.Profile(context.Background(), "+5511999998888")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile == nil || profile.Name != "Maria Silva" {
		t.Errorf("profile = %+v", profile)
	}
}

func TestProfileFallsBackToBareNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/users/phone/5511999998888" {
			json.NewEncoder(w).Encode(models.UserProfile{Name: "Maria Silva"})
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	profile, err := c.Profile(context.Background(), "5511999998888@s.whatsapp.net")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile == nil || profile.Name != "Maria Silva" {
		t.Errorf("profile = %+v", profile)
	}
}

func TestProfileUnknownContact(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := NewClient(srv.URL)
	profile, err := c.Profile(context.Background(), "+5511900000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile != nil {
		t.Errorf("profile = %+v, want nil", profile)
	}
}

func TestProfileServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Profile(context.Background(), "+5511900000000"); err == nil {
		t.Error("expected error on 500")
	}
}
