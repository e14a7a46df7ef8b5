package domain

import (
	"testing"
	"time"
)

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

func TestUpdateServiceApply(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := Service{
		ID:          "svc-1",
		Name:        "auth-server",
		Description: "authentication",
		BaseURL:     "http://auth:8000",
		IsVisible:   true,
		DisplayName: "Auth",
		CreatedAt:   created,
	}

	update := UpdateService{
		Name:            strPtr("authz-server"),
		IsVisible:       boolPtr(false),
		IsVisibleByRole: boolPtr(true),
	}
	update.Apply(&svc)

	if svc.Name != "authz-server" {
		t.Errorf("Name = %q, want %q", svc.Name, "authz-server")
	}
	if svc.IsVisible {
		t.Error("IsVisible should have been cleared")
	}
	if !svc.IsVisibleByRole {
		t.Error("IsVisibleByRole should have been set")
	}

	// Untouched fields keep their values
	if svc.Description != "authentication" {
		t.Errorf("Description changed to %q", svc.Description)
	}
	if svc.BaseURL != "http://auth:8000" {
		t.Errorf("BaseURL changed to %q", svc.BaseURL)
	}
	if svc.ID != "svc-1" || !svc.CreatedAt.Equal(created) {
		t.Error("identity fields must never change")
	}
}

func TestUpdateServiceApplyEmpty(t *testing.T) {
	svc := Service{ID: "svc-1", Name: "portal", IsVisible: true}
	before := svc

	UpdateService{}.Apply(&svc)

	if svc != before {
		t.Errorf("empty update mutated the record: %+v", svc)
	}
}

func TestFilterEmpty(t *testing.T) {
	if !(Filter{}).Empty() {
		t.Error("zero filter should be empty")
	}
	if (Filter{Name: "portal"}).Empty() {
		t.Error("filter with Name set should not be empty")
	}
	if (Filter{IsVisible: boolPtr(false)}).Empty() {
		t.Error("filter with IsVisible set should not be empty, even to false")
	}
}

func TestServiceDeleted(t *testing.T) {
	svc := Service{ID: "svc-1"}
	if svc.Deleted() {
		t.Error("new service should not be deleted")
	}
	now := time.Now()
	svc.DeletedAt = &now
	if !svc.Deleted() {
		t.Error("service with DeletedAt should be deleted")
	}
}
