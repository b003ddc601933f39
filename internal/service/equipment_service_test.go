package service

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestEquipmentListPagingAndFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, in := range []EquipmentInput{
		{Name: "Laser printer", DeviceType: "印表機", SerialNumber: "P002", Department: "業務部"},
		{Name: "Projector", DeviceType: "投影機", SerialNumber: "PJ-9", Department: "IT部"},
		{Name: "Backup PC", DeviceType: "電腦", SerialNumber: "PC-777", Department: "IT部"},
	} {
		if _, err := e.equipment.Create(ctx, in); err != nil {
			t.Fatalf("create %s: %v", in.Name, err)
		}
	}

	page, err := e.equipment.List(ctx, EquipmentQuery{PageRequest: PageRequest{Page: 0, PageSize: 2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Page != 1 || page.PageSize != 2 || page.TotalCount != 4 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("unexpected page %+v", page.PageInfo)
	}

	page, _ = e.equipment.List(ctx, EquipmentQuery{PageRequest: PageRequest{PageSize: 500}})
	if page.PageSize != 50 {
		t.Fatalf("page size should be capped at 50, got %d", page.PageSize)
	}

	page, _ = e.equipment.List(ctx, EquipmentQuery{Search: "pc-7"})
	if page.TotalCount != 1 || page.Items[0].SerialNumber != "PC-777" {
		t.Fatalf("search should match serial number case-insensitively: %+v", page.Items)
	}

	page, _ = e.equipment.List(ctx, EquipmentQuery{Department: "IT部", SortBy: "name", SortOrder: "desc"})
	if page.TotalCount != 2 || page.Items[0].Name != "Projector" {
		t.Fatalf("unexpected filtered order %+v", page.Items)
	}
}

func TestEquipmentLookupsAreCachedAndInvalidated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	types, err := e.equipment.DeviceTypes(ctx)
	if err != nil || len(types) != 1 || types[0] != "電腦" {
		t.Fatalf("unexpected device types %v %v", types, err)
	}
	if _, err := e.equipment.DeviceTypes(ctx); err != nil {
		t.Fatal(err)
	}
	if e.lookup.hits != 1 {
		t.Fatalf("second read should hit the cache, hits=%d", e.lookup.hits)
	}

	if _, err := e.equipment.Create(ctx, EquipmentInput{Name: "Printer", DeviceType: "印表機"}); err != nil {
		t.Fatal(err)
	}
	types, _ = e.equipment.DeviceTypes(ctx)
	if len(types) != 2 {
		t.Fatalf("cache should be invalidated on write, got %v", types)
	}
}

func TestEquipmentDeleteRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.ticket(t, e.reporter)
	if err := e.equipment.Delete(ctx, e.device.ID); httpStatus(err) != http.StatusConflict {
		t.Fatalf("expected 409 while referenced, got %v", err)
	}
	if err := e.equipment.Delete(ctx, "missing"); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}

	spare, _ := e.equipment.Create(ctx, EquipmentInput{Name: "Spare"})
	if err := e.equipment.Delete(ctx, spare.ID); err != nil {
		t.Fatalf("delete unreferenced: %v", err)
	}
	if _, err := e.equipment.Get(ctx, spare.ID); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("expected deleted equipment to be gone, got %v", err)
	}
}

func TestEquipmentCreateRequiresName(t *testing.T) {
	e := newEnv(t)
	if _, err := e.equipment.Create(context.Background(), EquipmentInput{Name: "  "}); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestRecordMaintenanceAdvancesLastMaintenance(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	later := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := e.equipment.RecordMaintenance(ctx, e.tech, e.device.ID, MaintenanceInput{
		MaintenanceDate: later, MaintenanceType: "保養", Cost: 500,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := e.equipment.RecordMaintenance(ctx, e.tech, e.device.ID, MaintenanceInput{
		MaintenanceDate: earlier, MaintenanceType: "檢查",
	}); err != nil {
		t.Fatalf("record earlier: %v", err)
	}

	device, _ := e.equipment.Get(ctx, e.device.ID)
	if device.LastMaintenanceDate == nil || !device.LastMaintenanceDate.Equal(later) {
		t.Fatalf("last maintenance should stay at the later date, got %v", device.LastMaintenanceDate)
	}
	records, err := e.equipment.ListMaintenance(ctx, e.device.ID)
	if err != nil || len(records) != 2 {
		t.Fatalf("expected two records, got %d (%v)", len(records), err)
	}
	if records[0].PerformedBy != e.tech.ID {
		t.Fatalf("performed_by should be the actor, got %s", records[0].PerformedBy)
	}

	_, err = e.equipment.RecordMaintenance(ctx, e.tech, e.device.ID, MaintenanceInput{Cost: -1})
	if httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %v", err)
	}
}
