package service

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestUploadValidation(t *testing.T) {
	e := newEnv(t)
	ticket := e.ticket(t, e.reporter)

	tests := []struct {
		name   string
		upload Upload
	}{
		{"empty", upload("photo.jpg", "")},
		{"too large", upload("photo.jpg", strings.Repeat("x", 1025))},
		{"extension", upload("script.sh", "echo")},
		{"no name", upload("  ", "data")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.attachments.Upload(context.Background(), e.reporter, ticket.ID, tt.upload)
			if httpStatus(err) != http.StatusBadRequest {
				t.Fatalf("expected 400, got %v", err)
			}
		})
	}
	if e.files.count() != 0 {
		t.Fatalf("rejected uploads must not be stored")
	}
}

func TestUploadUnderreportedSize(t *testing.T) {
	e := newEnv(t)
	ticket := e.ticket(t, e.reporter)
	u := upload("photo.jpg", strings.Repeat("x", 2048))
	u.Size = 10

	if _, err := e.attachments.Upload(context.Background(), e.reporter, ticket.ID, u); httpStatus(err) != http.StatusBadRequest {
		t.Fatalf("expected size check on the stream, got %v", err)
	}
	if e.files.count() != 0 {
		t.Fatalf("oversized blob should be removed")
	}
}

func TestUploadListOpen(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)

	att, err := e.attachments.Upload(ctx, e.reporter, ticket.ID, upload("Scan.PDF", "%PDF-1.4"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if att.ContentType != "application/pdf" {
		t.Fatalf("content type should be derived from the extension, got %q", att.ContentType)
	}
	if att.UploadedBy == nil || *att.UploadedBy != e.reporter.ID {
		t.Fatalf("uploader not recorded")
	}

	if _, err := e.attachments.Upload(ctx, e.other, ticket.ID, upload("x.png", "png")); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("other users cannot upload, got %v", err)
	}
	if _, err := e.attachments.List(ctx, e.other, ticket.ID); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("other users cannot list, got %v", err)
	}

	items, err := e.attachments.List(ctx, e.tech, ticket.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("list: %v (%d items)", err, len(items))
	}

	meta, rc, err := e.attachments.Open(ctx, e.admin, ticket.ID, att.ID)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "%PDF-1.4" || meta.FileName != "Scan.PDF" {
		t.Fatalf("unexpected content %q / %q", body, meta.FileName)
	}

	other := e.ticket(t, e.reporter)
	if _, _, err := e.attachments.Open(ctx, e.admin, other.ID, att.ID); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("attachment of another ticket should be 404, got %v", err)
	}
}

func TestDeleteAttachment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ticket := e.ticket(t, e.reporter)

	mine, err := e.attachments.Upload(ctx, e.reporter, ticket.ID, upload("a.jpg", "a"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	techs, err := e.attachments.Upload(ctx, e.tech, ticket.ID, upload("b.jpg", "b"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	if err := e.attachments.Delete(ctx, e.reporter, ticket.ID, techs.ID); httpStatus(err) != http.StatusForbidden {
		t.Fatalf("reporter cannot delete someone else's upload, got %v", err)
	}
	if err := e.attachments.Delete(ctx, e.reporter, ticket.ID, mine.ID); err != nil {
		t.Fatalf("uploader delete: %v", err)
	}
	if err := e.attachments.Delete(ctx, e.admin, ticket.ID, techs.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if e.files.count() != 0 {
		t.Fatalf("files should be removed, %d left", e.files.count())
	}
	if err := e.attachments.Delete(ctx, e.admin, ticket.ID, techs.ID); httpStatus(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
