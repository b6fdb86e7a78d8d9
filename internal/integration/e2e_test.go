//go:build integration
// +build integration

package integration

import (
	"strings"
	"testing"

	"docchat/internal/domain"
)

func TestE2E_LiveBackendRoundTrip(t *testing.T) {
	SkipIfShort(t)
	cfg := LoadConfig()
	SkipIfNoBackend(t, cfg)

	ctx := NewTestContext(t, cfg.TestTimeout)
	s := NewStack(t, cfg.BackendURL, cfg.APIKey)

	h, err := s.Client.Health(ctx)
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	t.Logf("backend %s status=%s", h.Version, h.Status)

	rep, err := s.Docs.Upload(ctx, []domain.UploadFile{{
		Name: "docchat-e2e.txt",
		Size: int64(len(e2eDocument)),
		Data: []byte(e2eDocument),
	}})
	if err != nil {
		t.Fatalf("upload failed: %v (failed: %v)", err, rep.Failed)
	}
	if len(rep.Uploaded) != 1 {
		t.Fatalf("expected 1 uploaded document, got %d", len(rep.Uploaded))
	}
	docID := rep.Uploaded[0].ID
	t.Cleanup(func() {
		_ = s.Docs.Remove(NewTestContext(t, cfg.TestTimeout), docID)
	})

	msg, err := s.Orch.Submit(ctx, "heliotrope warranty", domain.ModeLiteralSearch)
	if err != nil {
		t.Fatalf("literal search failed: %v", err)
	}
	if len(msg.Sources) == 0 {
		t.Fatalf("expected at least one source, got reply %q", msg.Content)
	}

	if cfg.SkipSlow {
		t.Log("skipping reasoning QA (SKIP_SLOW_TESTS=1)")
		return
	}
	msg, err = s.Orch.Submit(ctx, "How long is the heliotrope warranty?", domain.ModeReasoningQA)
	if err != nil {
		t.Fatalf("reasoning QA failed: %v", err)
	}
	if !strings.Contains(msg.Content, "7") {
		t.Logf("answer did not mention the warranty length: %q", msg.Content)
	}

	st := s.Store.State()
	if st.IsLoading {
		t.Error("loading flag left set")
	}
	if got := len(st.Messages); got != 4 {
		t.Errorf("expected 4 messages, got %d", got)
	}
}

const e2eDocument = `Heliotrope Appliance Warranty

Every heliotrope appliance carries a warranty of 7 years from the date of
purchase. The heliotrope warranty covers parts and labour.
`
