package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"docchat/internal/domain"
	"docchat/internal/infra/tracer"
	"docchat/internal/usecase/store"
)

// UploadLimits are the client-side checks applied before anything is sent.
type UploadLimits struct {
	MaxFiles          int
	MaxFileSize       int64
	AllowedExtensions []string // lower case, with leading dot
}

// DefaultUploadLimits mirrors the backend: 10 files of at most 10 MiB, PDF or TXT.
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{MaxFiles: 10, MaxFileSize: 10 << 20, AllowedExtensions: []string{".pdf", ".txt"}}
}

// DocumentServiceDeps holds the collaborators of a DocumentService.
type DocumentServiceDeps struct {
	Store     *store.Store
	Repo      domain.DocumentRepository
	Inspector domain.DocumentInspector // optional, nil = no detail, chunks or stats
	Catalog   *Catalog                 // optional, nil = English
	Bus       domain.EventBus          // optional, nil = no documents.changed events
	Logger    *slog.Logger
	Clock     func() time.Time // optional, nil = time.Now
	Limits    UploadLimits
}

// DocumentService drives the document collection of the store from the
// repository's results.
type DocumentService struct {
	deps DocumentServiceDeps
}

// UploadReport is the per-file outcome of an upload.
type UploadReport struct {
	Uploaded []domain.Document
	Failed   []string // "<file>: <reason>" or backend-provided reasons
}

// NewDocumentService creates a document service.
func NewDocumentService(deps DocumentServiceDeps) *DocumentService {
	if deps.Catalog == nil {
		deps.Catalog = NewCatalog(DefaultLocale)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	def := DefaultUploadLimits()
	if deps.Limits.MaxFiles <= 0 {
		deps.Limits.MaxFiles = def.MaxFiles
	}
	if deps.Limits.MaxFileSize <= 0 {
		deps.Limits.MaxFileSize = def.MaxFileSize
	}
	if len(deps.Limits.AllowedExtensions) == 0 {
		deps.Limits.AllowedExtensions = def.AllowedExtensions
	}
	return &DocumentService{deps: deps}
}

// Validate splits files into those that pass the client-side checks and the
// rejection reasons for the rest. Files past MaxFiles are rejected.
func (s *DocumentService) Validate(files []domain.UploadFile) ([]domain.UploadFile, []string) {
	lim := s.deps.Limits
	var ok []domain.UploadFile
	var rejected []string
	for i, f := range files {
		name := filepath.Base(f.Name)
		ext := strings.ToLower(filepath.Ext(name))
		switch {
		case i >= lim.MaxFiles:
			rejected = append(rejected, fmt.Sprintf("%s: exceeds the %d-file limit", name, lim.MaxFiles))
		case !slices.Contains(lim.AllowedExtensions, ext):
			rejected = append(rejected, fmt.Sprintf("%s: unsupported file type %q", name, ext))
		case f.Size <= 0:
			rejected = append(rejected, fmt.Sprintf("%s: file is empty", name))
		case f.Size > lim.MaxFileSize:
			rejected = append(rejected, fmt.Sprintf("%s: %d bytes exceeds the %d-byte limit", name, f.Size, lim.MaxFileSize))
		default:
			ok = append(ok, f)
		}
	}
	return ok, rejected
}

// ReadFiles loads local files for Upload. Files over the size limit are
// returned without data so that Validate rejects them; unreadable paths are
// reported as "<path>: <reason>".
func (s *DocumentService) ReadFiles(paths []string) ([]domain.UploadFile, []string) {
	var files []domain.UploadFile
	var failed []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", p, errors.Unwrap(err)))
			continue
		}
		if info.IsDir() {
			failed = append(failed, p+": is a directory")
			continue
		}
		f := domain.UploadFile{Name: p, Size: info.Size()}
		if f.Size <= s.deps.Limits.MaxFileSize {
			if f.Data, err = os.ReadFile(p); err != nil {
				failed = append(failed, fmt.Sprintf("%s: %v", p, errors.Unwrap(err)))
				continue
			}
		}
		files = append(files, f)
	}
	return files, failed
}

// Upload validates and uploads files. Every committed document becomes an
// AddDocument action; failures are aggregated into one error that is
// UPLOAD_PARTIAL_FAILURE when something succeeded and UPLOAD_ERROR otherwise.
// Success and partial failure are reported together.
func (s *DocumentService) Upload(ctx context.Context, files []domain.UploadFile) (UploadReport, error) {
	const op = "Documents.Upload"
	if len(files) == 0 {
		return UploadReport{}, domain.NewDomainError(op, domain.ErrInvalidInput, "no files")
	}

	stateCtx := context.WithoutCancel(ctx)
	// One request at a time: a pending question or upload keeps the loading
	// flag until it settles.
	if _, ok := s.deps.Store.Begin(stateCtx, store.SetError{}, store.SetSuccess{}); !ok {
		return UploadReport{}, domain.NewDomainError(op, domain.ErrRequestInFlight, "loading")
	}

	ctx, span := tracer.StartSpan(ctx, "documents.upload",
		trace.WithAttributes(tracer.IntAttr("upload.files", len(files))),
	)
	defer span.End()

	valid, rejected := s.Validate(files)
	rep := UploadReport{Failed: rejected}

	var transportErr error
	if len(valid) > 0 {
		res, err := s.deps.Repo.Upload(ctx, valid)
		switch {
		case err != nil:
			transportErr = err
			rep.Failed = append(rep.Failed, err.Error())
		case res != nil:
			rep.Uploaded = res.Succeeded
			rep.Failed = append(rep.Failed, res.Failed...)
			if len(res.Succeeded) == 0 && len(res.Failed) == 0 {
				rep.Failed = append(rep.Failed, "no documents were ingested")
			}
		}
	}

	actions := make([]store.Action, 0, len(rep.Uploaded)+3)
	for _, d := range rep.Uploaded {
		actions = append(actions, store.AddDocument{Document: d})
	}
	if len(rep.Uploaded) > 0 {
		actions = append(actions, store.SetSuccess{Message: s.deps.Catalog.Uploaded(len(rep.Uploaded))})
	}

	var resultErr error
	if len(rep.Failed) > 0 {
		code, sentinel := domain.CodeUploadError, domain.ErrUploadFailed
		if len(rep.Uploaded) > 0 {
			code, sentinel = domain.CodeUploadPartialFailure, domain.ErrUploadPartial
		}
		msg := s.deps.Catalog.UploadFailed(rep.Failed)
		actions = append(actions, store.SetError{Err: domain.NewStateError(code, msg, s.deps.Clock())})
		resultErr = domain.NewDomainError(op, sentinel, msg)
		if transportErr != nil {
			resultErr = fmt.Errorf("%w: %w", resultErr, transportErr)
		}
		tracer.RecordError(span, resultErr)
	} else {
		tracer.SetOK(span)
	}
	actions = append(actions, store.SetLoading{Loading: false})
	s.deps.Store.Dispatch(stateCtx, actions...)

	s.deps.Logger.Info("upload finished", "uploaded", len(rep.Uploaded), "failed", len(rep.Failed))
	if len(rep.Uploaded) > 0 {
		s.changed(stateCtx)
	}
	return rep, resultErr
}

// Refresh replaces the document collection with one page of the listing.
func (s *DocumentService) Refresh(ctx context.Context, offset, limit int) ([]domain.Document, error) {
	page, err := s.deps.Repo.List(ctx, offset, limit)
	if err != nil {
		s.reportError(ctx, "list documents", err)
		return nil, domain.WrapOp("Documents.Refresh", err)
	}
	var docs []domain.Document
	if page != nil {
		docs = page.Documents
	}
	s.deps.Store.Dispatch(ctx, store.SetDocuments{Documents: docs})
	return docs, nil
}

// Remove deletes a document. A document the backend no longer knows is
// dropped locally as well.
func (s *DocumentService) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return domain.NewDomainError("Documents.Remove", domain.ErrInvalidInput, "empty id")
	}
	name := id
	if d, ok := s.deps.Store.State().Document(id); ok {
		name = d.DisplayName()
	}

	if err := s.deps.Repo.Remove(ctx, id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.reportError(ctx, "remove document", err)
		return domain.WrapOp("Documents.Remove", err)
	}
	s.deps.Store.Dispatch(ctx,
		store.RemoveDocument{ID: id},
		store.SetSuccess{Message: s.deps.Catalog.Removed(name)},
	)
	s.changed(ctx)
	return nil
}

// Get fetches one document and refreshes its entry in the collection.
func (s *DocumentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	const op = "Documents.Get"
	if err := s.inspectable(op, id); err != nil {
		return nil, err
	}
	d, err := s.deps.Inspector.Get(ctx, id)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	if _, known := s.deps.Store.State().Document(d.ID); known {
		s.deps.Store.Dispatch(ctx, store.AddDocument{Document: *d})
	}
	return d, nil
}

// Chunks lists the indexed chunks of a document in chunk order.
func (s *DocumentService) Chunks(ctx context.Context, id string) ([]domain.DocumentChunk, error) {
	const op = "Documents.Chunks"
	if err := s.inspectable(op, id); err != nil {
		return nil, err
	}
	chunks, err := s.deps.Inspector.Chunks(ctx, id)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	slices.SortStableFunc(chunks, func(a, b domain.DocumentChunk) int { return a.Index - b.Index })
	return chunks, nil
}

// statsPageSize is the listing page used to derive stats; the backend caps
// pages at 100.
const statsPageSize = 100

// maxStatsPages bounds the listing walk of a derived stats report.
const maxStatsPages = 100

// Stats reports collection statistics. When the backend has no stats route
// (it answers 404) the numbers are derived from the document listing.
func (s *DocumentService) Stats(ctx context.Context) (*domain.DocumentStats, error) {
	const op = "Documents.Stats"
	if s.deps.Inspector == nil {
		return nil, domain.NewDomainError(op, domain.ErrInvalidInput, "document inspection is not available")
	}
	st, err := s.deps.Inspector.Stats(ctx)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.WrapOp(op, err)
	}
	s.deps.Logger.Debug("stats route unavailable, deriving from listing")
	st, err = s.deriveStats(ctx)
	if err != nil {
		return nil, domain.WrapOp(op, err)
	}
	return st, nil
}

func (s *DocumentService) deriveStats(ctx context.Context) (*domain.DocumentStats, error) {
	st := &domain.DocumentStats{
		ByStatus:  map[string]int{},
		ByType:    map[string]int{},
		Timestamp: s.deps.Clock(),
		Derived:   true,
	}
	for pages, offset := 0, 0; pages < maxStatsPages; pages++ {
		page, err := s.deps.Repo.List(ctx, offset, statsPageSize)
		if err != nil {
			return nil, err
		}
		if page == nil || len(page.Documents) == 0 {
			break
		}
		for _, d := range page.Documents {
			st.Total++
			st.TotalSizeBytes += d.Size
			st.TotalChunks += d.ChunkCount
			st.ByStatus[d.Status]++
			st.ByType[d.Type]++
		}
		offset += len(page.Documents)
		if page.Total > 0 && offset >= page.Total {
			break
		}
	}
	if st.Total > 0 {
		st.AvgSizeBytes = float64(st.TotalSizeBytes) / float64(st.Total)
	}
	return st, nil
}

func (s *DocumentService) inspectable(op, id string) error {
	if s.deps.Inspector == nil {
		return domain.NewDomainError(op, domain.ErrInvalidInput, "document inspection is not available")
	}
	if strings.TrimSpace(id) == "" {
		return domain.NewDomainError(op, domain.ErrInvalidInput, "empty id")
	}
	return nil
}

func (s *DocumentService) reportError(ctx context.Context, what string, err error) {
	code := domain.ErrorCodeOf(err)
	if code != domain.CodeNetworkError {
		code = domain.CodeUnknown
	}
	s.deps.Logger.Warn(what+" failed", "code", code, "error", err)
	s.deps.Store.Dispatch(context.WithoutCancel(ctx), store.SetError{Err: domain.NewStateError(code, err.Error(), s.deps.Clock())})
}

func (s *DocumentService) changed(ctx context.Context) {
	if s.deps.Bus == nil {
		return
	}
	s.deps.Bus.Publish(ctx, domain.Event{
		Type:      domain.EventDocumentsChanged,
		Timestamp: s.deps.Clock(),
		SessionID: s.deps.Store.SessionID(),
	})
}
