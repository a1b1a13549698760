package service

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"junket-admin/internal/api"
	"junket-admin/internal/constants"
	"junket-admin/internal/domain"
	"junket-admin/internal/draft"
	"junket-admin/internal/events"
	"junket-admin/internal/picker"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ImportAPI is the slice of the admin API the import workflow drives.
type ImportAPI interface {
	ImportHistory(ctx context.Context) ([]domain.ImportBatch, error)
	ImportRecords(ctx context.Context, q api.RecordQuery) (*api.RecordsPage, error)
	UploadImport(ctx context.Context, fileName string, content []byte) (*domain.ImportResult, error)
	BulkUpdateRecords(ctx context.Context, updates []domain.RecordUpdate) (int, error)
	ConfirmImport(ctx context.Context, importID int64) error
	CalculateRewards(ctx context.Context, importID int64) (*domain.CalculationResult, error)
	CancelImport(ctx context.Context, importID int64) error
	ApproveImportRewards(ctx context.Context, importID int64) error
}

// ImportOptions holds the backend capabilities the workflow depends on.
type ImportOptions struct {
	// ConfirmTransition enables the backend's confirm endpoint.
	ConfirmTransition bool
}

type ImportService struct {
	api    ImportAPI
	drafts *draft.Store
	picker *picker.Picker
	bus    *events.Bus
	opts   ImportOptions
	logger zerolog.Logger
}

func NewImportService(client ImportAPI, drafts *draft.Store, p *picker.Picker, bus *events.Bus, opts ImportOptions, logger zerolog.Logger) *ImportService {
	return &ImportService{api: client, drafts: drafts, picker: p, bus: bus, opts: opts, logger: logger}
}

// BatchView is a history row with its staged change count and the actions
// its status allows.
type BatchView struct {
	domain.ImportBatch
	ChangeCount int
	Actions     []domain.Action
}

func (s *ImportService) History(ctx context.Context) ([]BatchView, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	batches, err := s.api.ImportHistory(apiCtx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load import history")
		return nil, fail("Failed to load import history", err)
	}

	views := make([]BatchView, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, b := range batches {
		views[i] = BatchView{ImportBatch: b, Actions: b.Actions()}
		g.Go(func() error {
			views[i].ChangeCount = s.drafts.ChangeCount(gctx, b.ID)
			return nil
		})
	}
	_ = g.Wait()

	return views, nil
}

type RecordsQuery struct {
	ImportID int64
	Page     int
	Limit    int
	Keyword  string
}

type RecordsView struct {
	Records     []draft.EffectiveRecord
	Pagination  domain.Pagination
	ChangeCount int
}

// Records fetches one page of an import and overlays the staged draft.
func (s *ImportService) Records(ctx context.Context, q RecordsQuery) (*RecordsView, error) {
	if q.ImportID <= 0 {
		return nil, &ValidationError{Field: "importId", Message: "is required"}
	}
	page, limit := normalizePage(q.Page, q.Limit)

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	fetched, err := s.api.ImportRecords(apiCtx, api.RecordQuery{
		ImportID: q.ImportID,
		Page:     page,
		Limit:    limit,
		Keyword:  strings.TrimSpace(q.Keyword),
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("import_id", q.ImportID).Msg("failed to load import records")
		return nil, fail("Failed to load import records", err)
	}

	d := s.drafts.Snapshot(ctx, q.ImportID)
	for _, r := range fetched.Records {
		if r.User != nil {
			s.picker.Remember(*r.User)
		}
	}
	for _, u := range d.MatchedUsers {
		if u != nil {
			s.picker.Remember(*u)
		}
	}

	return &RecordsView{
		Records:     draft.Merge(fetched.Records, d),
		Pagination:  fetched.Pagination,
		ChangeCount: d.ChangeCount(),
	}, nil
}

// SetMatchedUser stages userID for a record; nil stages "unmatched". Users
// already seen by the picker are staged with their full details.
func (s *ImportService) SetMatchedUser(ctx context.Context, batchID, recordID int64, userID *int64) (bool, error) {
	if batchID <= 0 || recordID <= 0 {
		return false, &ValidationError{Message: "import and record are required"}
	}

	var user *domain.UserRef
	if userID != nil {
		u, ok := s.picker.Known(*userID)
		if !ok {
			u = domain.UserRef{ID: *userID}
		}
		user = &u
	}

	changed, err := s.drafts.SetMatchedUser(ctx, batchID, recordID, user)
	if err != nil {
		return false, fail("Failed to save change", err)
	}
	s.picker.Forget(recordID)
	return changed, nil
}

func (s *ImportService) SetWinLoss(batchID, recordID int64, raw string) error {
	if batchID <= 0 || recordID <= 0 {
		return &ValidationError{Message: "import and record are required"}
	}
	s.drafts.SetWinLoss(batchID, recordID, raw)
	return nil
}

func (s *ImportService) DiscardDraft(ctx context.Context, batchID int64) error {
	if err := s.drafts.Clear(ctx, batchID); err != nil {
		return fail("Failed to discard changes", err)
	}
	return nil
}

// SearchCandidates looks up users for a record's picker. A lookup overtaken
// by a newer one for the same record reports superseded with no candidates.
func (s *ImportService) SearchCandidates(ctx context.Context, recordID int64, query string, selected *int64) ([]domain.UserRef, bool, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	if _, err := s.picker.Lookup(apiCtx, recordID, query); err != nil {
		if errors.Is(err, picker.ErrSuperseded) {
			return nil, true, nil
		}
		return nil, false, fail("Failed to search users", err)
	}

	var sel *domain.UserRef
	if selected != nil {
		sel = &domain.UserRef{ID: *selected}
	}
	return s.picker.Candidates(recordID, sel), false, nil
}

// SearchCandidatesAsync is the debounced variant. Results are announced on
// the event bus.
func (s *ImportService) SearchCandidatesAsync(batchID, recordID int64, query string) {
	s.picker.Search(batchID, recordID, query)
}

func (s *ImportService) Candidates(recordID int64, selected *int64) []domain.UserRef {
	var sel *domain.UserRef
	if selected != nil {
		sel = &domain.UserRef{ID: *selected}
	}
	return s.picker.Candidates(recordID, sel)
}

var uploadExtensions = map[string]bool{".csv": true, ".xlsx": true, ".xls": true}

type UploadResult struct {
	Result *domain.ImportResult
	Notice Notice
}

func (s *ImportService) Upload(ctx context.Context, fileName string, content []byte) (*UploadResult, error) {
	if fileName == "" || len(content) == 0 {
		return nil, &ValidationError{Field: "file", Message: "no file selected"}
	}
	if !uploadExtensions[strings.ToLower(filepath.Ext(fileName))] {
		return nil, &ValidationError{Field: "file", Message: "only .csv, .xlsx and .xls files are accepted"}
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.UploadTimeout)
	defer cancel()

	s.logger.Info().Str("file_name", fileName).Int("size", len(content)).Msg("uploading import file")

	res, err := s.api.UploadImport(apiCtx, fileName, content)
	if err != nil {
		s.logger.Error().Err(err).Str("file_name", fileName).Msg("import upload failed")
		return nil, fail("Import failed", err)
	}

	totals := printer.Sprintf("Imported %d records (%d succeeded, %d failed)", res.TotalRecords, res.SuccessRecords, res.FailedRecords)
	out := &UploadResult{Result: res, Notice: Notice{Level: LevelSuccess, Message: totals}}
	if calc := res.Calculation; calc != nil {
		if calc.Success {
			out.Notice.Message = totals + ". " + calculationSummary(calc)
		} else {
			out.Notice = warning("%s. Reward calculation failed: %s", totals, calculationError(calc))
		}
	}

	s.publish(res.ImportID, domain.StatusImported)
	return out, nil
}

type ConfirmResult struct {
	Applied int
	// Confirmed reports that the backend confirm transition ran. When it did
	// not, calculate-rewards moved the batch and Calculation is set.
	Confirmed   bool
	Calculation *domain.CalculationResult
	Notice      Notice
}

// Confirm pushes the staged draft to the backend and moves the batch on.
// With the confirm transition enabled the batch ends confirmed; otherwise
// calculate-rewards takes over, as it is the backend's confirm step. The
// draft is kept if any step fails.
func (s *ImportService) Confirm(ctx context.Context, batchID int64) (*ConfirmResult, error) {
	return s.confirm(ctx, batchID, false)
}

// ConfirmAndCalculate confirms the batch and calculates its rewards in one
// go. A calculation failure after a successful confirm leaves the batch
// confirmed.
func (s *ImportService) ConfirmAndCalculate(ctx context.Context, batchID int64) (*ConfirmResult, error) {
	return s.confirm(ctx, batchID, true)
}

func (s *ImportService) confirm(ctx context.Context, batchID int64, andCalculate bool) (*ConfirmResult, error) {
	batch, err := s.batch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !batch.Can(domain.ActionConfirm) {
		return nil, notAllowed(*batch, domain.ActionConfirm)
	}

	applied, err := s.apply(ctx, batchID)
	if err != nil {
		return nil, err
	}

	res := &ConfirmResult{Applied: applied}
	if res.Confirmed, err = s.transition(ctx, batchID); err != nil {
		return nil, err
	}

	if res.Confirmed {
		s.clear(batchID, "import confirmed but draft could not be cleared")
		s.logger.Info().Int64("import_id", batchID).Int("applied", applied).Msg("import confirmed")
		s.publish(batchID, domain.ActionConfirm.After(batch.Status))

		if !andCalculate {
			res.Notice = success("Import confirmed")
			if applied > 0 {
				res.Notice = success("Import confirmed. Applied %d change(s) to records", applied)
			}
			return res, nil
		}
	}

	fallback := "Failed to confirm import"
	if res.Confirmed {
		fallback = "Failed to calculate rewards"
	}
	calc, err := s.calculate(ctx, *batch, fallback)
	if err != nil {
		return res, err
	}
	res.Calculation = calc.Calculation
	res.Notice = calc.Notice
	if calc.Calculation.Success {
		if !res.Confirmed {
			s.clear(batchID, "import calculated but draft could not be cleared")
		}
		res.Notice = success("Import confirmed! %s", calc.Notice.Message)
	}
	return res, nil
}

// apply flushes debounced input and sends the staged edits as one bulk
// update. It returns how many records were updated.
func (s *ImportService) apply(ctx context.Context, batchID int64) (int, error) {
	s.drafts.Flush(batchID)
	// a timer that already fired may still be waiting to persist its input;
	// Snapshot sees it either way
	d := s.drafts.Snapshot(ctx, batchID)

	updates, err := d.Updates()
	if err != nil {
		var wl *draft.InvalidWinLossError
		if errors.As(err, &wl) {
			return 0, &ValidationError{Field: "winLoss", Message: wl.Error()}
		}
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	applied, err := s.api.BulkUpdateRecords(apiCtx, updates)
	if err != nil {
		s.logger.Error().Err(err).Int64("import_id", batchID).Int("updates", len(updates)).Msg("failed to apply staged changes")
		return 0, fail("Failed to update records", err)
	}
	if applied == 0 {
		applied = len(updates)
	}
	return applied, nil
}

// transition runs the backend confirm step when enabled. A backend without
// the route answers 404, which counts as not transitioned.
func (s *ImportService) transition(ctx context.Context, batchID int64) (bool, error) {
	if !s.opts.ConfirmTransition {
		return false, nil
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	err := s.api.ConfirmImport(apiCtx, batchID)
	if apiErr, ok := api.AsError(err); ok && apiErr.StatusCode == http.StatusNotFound {
		s.logger.Warn().Int64("import_id", batchID).Msg("backend has no confirm route, handing over to reward calculation")
		return false, nil
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("import_id", batchID).Msg("failed to confirm import")
		return false, fail("Failed to confirm import", err)
	}
	return true, nil
}

type CalculateResult struct {
	Calculation *domain.CalculationResult
	Notice      Notice
}

// Calculate asks the backend to compute rewards. A calculation the backend
// reports as unsuccessful is returned as a warning, not an error.
func (s *ImportService) Calculate(ctx context.Context, batchID int64) (*CalculateResult, error) {
	batch, err := s.batch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !batch.Can(domain.ActionCalculate) {
		return nil, notAllowed(*batch, domain.ActionCalculate)
	}
	return s.calculate(ctx, *batch, "Failed to calculate rewards")
}

func (s *ImportService) calculate(ctx context.Context, batch domain.ImportBatch, fallback string) (*CalculateResult, error) {
	batchID := batch.ID
	apiCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	calc, err := s.api.CalculateRewards(apiCtx, batchID)
	if err != nil {
		s.logger.Error().Err(err).Int64("import_id", batchID).Msg("failed to calculate rewards")
		return nil, fail(fallback, err)
	}

	if !calc.Success {
		s.logger.Warn().Int64("import_id", batchID).Str("error", calc.Error).Msg("reward calculation unsuccessful")
		return &CalculateResult{Calculation: calc, Notice: warning("Reward calculation failed: %s", calculationError(calc))}, nil
	}

	s.publish(batchID, domain.ActionCalculate.After(batch.Status))
	return &CalculateResult{Calculation: calc, Notice: Notice{Level: LevelSuccess, Message: calculationSummary(calc)}}, nil
}

func (s *ImportService) Approve(ctx context.Context, batchID int64) (Notice, error) {
	batch, err := s.batch(ctx, batchID)
	if err != nil {
		return Notice{}, err
	}
	if !batch.Can(domain.ActionApprove) {
		return Notice{}, notAllowed(*batch, domain.ActionApprove)
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	if err := s.api.ApproveImportRewards(apiCtx, batchID); err != nil {
		s.logger.Error().Err(err).Int64("import_id", batchID).Msg("failed to approve rewards")
		return Notice{}, fail("Failed to approve rewards", err)
	}

	s.logger.Info().Int64("import_id", batchID).Int("pending_rewards", batch.PendingRewards).Msg("rewards approved")
	s.publish(batchID, domain.ActionApprove.After(batch.Status))
	return success("Approved %d pending reward(s)", batch.PendingRewards), nil
}

// Cancel deletes a batch that has not been calculated yet and drops its draft.
func (s *ImportService) Cancel(ctx context.Context, batchID int64) (Notice, error) {
	batch, err := s.batch(ctx, batchID)
	if err != nil {
		return Notice{}, err
	}
	if !batch.Can(domain.ActionCancel) {
		return Notice{}, notAllowed(*batch, domain.ActionCancel)
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	if err := s.api.CancelImport(apiCtx, batchID); err != nil {
		s.logger.Error().Err(err).Int64("import_id", batchID).Msg("failed to cancel import")
		return Notice{}, fail("Failed to delete draft import", err)
	}
	s.clear(batchID, "import deleted but draft could not be cleared")

	s.logger.Info().Int64("import_id", batchID).Msg("import cancelled")
	if s.bus != nil {
		s.bus.Publish(events.Event{Kind: events.BatchDeleted, BatchID: batchID})
	}
	return success("Draft import deleted"), nil
}

func (s *ImportService) batch(ctx context.Context, batchID int64) (*domain.ImportBatch, error) {
	if batchID <= 0 {
		return nil, &ValidationError{Field: "importId", Message: "is required"}
	}

	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	batches, err := s.api.ImportHistory(apiCtx)
	if err != nil {
		return nil, fail("Failed to load import history", err)
	}
	for i := range batches {
		if batches[i].ID == batchID {
			return &batches[i], nil
		}
	}
	return nil, ErrBatchNotFound
}

// clear drops the draft once the backend holds its edits.
func (s *ImportService) clear(batchID int64, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
	defer cancel()
	if err := s.drafts.Clear(ctx, batchID); err != nil {
		s.logger.Warn().Err(err).Int64("import_id", batchID).Msg(msg)
	}
}

func (s *ImportService) publish(batchID int64, status domain.ImportStatus) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{Kind: events.BatchTransitioned, BatchID: batchID, Status: string(status)})
}

func calculationSummary(calc *domain.CalculationResult) string {
	return printer.Sprintf("Calculated %d rewards totaling %d JPY", calc.TotalCalculations, wholeYen(calc.TotalRewardAmount))
}

func calculationError(calc *domain.CalculationResult) string {
	if calc.Error == "" {
		return "Unknown error"
	}
	return calc.Error
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	return page, limit
}
