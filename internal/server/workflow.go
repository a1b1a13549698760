package server

import (
	"context"
	"net/http"

	"junket-admin/internal/service"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const ImportWorkflowName = "junket.v1.ImportWorkflow"

const (
	ListHistoryProcedure         = "/" + ImportWorkflowName + "/ListHistory"
	ListRecordsProcedure         = "/" + ImportWorkflowName + "/ListRecords"
	SetMatchedUserProcedure      = "/" + ImportWorkflowName + "/SetMatchedUser"
	SetWinLossProcedure          = "/" + ImportWorkflowName + "/SetWinLoss"
	DiscardDraftProcedure        = "/" + ImportWorkflowName + "/DiscardDraft"
	SearchCandidatesProcedure    = "/" + ImportWorkflowName + "/SearchCandidates"
	ConfirmProcedure             = "/" + ImportWorkflowName + "/Confirm"
	ConfirmAndCalculateProcedure = "/" + ImportWorkflowName + "/ConfirmAndCalculate"
	CalculateProcedure           = "/" + ImportWorkflowName + "/Calculate"
	ApproveProcedure             = "/" + ImportWorkflowName + "/Approve"
	CancelProcedure              = "/" + ImportWorkflowName + "/Cancel"
)

type WorkflowServer struct {
	imports *service.ImportService
	logger  zerolog.Logger
}

func NewWorkflowServer(imports *service.ImportService, logger zerolog.Logger) *WorkflowServer {
	return &WorkflowServer{imports: imports, logger: logger}
}

func (s *WorkflowServer) ListHistory(ctx context.Context, req *connect.Request[ListHistoryRequest]) (*connect.Response[ListHistoryResponse], error) {
	views, err := s.imports.History(ctx)
	if err != nil {
		return nil, s.fail(ctx, ListHistoryProcedure, err)
	}
	resp := &ListHistoryResponse{Batches: make([]Batch, 0, len(views))}
	for _, v := range views {
		resp.Batches = append(resp.Batches, toBatch(v))
	}
	return connect.NewResponse(resp), nil
}

func (s *WorkflowServer) ListRecords(ctx context.Context, req *connect.Request[ListRecordsRequest]) (*connect.Response[ListRecordsResponse], error) {
	view, err := s.imports.Records(ctx, service.RecordsQuery{
		ImportID: req.Msg.ImportID,
		Page:     req.Msg.Page,
		Limit:    req.Msg.Limit,
		Keyword:  req.Msg.Keyword,
	})
	if err != nil {
		return nil, s.fail(ctx, ListRecordsProcedure, err)
	}
	resp := &ListRecordsResponse{
		Records:     make([]Record, 0, len(view.Records)),
		Pagination:  view.Pagination,
		ChangeCount: view.ChangeCount,
	}
	for _, r := range view.Records {
		resp.Records = append(resp.Records, toRecord(r))
	}
	return connect.NewResponse(resp), nil
}

func (s *WorkflowServer) SetMatchedUser(ctx context.Context, req *connect.Request[SetMatchedUserRequest]) (*connect.Response[SetMatchedUserResponse], error) {
	changed, err := s.imports.SetMatchedUser(ctx, req.Msg.ImportID, req.Msg.RecordID, req.Msg.UserID)
	if err != nil {
		return nil, s.fail(ctx, SetMatchedUserProcedure, err)
	}
	return connect.NewResponse(&SetMatchedUserResponse{Changed: changed}), nil
}

func (s *WorkflowServer) SetWinLoss(ctx context.Context, req *connect.Request[SetWinLossRequest]) (*connect.Response[SetWinLossResponse], error) {
	if err := s.imports.SetWinLoss(req.Msg.ImportID, req.Msg.RecordID, req.Msg.WinLoss); err != nil {
		return nil, s.fail(ctx, SetWinLossProcedure, err)
	}
	return connect.NewResponse(&SetWinLossResponse{}), nil
}

func (s *WorkflowServer) DiscardDraft(ctx context.Context, req *connect.Request[BatchRequest]) (*connect.Response[NoticeResponse], error) {
	if err := s.imports.DiscardDraft(ctx, req.Msg.ImportID); err != nil {
		return nil, s.fail(ctx, DiscardDraftProcedure, err)
	}
	return connect.NewResponse(&NoticeResponse{Notice: service.Notice{Level: service.LevelSuccess, Message: "Changes discarded"}}), nil
}

func (s *WorkflowServer) SearchCandidates(ctx context.Context, req *connect.Request[SearchCandidatesRequest]) (*connect.Response[SearchCandidatesResponse], error) {
	if req.Msg.Debounced {
		s.imports.SearchCandidatesAsync(req.Msg.ImportID, req.Msg.RecordID, req.Msg.Query)
		return connect.NewResponse(&SearchCandidatesResponse{
			Candidates: s.imports.Candidates(req.Msg.RecordID, req.Msg.SelectedUserID),
		}), nil
	}

	users, superseded, err := s.imports.SearchCandidates(ctx, req.Msg.RecordID, req.Msg.Query, req.Msg.SelectedUserID)
	if err != nil {
		return nil, s.fail(ctx, SearchCandidatesProcedure, err)
	}
	return connect.NewResponse(&SearchCandidatesResponse{Candidates: users, Superseded: superseded}), nil
}

func (s *WorkflowServer) Confirm(ctx context.Context, req *connect.Request[BatchRequest]) (*connect.Response[ConfirmResponse], error) {
	res, err := s.imports.Confirm(ctx, req.Msg.ImportID)
	if err != nil {
		return nil, s.fail(ctx, ConfirmProcedure, err)
	}
	return connect.NewResponse(toConfirmResponse(res)), nil
}

func (s *WorkflowServer) ConfirmAndCalculate(ctx context.Context, req *connect.Request[BatchRequest]) (*connect.Response[ConfirmResponse], error) {
	res, err := s.imports.ConfirmAndCalculate(ctx, req.Msg.ImportID)
	if err != nil {
		return nil, s.fail(ctx, ConfirmAndCalculateProcedure, err)
	}
	return connect.NewResponse(toConfirmResponse(res)), nil
}

func (s *WorkflowServer) Calculate(ctx context.Context, req *connect.Request[BatchRequest]) (*connect.Response[CalculateResponse], error) {
	res, err := s.imports.Calculate(ctx, req.Msg.ImportID)
	if err != nil {
		return nil, s.fail(ctx, CalculateProcedure, err)
	}
	return connect.NewResponse(&CalculateResponse{Calculation: toCalculation(res.Calculation), Notice: res.Notice}), nil
}

func (s *WorkflowServer) Approve(ctx context.Context, req *connect.Request[BatchRequest]) (*connect.Response[NoticeResponse], error) {
	notice, err := s.imports.Approve(ctx, req.Msg.ImportID)
	if err != nil {
		return nil, s.fail(ctx, ApproveProcedure, err)
	}
	return connect.NewResponse(&NoticeResponse{Notice: notice}), nil
}

func (s *WorkflowServer) Cancel(ctx context.Context, req *connect.Request[BatchRequest]) (*connect.Response[NoticeResponse], error) {
	notice, err := s.imports.Cancel(ctx, req.Msg.ImportID)
	if err != nil {
		return nil, s.fail(ctx, CancelProcedure, err)
	}
	return connect.NewResponse(&NoticeResponse{Notice: notice}), nil
}

func (s *WorkflowServer) fail(ctx context.Context, procedure string, err error) error {
	log := zerolog.Ctx(ctx)
	if log.GetLevel() == zerolog.Disabled {
		log = &s.logger
	}
	log.Warn().Err(err).Str("procedure", procedure).Msg("rpc failed")
	return connectError(err)
}

// NewWorkflowHandler mounts every workflow procedure under one path prefix.
func NewWorkflowHandler(s *WorkflowServer, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ListHistoryProcedure, connect.NewUnaryHandler(ListHistoryProcedure, s.ListHistory, opts...))
	mux.Handle(ListRecordsProcedure, connect.NewUnaryHandler(ListRecordsProcedure, s.ListRecords, opts...))
	mux.Handle(SetMatchedUserProcedure, connect.NewUnaryHandler(SetMatchedUserProcedure, s.SetMatchedUser, opts...))
	mux.Handle(SetWinLossProcedure, connect.NewUnaryHandler(SetWinLossProcedure, s.SetWinLoss, opts...))
	mux.Handle(DiscardDraftProcedure, connect.NewUnaryHandler(DiscardDraftProcedure, s.DiscardDraft, opts...))
	mux.Handle(SearchCandidatesProcedure, connect.NewUnaryHandler(SearchCandidatesProcedure, s.SearchCandidates, opts...))
	mux.Handle(ConfirmProcedure, connect.NewUnaryHandler(ConfirmProcedure, s.Confirm, opts...))
	mux.Handle(ConfirmAndCalculateProcedure, connect.NewUnaryHandler(ConfirmAndCalculateProcedure, s.ConfirmAndCalculate, opts...))
	mux.Handle(CalculateProcedure, connect.NewUnaryHandler(CalculateProcedure, s.Calculate, opts...))
	mux.Handle(ApproveProcedure, connect.NewUnaryHandler(ApproveProcedure, s.Approve, opts...))
	mux.Handle(CancelProcedure, connect.NewUnaryHandler(CancelProcedure, s.Cancel, opts...))

	return "/" + ImportWorkflowName + "/", mux
}

// WorkflowClient calls the workflow over Connect with the JSON codec.
type WorkflowClient struct {
	listHistory         *connect.Client[ListHistoryRequest, ListHistoryResponse]
	listRecords         *connect.Client[ListRecordsRequest, ListRecordsResponse]
	setMatchedUser      *connect.Client[SetMatchedUserRequest, SetMatchedUserResponse]
	setWinLoss          *connect.Client[SetWinLossRequest, SetWinLossResponse]
	discardDraft        *connect.Client[BatchRequest, NoticeResponse]
	searchCandidates    *connect.Client[SearchCandidatesRequest, SearchCandidatesResponse]
	confirm             *connect.Client[BatchRequest, ConfirmResponse]
	confirmAndCalculate *connect.Client[BatchRequest, ConfirmResponse]
	calculate           *connect.Client[BatchRequest, CalculateResponse]
	approve             *connect.Client[BatchRequest, NoticeResponse]
	cancel              *connect.Client[BatchRequest, NoticeResponse]
}

func NewWorkflowClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *WorkflowClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &WorkflowClient{
		listHistory:         connect.NewClient[ListHistoryRequest, ListHistoryResponse](httpClient, baseURL+ListHistoryProcedure, opts...),
		listRecords:         connect.NewClient[ListRecordsRequest, ListRecordsResponse](httpClient, baseURL+ListRecordsProcedure, opts...),
		setMatchedUser:      connect.NewClient[SetMatchedUserRequest, SetMatchedUserResponse](httpClient, baseURL+SetMatchedUserProcedure, opts...),
		setWinLoss:          connect.NewClient[SetWinLossRequest, SetWinLossResponse](httpClient, baseURL+SetWinLossProcedure, opts...),
		discardDraft:        connect.NewClient[BatchRequest, NoticeResponse](httpClient, baseURL+DiscardDraftProcedure, opts...),
		searchCandidates:    connect.NewClient[SearchCandidatesRequest, SearchCandidatesResponse](httpClient, baseURL+SearchCandidatesProcedure, opts...),
		confirm:             connect.NewClient[BatchRequest, ConfirmResponse](httpClient, baseURL+ConfirmProcedure, opts...),
		confirmAndCalculate: connect.NewClient[BatchRequest, ConfirmResponse](httpClient, baseURL+ConfirmAndCalculateProcedure, opts...),
		calculate:           connect.NewClient[BatchRequest, CalculateResponse](httpClient, baseURL+CalculateProcedure, opts...),
		approve:             connect.NewClient[BatchRequest, NoticeResponse](httpClient, baseURL+ApproveProcedure, opts...),
		cancel:              connect.NewClient[BatchRequest, NoticeResponse](httpClient, baseURL+CancelProcedure, opts...),
	}
}

func (c *WorkflowClient) ListHistory(ctx context.Context, req *ListHistoryRequest) (*ListHistoryResponse, error) {
	return call(ctx, c.listHistory, req)
}

func (c *WorkflowClient) ListRecords(ctx context.Context, req *ListRecordsRequest) (*ListRecordsResponse, error) {
	return call(ctx, c.listRecords, req)
}

func (c *WorkflowClient) SetMatchedUser(ctx context.Context, req *SetMatchedUserRequest) (*SetMatchedUserResponse, error) {
	return call(ctx, c.setMatchedUser, req)
}

func (c *WorkflowClient) SetWinLoss(ctx context.Context, req *SetWinLossRequest) (*SetWinLossResponse, error) {
	return call(ctx, c.setWinLoss, req)
}

func (c *WorkflowClient) DiscardDraft(ctx context.Context, req *BatchRequest) (*NoticeResponse, error) {
	return call(ctx, c.discardDraft, req)
}

func (c *WorkflowClient) SearchCandidates(ctx context.Context, req *SearchCandidatesRequest) (*SearchCandidatesResponse, error) {
	return call(ctx, c.searchCandidates, req)
}

func (c *WorkflowClient) Confirm(ctx context.Context, req *BatchRequest) (*ConfirmResponse, error) {
	return call(ctx, c.confirm, req)
}

func (c *WorkflowClient) ConfirmAndCalculate(ctx context.Context, req *BatchRequest) (*ConfirmResponse, error) {
	return call(ctx, c.confirmAndCalculate, req)
}

func (c *WorkflowClient) Calculate(ctx context.Context, req *BatchRequest) (*CalculateResponse, error) {
	return call(ctx, c.calculate, req)
}

func (c *WorkflowClient) Approve(ctx context.Context, req *BatchRequest) (*NoticeResponse, error) {
	return call(ctx, c.approve, req)
}

func (c *WorkflowClient) Cancel(ctx context.Context, req *BatchRequest) (*NoticeResponse, error) {
	return call(ctx, c.cancel, req)
}

func call[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
