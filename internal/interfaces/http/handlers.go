package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/toolcrib/internal/application/service"
	"github.com/garyjia/toolcrib/internal/application/workflow"
	"github.com/garyjia/toolcrib/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	coordinator workflow.Coordinator
	inventory   service.InventoryService
	catalog     service.StatusCatalog
	health      HealthChecker
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		coordinator: services.Coordinator,
		inventory:   services.Inventory,
		catalog:     services.Catalog,
		health:      services.Health,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Code    string      `json:"code,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

// ApproveRequest is the body of POST /api/loans/:id/approve.
// ResourceID, when set, must match the loan's resource.
type ApproveRequest struct {
	ApproverID int64 `json:"approver_id"`
	ResourceID int64 `json:"resource_id"`
}

// RejectRequest is the body of POST /api/loans/:id/reject
type RejectRequest struct {
	ApproverID int64  `json:"approver_id"`
	ResourceID int64  `json:"resource_id"`
	Reason     string `json:"reason"`
}

// CheckOutRequest is the body of POST /api/loans/:id/checkout
type CheckOutRequest struct {
	OperatorID int64 `json:"operator_id"`
	ResourceID int64 `json:"resource_id"`
}

// ReturnRequest is the body of POST /api/loans/:id/return
type ReturnRequest struct {
	OperatorID int64 `json:"operator_id"`
	ResourceID int64 `json:"resource_id"`
	workflow.ReturnDetails
}

// StartTaskRequest is the body of POST /api/maintenance/:id/start
type StartTaskRequest struct {
	TechnicianID int64 `json:"technician_id"`
	ResourceID   int64 `json:"resource_id"`
}

// CompleteTaskRequest is the body of POST /api/maintenance/:id/complete
type CompleteTaskRequest struct {
	ResourceID int64 `json:"resource_id"`
	workflow.CompleteTaskRequest
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Database:  "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Error("Health check failed", "error", err)
			resp.Status = "unhealthy"
			resp.Database = "unreachable"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Code: "unavailable"})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// GetCatalog handles GET /api/catalog
func (h *Handlers) GetCatalog(c *gin.Context) {
	out := make(map[entity.Domain][]entity.StatusEntry, len(entity.Domains()))
	for _, domain := range entity.Domains() {
		out[domain] = h.catalog.Entries(domain)
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: out})
}

// GetCatalogDomain handles GET /api/catalog/:domain
func (h *Handlers) GetCatalogDomain(c *gin.Context) {
	domain := entity.Domain(c.Param("domain"))
	if !domain.IsValid() {
		c.JSON(http.StatusNotFound, Response{Success: false, Code: "not_found", Error: fmt.Sprintf("unknown catalog %q", domain)})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: h.catalog.Entries(domain)})
}

// RefreshCatalog handles POST /api/catalog/refresh
func (h *Handlers) RefreshCatalog(c *gin.Context) {
	if err := h.catalog.Refresh(c.Request.Context()); err != nil {
		h.writeError(c, "refresh_catalog", err)
		return
	}
	h.logger.Info("Status catalog refreshed via API")
	h.GetCatalog(c)
}

// ListResources handles GET /api/resources?status=&limit=&offset=
func (h *Handlers) ListResources(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}
	resources, err := h.inventory.ListResources(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		h.writeError(c, "list_resources", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: resources})
}

// CreateResource handles POST /api/resources
func (h *Handlers) CreateResource(c *gin.Context) {
	var req service.CreateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	res, err := h.inventory.CreateResource(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "create_resource", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: res})
}

// GetResource handles GET /api/resources/:id
func (h *Handlers) GetResource(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.inventory.GetResource(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get_resource", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: res})
}

// ResourceHistory handles GET /api/resources/:id/history
func (h *Handlers) ResourceHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, _, ok := paging(c)
	if !ok {
		return
	}
	history, err := h.inventory.History(c.Request.Context(), id, limit)
	if err != nil {
		h.writeError(c, "resource_history", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: history})
}

// ResourceMaintenance handles GET /api/resources/:id/maintenance
func (h *Handlers) ResourceMaintenance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	limit, _, ok := paging(c)
	if !ok {
		return
	}
	tasks, err := h.inventory.ListMaintenanceTasks(c.Request.Context(), id, limit)
	if err != nil {
		h.writeError(c, "list_maintenance", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: tasks})
}

// ListLoans handles GET /api/loans?resource_id=&status=&limit=&offset=
func (h *Handlers) ListLoans(c *gin.Context) {
	limit, offset, ok := paging(c)
	if !ok {
		return
	}
	req := service.ListLoansRequest{Status: c.Query("status"), Limit: limit, Offset: offset}
	if raw := c.Query("resource_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			badRequest(c, "invalid resource_id")
			return
		}
		req.ResourceID = id
	}

	loans, err := h.inventory.ListLoans(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "list_loans", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: loans})
}

// SubmitLoan handles POST /api/loans
func (h *Handlers) SubmitLoan(c *gin.Context) {
	var req workflow.SubmitLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	loan, err := h.coordinator.SubmitLoan(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "submit_loan", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: loan})
}

// GetLoan handles GET /api/loans/:id
func (h *Handlers) GetLoan(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	loan, err := h.inventory.GetLoan(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get_loan", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: loan})
}

// ApproveLoan handles POST /api/loans/:id/approve
func (h *Handlers) ApproveLoan(c *gin.Context) {
	var req ApproveRequest
	id, ok := bindTransition(c, &req)
	if !ok {
		return
	}
	result, err := h.coordinator.ApproveLoan(c.Request.Context(), id, req.ApproverID, expect(req.ResourceID)...)
	h.transitionResponse(c, "approve_loan", result, err)
}

// RejectLoan handles POST /api/loans/:id/reject
func (h *Handlers) RejectLoan(c *gin.Context) {
	var req RejectRequest
	id, ok := bindTransition(c, &req)
	if !ok {
		return
	}
	result, err := h.coordinator.RejectLoan(c.Request.Context(), id, req.ApproverID, req.Reason, expect(req.ResourceID)...)
	h.transitionResponse(c, "reject_loan", result, err)
}

// CheckOutLoan handles POST /api/loans/:id/checkout
func (h *Handlers) CheckOutLoan(c *gin.Context) {
	var req CheckOutRequest
	id, ok := bindTransition(c, &req)
	if !ok {
		return
	}
	result, err := h.coordinator.CheckOutLoan(c.Request.Context(), id, req.OperatorID, expect(req.ResourceID)...)
	h.transitionResponse(c, "checkout_loan", result, err)
}

// ReturnLoan handles POST /api/loans/:id/return
func (h *Handlers) ReturnLoan(c *gin.Context) {
	var req ReturnRequest
	id, ok := bindTransition(c, &req)
	if !ok {
		return
	}
	result, err := h.coordinator.ReturnLoan(c.Request.Context(), id, req.OperatorID, req.ReturnDetails, expect(req.ResourceID)...)
	h.transitionResponse(c, "return_loan", result, err)
}

// CreateMaintenanceTask handles POST /api/maintenance
func (h *Handlers) CreateMaintenanceTask(c *gin.Context) {
	var req workflow.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	task, err := h.coordinator.CreateMaintenanceTask(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "create_maintenance", err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: task})
}

// GetMaintenanceTask handles GET /api/maintenance/:id
func (h *Handlers) GetMaintenanceTask(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	task, err := h.inventory.GetMaintenanceTask(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get_maintenance", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: task})
}

// StartMaintenanceTask handles POST /api/maintenance/:id/start
func (h *Handlers) StartMaintenanceTask(c *gin.Context) {
	var req StartTaskRequest
	id, ok := bindTransition(c, &req)
	if !ok {
		return
	}
	result, err := h.coordinator.StartMaintenanceTask(c.Request.Context(), id, req.TechnicianID, expect(req.ResourceID)...)
	h.transitionResponse(c, "start_maintenance", result, err)
}

// CompleteMaintenanceTask handles POST /api/maintenance/:id/complete
func (h *Handlers) CompleteMaintenanceTask(c *gin.Context) {
	var req CompleteTaskRequest
	id, ok := bindTransition(c, &req)
	if !ok {
		return
	}
	result, err := h.coordinator.CompleteMaintenanceTask(c.Request.Context(), id, req.CompleteTaskRequest, expect(req.ResourceID)...)
	h.transitionResponse(c, "complete_maintenance", result, err)
}

func (h *Handlers) transitionResponse(c *gin.Context, op string, result *workflow.TransitionResult, err error) {
	if err != nil {
		h.writeError(c, op, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func expect(resourceID int64) []workflow.TransitionOption {
	if resourceID == 0 {
		return nil
	}
	return []workflow.TransitionOption{workflow.ExpectResource(resourceID)}
}

// bindTransition parses the :id path parameter and the JSON body
func bindTransition(c *gin.Context, body interface{}) (int64, bool) {
	id, ok := pathID(c)
	if !ok {
		return 0, false
	}
	if err := c.ShouldBindJSON(body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context) (int64, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, fmt.Sprintf("invalid id %q", raw))
		return 0, false
	}
	return id, true
}

// paging reads limit and offset; the service clamps limit
func paging(c *gin.Context) (int, int, bool) {
	var q struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&q); err != nil || q.Limit < 0 || q.Offset < 0 {
		badRequest(c, "invalid query parameters")
		return 0, 0, false
	}
	return q.Limit, q.Offset, true
}
