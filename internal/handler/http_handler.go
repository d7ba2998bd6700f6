package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/sasamuel24/contabilidadcq/internal/apperr"
	"github.com/sasamuel24/contabilidadcq/internal/engine"
	"github.com/sasamuel24/contabilidadcq/internal/service"
)

// HTTPHandler handles HTTP requests.
type HTTPHandler struct {
	workflow    *service.WorkflowService
	attachments *service.AttachmentService
	comments    *service.CommentService
	folders     *service.FolderService
	log         zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler.
func NewHTTPHandler(
	workflow *service.WorkflowService,
	attachments *service.AttachmentService,
	comments *service.CommentService,
	folders *service.FolderService,
	log zerolog.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		workflow:    workflow,
		attachments: attachments,
		comments:    comments,
		folders:     folders,
		log:         log,
	}
}

// RegisterRoutes wires every endpoint into the mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)

	mux.HandleFunc("POST /api/v1/invoices", h.CreateInvoice)
	mux.HandleFunc("GET /api/v1/invoices", h.ListInvoices)
	mux.HandleFunc("GET /api/v1/invoices/{id}", h.GetInvoice)
	mux.HandleFunc("GET /api/v1/invoices/{id}/audit", h.GetAuditTrail)

	mux.HandleFunc("POST /api/v1/invoices/{id}/assign", h.transitionHandler(h.workflow.Assign))
	mux.HandleFunc("POST /api/v1/invoices/{id}/start", h.transitionHandler(h.workflow.Start))
	mux.HandleFunc("POST /api/v1/invoices/{id}/submit", h.transitionHandler(h.workflow.Submit))
	mux.HandleFunc("POST /api/v1/invoices/{id}/approve", h.transitionHandler(h.workflow.Approve))
	mux.HandleFunc("POST /api/v1/invoices/{id}/return", h.transitionHandler(h.workflow.Return))
	mux.HandleFunc("POST /api/v1/invoices/{id}/return-to-invoicing", h.transitionHandler(h.workflow.ReturnToInvoicing))
	mux.HandleFunc("POST /api/v1/invoices/{id}/finalize", h.transitionHandler(h.workflow.Finalize))

	mux.HandleFunc("PUT /api/v1/invoices/{id}/distribution", h.SaveDistribution)
	mux.HandleFunc("PUT /api/v1/invoices/{id}/classification", h.SetClassification)
	mux.HandleFunc("PUT /api/v1/invoices/{id}/administrative-expense", h.SetAdministrativeExpense)
	mux.HandleFunc("PUT /api/v1/invoices/{id}/conditionals", h.SetConditionals)

	mux.HandleFunc("POST /api/v1/invoices/{id}/attachments", h.UploadAttachment)
	mux.HandleFunc("GET /api/v1/invoices/{id}/attachments", h.ListAttachments)
	mux.HandleFunc("GET /api/v1/invoices/{id}/attachments/current", h.GetCurrentAttachment)

	mux.HandleFunc("POST /api/v1/invoices/{id}/comments", h.AddComment)
	mux.HandleFunc("GET /api/v1/invoices/{id}/comments", h.ListComments)
	mux.HandleFunc("PUT /api/v1/comments/{id}", h.UpdateComment)
	mux.HandleFunc("DELETE /api/v1/comments/{id}", h.DeleteComment)

	mux.HandleFunc("POST /api/v1/folders", h.CreateFolder)
	mux.HandleFunc("GET /api/v1/folders", h.GetFolderTree)
	mux.HandleFunc("GET /api/v1/folders/{id}", h.GetFolder)
	mux.HandleFunc("PATCH /api/v1/folders/{id}", h.UpdateFolder)
	mux.HandleFunc("DELETE /api/v1/folders/{id}", h.DeleteFolder)
	mux.HandleFunc("PUT /api/v1/folders/{id}/summary-file", h.SetSummaryFile)
	mux.HandleFunc("POST /api/v1/folders/{id}/invoices/{invoiceID}", h.AssignInvoiceToFolder)
	mux.HandleFunc("DELETE /api/v1/folders/{id}/invoices/{invoiceID}", h.UnassignInvoiceFromFolder)
}

// Health reports liveness.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actorFrom extracts the acting user from request headers. Identity is
// resolved upstream by the gateway; this service trusts the forwarded
// headers.
func actorFrom(r *http.Request) (service.Actor, error) {
	userID := r.Header.Get("X-User-ID")
	role := engine.Role(r.Header.Get("X-User-Role"))
	if userID == "" {
		return service.Actor{}, apperr.New(apperr.CodeUnauthorized, "missing X-User-ID header")
	}
	valid := false
	for _, known := range engine.Roles {
		if role == known {
			valid = true
			break
		}
	}
	if !valid {
		return service.Actor{}, apperr.New(apperr.CodeUnauthorized, "missing or unknown X-User-Role header")
	}
	return service.Actor{ID: userID, Role: role}, nil
}

// CreateInvoice handles invoice ingestion requests.
func (h *HTTPHandler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SupplierName  string `json:"supplier_name"`
		InvoiceNumber string `json:"invoice_number"`
		IssueDate     string `json:"issue_date"`
		TotalAmount   string `json:"total_amount"`
		OriginAreaID  string `json:"origin_area_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	invoice, err := h.workflow.CreateInvoice(r.Context(), &service.CreateInvoiceRequest{
		SupplierName:  req.SupplierName,
		InvoiceNumber: req.InvoiceNumber,
		IssueDate:     req.IssueDate,
		TotalAmount:   req.TotalAmount,
		OriginAreaID:  req.OriginAreaID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoice)
}

// GetInvoice handles invoice retrieval requests.
func (h *HTTPHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.workflow.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// GetAuditTrail handles audit history requests.
func (h *HTTPHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	entries, err := h.workflow.GetAuditTrail(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// ListInvoices handles invoice listing requests.
func (h *HTTPHandler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	var statusPtr *engine.Status
	if s := r.URL.Query().Get("status"); s != "" {
		status := engine.Status(s)
		statusPtr = &status
	}

	var areaIDPtr *string
	if areaID := r.URL.Query().Get("area_id"); areaID != "" {
		areaIDPtr = &areaID
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 50
	}

	invoices, total, err := h.workflow.ListInvoices(r.Context(), statusPtr, areaIDPtr, page, pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"invoices":  invoices,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// transitionHandler adapts a workflow transition method into an HTTP handler.
// Every transition endpoint shares the same request shape.
func (h *HTTPHandler) transitionHandler(op func(ctx context.Context, req *service.TransitionRequest) (*engine.Invoice, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			h.writeError(w, err)
			return
		}

		var body struct {
			Reason     string `json:"reason"`
			AssigneeID string `json:"assignee_id"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
				return
			}
		}

		invoice, err := op(r.Context(), &service.TransitionRequest{
			InvoiceID:  r.PathValue("id"),
			Actor:      actor,
			Reason:     body.Reason,
			AssigneeID: body.AssigneeID,
		})
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, invoice)
	}
}

// SaveDistribution handles distribution replacement requests.
func (h *HTTPHandler) SaveDistribution(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		Lines []engine.DistributionLine `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	invoice, err := h.workflow.SaveDistribution(r.Context(), &service.SaveDistributionRequest{
		InvoiceID: r.PathValue("id"),
		Actor:     actor,
		Lines:     body.Lines,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// SetClassification handles classification update requests.
func (h *HTTPHandler) SetClassification(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		CostCenterID       *string `json:"cost_center_id"`
		OperationCenterID  *string `json:"operation_center_id"`
		BusinessUnitID     *string `json:"business_unit_id"`
		AuxiliaryAccountID *string `json:"auxiliary_account_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	invoice, err := h.workflow.SetClassification(r.Context(), &service.ClassificationRequest{
		InvoiceID:          r.PathValue("id"),
		Actor:              actor,
		CostCenterID:       body.CostCenterID,
		OperationCenterID:  body.OperationCenterID,
		BusinessUnitID:     body.BusinessUnitID,
		AuxiliaryAccountID: body.AuxiliaryAccountID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// SetAdministrativeExpense handles administrative-expense flag requests.
func (h *HTTPHandler) SetAdministrativeExpense(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		Value bool `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	invoice, err := h.workflow.SetAdministrativeExpense(r.Context(), r.PathValue("id"), actor, body.Value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// SetConditionals handles conditional sub-record update requests.
func (h *HTTPHandler) SetConditionals(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		Inventory   *engine.InventoryEntry `json:"inventory"`
		Discrepancy *engine.Discrepancy    `json:"discrepancy"`
		Advance     *engine.AdvancePayment `json:"advance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	invoice, err := h.workflow.SetConditionals(r.Context(), &service.ConditionalsRequest{
		InvoiceID:   r.PathValue("id"),
		Actor:       actor,
		Inventory:   body.Inventory,
		Discrepancy: body.Discrepancy,
		Advance:     body.Advance,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// UploadAttachment handles document upload requests.
func (h *HTTPHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		DocType     string `json:"doc_type"`
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
		StoragePath string `json:"storage_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	attachment, err := h.attachments.UploadAttachment(r.Context(), &service.UploadAttachmentRequest{
		InvoiceID:   r.PathValue("id"),
		Actor:       actor,
		DocType:     engine.DocType(body.DocType),
		Filename:    body.Filename,
		ContentType: body.ContentType,
		StoragePath: body.StoragePath,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attachment)
}

// ListAttachments handles attachment listing requests.
func (h *HTTPHandler) ListAttachments(w http.ResponseWriter, r *http.Request) {
	var docTypePtr *engine.DocType
	if t := r.URL.Query().Get("doc_type"); t != "" {
		docType := engine.DocType(t)
		docTypePtr = &docType
	}

	attachments, err := h.attachments.ListAttachments(r.Context(), r.PathValue("id"), docTypePtr)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attachments": attachments})
}

// GetCurrentAttachment handles requests for the latest upload of one
// document type.
func (h *HTTPHandler) GetCurrentAttachment(w http.ResponseWriter, r *http.Request) {
	docType := engine.DocType(r.URL.Query().Get("doc_type"))
	attachment, err := h.attachments.CurrentDocument(r.Context(), r.PathValue("id"), docType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attachment)
}

// AddComment handles comment creation requests.
func (h *HTTPHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	comment, err := h.comments.AddComment(r.Context(), r.PathValue("id"), actor, body.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// ListComments handles comment listing requests.
func (h *HTTPHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListComments(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

// UpdateComment handles comment edit requests.
func (h *HTTPHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	comment, err := h.comments.UpdateComment(r.Context(), r.PathValue("id"), actor, body.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// DeleteComment handles comment deletion requests.
func (h *HTTPHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.comments.DeleteComment(r.Context(), r.PathValue("id"), actor); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateFolder handles folder creation requests.
func (h *HTTPHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFrom(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		Name     string  `json:"name"`
		ParentID *string `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	folder, err := h.folders.CreateFolder(r.Context(), body.Name, body.ParentID, actor.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// GetFolderTree handles full-tree requests.
func (h *HTTPHandler) GetFolderTree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.folders.GetTree(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"folders": nodes})
}

// GetFolder handles single-folder requests.
func (h *HTTPHandler) GetFolder(w http.ResponseWriter, r *http.Request) {
	node, err := h.folders.GetFolder(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// UpdateFolder handles folder rename and move requests.
func (h *HTTPHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		Name       *string `json:"name"`
		ParentID   *string `json:"parent_id"`
		MoveToRoot bool    `json:"move_to_root"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	folder, err := h.folders.UpdateFolder(r.Context(), &service.UpdateFolderRequest{
		FolderID:   r.PathValue("id"),
		Name:       body.Name,
		ParentID:   body.ParentID,
		MoveToRoot: body.MoveToRoot,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// DeleteFolder handles folder deletion requests.
func (h *HTTPHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.folders.DeleteFolder(r.Context(), r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSummaryFile handles folder summary-file requests.
func (h *HTTPHandler) SetSummaryFile(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		h.writeError(w, err)
		return
	}

	var body struct {
		FileID *string `json:"file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperr.New(apperr.CodeInvalidInput, "invalid request body"))
		return
	}

	folder, err := h.folders.SetSummaryFile(r.Context(), r.PathValue("id"), body.FileID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

// AssignInvoiceToFolder handles invoice filing requests.
func (h *HTTPHandler) AssignInvoiceToFolder(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.folders.AssignInvoice(r.Context(), r.PathValue("id"), r.PathValue("invoiceID")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// UnassignInvoiceFromFolder handles invoice unfiling requests.
func (h *HTTPHandler) UnassignInvoiceFromFolder(w http.ResponseWriter, r *http.Request) {
	if _, err := actorFrom(r); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.folders.UnassignInvoice(r.Context(), r.PathValue("id"), r.PathValue("invoiceID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps error codes to HTTP status codes.
func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation, apperr.CodeReferentialIntegrity:
		return http.StatusUnprocessableEntity
	case apperr.CodeConflict, apperr.CodeIllegalTransition:
		return http.StatusConflict
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeUnauthorized:
		return http.StatusForbidden
	case apperr.CodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	e := apperr.AsError(err)
	if e == nil {
		e = apperr.Wrap(err, apperr.CodeInternal, "internal error")
	}

	status := statusFor(e.Code)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Msg("Request failed")
	}
	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
