package http

import (
	"mime"
	"net/http"

	"spendmind/internal/log"
	"spendmind/internal/report"
	"spendmind/internal/services"
)

// handleExportReport renders a report for download. Query: format
// (csv, json, yaml, html), period, start, end, category_id.
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	const op = "export report"
	q := r.URL.Query()
	f, err := parseFilter(q)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	exp, err := s.reports.Export(st.Snapshot(), f, report.Format(sanitizeInput(q.Get("format"))))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Report exported",
		log.FieldReportRows, len(exp.Report.Rows), log.FieldOperation, log.OpExport)
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": exp.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(exp.Body)
}

type emailReportRequest struct {
	filterBody
	Format    string `json:"format"`
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
}

// handleEmailReport queues the report e-mail and answers 202 with the job id.
func (s *Server) handleEmailReport(w http.ResponseWriter, r *http.Request) {
	const op = "email report"
	var req emailReportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	f, err := req.filter()
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	id, err := s.reports.Email(r.Context(), st.Owner(), st.Snapshot(), services.EmailRequest{
		Filter:    f,
		Format:    report.Format(sanitizeInput(req.Format)),
		Recipient: sanitizeInput(req.Recipient),
		Subject:   sanitizeInput(req.Subject),
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusAccepted).Data(map[string]string{"job_id": id}).Write(w)
}

// handleSheetReport writes the report to a new spreadsheet tab.
func (s *Server) handleSheetReport(w http.ResponseWriter, r *http.Request) {
	const op = "sheet report"
	var req filterBody
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, op, err)
		return
	}
	f, err := req.filter()
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	st, ok := s.loadedStore(w, r, op)
	if !ok {
		return
	}
	ref, err := s.reports.WriteSheet(r.Context(), st.Snapshot(), f)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(map[string]string{"ref": ref}).Write(w)
}
