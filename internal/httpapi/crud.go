package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"pantry.app/internal/db"
	"pantry.app/internal/entity"
	"pantry.app/internal/ids"
	"pantry.app/internal/recipes"
	"pantry.app/internal/statement"
)

// bulkJobTimeout bounds how long a queued bulk submission may wait before
// the sweeper abandons it.
const bulkJobTimeout = 10 * time.Second

type insertRequest struct {
	TableName string           `json:"table_name"`
	Data      []map[string]any `json:"data"`
}

func (a *API) crudInsert(w http.ResponseWriter, r *http.Request) {
	var req insertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	desc, err := entity.Lookup(req.TableName)
	if err != nil {
		a.log.Warn("invalid table name", zap.String("table_name", req.TableName))
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}
	st, err := statement.Insert(desc, req.Data)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}

	msg := fmt.Sprintf("Successfully submitted to %s.", capitalize(desc.Name))
	res := a.manager.TouchOne(r.Context(), db.StatementTask(desc, st), msg, false)
	writeResult(w, res)
}

type selectRequest struct {
	TableName  string            `json:"table_name"`
	Filters    statement.Filters `json:"filters"`
	OrderBy    []string          `json:"order_by"`
	LambdaArgs map[string]any    `json:"lambda_args"`
}

func (a *API) crudSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Composite view names resolve to prebuilt queries; everything else
	// must be a registered table.
	if st, ok := recipes.NamedQuery(req.TableName, req.LambdaArgs["id"]); ok {
		res := a.manager.TouchOne(r.Context(), db.QueryTask(req.TableName, st),
			fmt.Sprintf("%s retrieved.", capitalize(req.TableName)), true)
		writeResult(w, res)
		return
	}

	desc, err := entity.Lookup(req.TableName)
	if err != nil {
		a.log.Warn("invalid table name", zap.String("table_name", req.TableName))
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}
	st, err := statement.Select(desc, req.Filters, req.OrderBy...)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}

	msg := fmt.Sprintf("%s retrieved.", capitalize(desc.Name))
	res := a.manager.TouchOne(r.Context(), db.StatementTask(desc, st), msg, true)
	writeResult(w, res)
}

type updateRequest struct {
	TableName string           `json:"table_name"`
	Data      []map[string]any `json:"data"`
}

func (a *API) crudUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	desc, err := entity.Lookup(req.TableName)
	if err != nil {
		a.log.Warn("invalid table name", zap.String("table_name", req.TableName))
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}

	sts := make([]statement.Statement, 0, len(req.Data))
	for _, row := range req.Data {
		st, err := statement.Update(desc, row)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Bad request.")
			return
		}
		sts = append(sts, st)
	}
	if len(sts) == 0 {
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}

	msg := fmt.Sprintf("%s updated.", capitalize(desc.Name))
	res := a.manager.TouchOne(r.Context(), db.BatchTask(desc, sts), msg, false)
	writeResult(w, res)
}

type deleteRequest struct {
	TableName string `json:"table_name"`
	Field     string `json:"field"`
	IDs       []any  `json:"ids"`
}

func (a *API) crudDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	desc, err := entity.Lookup(req.TableName)
	if err != nil {
		a.log.Warn("invalid table name", zap.String("table_name", req.TableName))
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}
	if req.Field == "" || len(req.IDs) == 0 {
		a.log.Warn("delete rejected: no filters received")
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}
	st, err := statement.Delete(desc, map[string][]any{req.Field: req.IDs})
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}

	msg := fmt.Sprintf("%s deleted.", capitalize(desc.Name))
	res := a.manager.TouchOne(r.Context(), db.StatementTask(desc, st), msg, false)
	writeResult(w, res)
}

type bulkUpdateRequest struct {
	TableName string           `json:"table_name"`
	Data      []map[string]any `json:"data"`
}

// crudBulkUpdate routes a grouped update through the job queue: the per-row
// tasks are registered under one job id, then immediately consumed as one
// transaction. The queue's sweeper discards the job if the consumer never
// arrives within the timeout.
func (a *API) crudBulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	desc, err := entity.Lookup(req.TableName)
	if err != nil {
		a.log.Warn("invalid table name", zap.String("table_name", req.TableName))
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}
	if len(req.Data) == 0 {
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}

	tasks := make([]db.Task, 0, len(req.Data))
	for _, row := range req.Data {
		st, err := statement.Update(desc, row)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "Bad request.")
			return
		}
		tasks = append(tasks, db.StatementTask(desc, st))
	}

	jobID := ids.New()
	a.queue.Add(jobID, tasks, bulkJobTimeout)

	msg := fmt.Sprintf("%s updated.", capitalize(desc.Name))
	res, ok := a.queue.Execute(jobID, func(tasks []db.Task) db.Result {
		return a.manager.Touch(r.Context(), tasks, msg, false)
	})
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Bad request.")
		return
	}
	writeResult(w, res)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
