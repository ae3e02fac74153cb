package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nimasrn/loyalty-engine/internal/model"
	xhttp "github.com/nimasrn/loyalty-engine/pkg/http"
	"github.com/nimasrn/loyalty-engine/pkg/logger"
	"github.com/nimasrn/loyalty-engine/pkg/pg"
)

type errorResponse struct {
	Error string `json:"error"`
	// Available and Requested are set for insufficient balance rejections.
	Available *int64 `json:"available,omitempty"`
	Requested *int64 `json:"requested,omitempty"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Error("failed to encode response", "path", string(ctx.Path()), "error", err)
		status = xhttp.StatusInternalServerError
		b = []byte(`{"error":"internal error"}`)
	}
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors onto status codes. Anything it does
// not recognise is logged and hidden behind a 500.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	var insufficient *model.InsufficientBalanceError
	switch {
	case errors.As(err, &insufficient):
		writeJSON(ctx, xhttp.StatusConflict, errorResponse{
			Error:     err.Error(),
			Available: &insufficient.Available,
			Requested: &insufficient.Requested,
		})
	case errors.Is(err, model.ErrNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidAmount):
		writeError(ctx, xhttp.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, model.ErrInvalidProgramType),
		errors.Is(err, model.ErrSelfReferral),
		errors.Is(err, model.ErrProgramInactive),
		errors.Is(err, model.ErrInvalidRequest):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.Is(err, pg.ErrCommitFailed):
		logger.Error("commit outcome unknown", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "commit outcome unknown, look the operation up before retrying")
	default:
		logger.Error("request failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}

func pathString(ctx *xhttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v := pathString(ctx, name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return id, nil
}

func queryInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v := string(ctx.QueryArgs().Peek(name))
	if v == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return id, nil
}
