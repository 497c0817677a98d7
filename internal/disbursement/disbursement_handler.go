package disbursement

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go-payroll/internal/shared/apperror"
	"go-payroll/internal/shared/response"
)

type Handler struct {
	disburser Disburser
	funds     *FundsVerifier
	rdb       *redis.Client
}

func NewHandler(disburser Disburser, funds *FundsVerifier) *Handler {
	return &Handler{disburser: disburser, funds: funds}
}

func NewHandlerWithRedis(disburser Disburser, funds *FundsVerifier, rdb *redis.Client) *Handler {
	return &Handler{disburser: disburser, funds: funds, rdb: rdb}
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	httpErr := apperror.ToHTTP(err)
	response.Error(c, httpErr.Status, httpErr.Code, httpErr.Message, httpErr.Details)
}

func (h *Handler) Disburse(c *gin.Context) {
	lockKey, _ := c.Get("idempotency_lock_key")
	cacheKey, _ := c.Get("idempotency_cache_key")

	if h.rdb != nil {
		if lk, ok := lockKey.(string); ok && lk != "" {
			defer h.rdb.Del(c.Request.Context(), lk)
		}
	}

	var req DisburseRequest
	// Body is optional: no filter means every pending item in the batch.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid input", err.Error())
		return
	}

	result, err := h.disburser.Disburse(c.Request.Context(), c.Param("id"), req.WorkerIDs)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	if h.rdb != nil {
		if ck, ok := cacheKey.(string); ok && ck != "" {
			if payload, marshalErr := json.Marshal(result); marshalErr == nil {
				_ = h.rdb.Set(c.Request.Context(), ck, payload, 24*time.Hour).Err()
			}
		}
	}

	response.Success(c, http.StatusOK, result)
}

func (h *Handler) RetryFailed(c *gin.Context) {
	result, err := h.disburser.RetryFailed(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

func (h *Handler) RequiredFunds(c *gin.Context) {
	workerIDs := c.QueryArray("worker_id")

	total, err := h.funds.RequiredFunds(c.Request.Context(), c.Param("id"), workerIDs)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"batch_id":       c.Param("id"),
		"required_funds": total.StringFixed(2),
	})
}
