package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mzhav/roomreserve/internal/domain"
)

func statusFor(code domain.ErrorCode) int {
	switch code {
	case domain.CodeValidation:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeConflict:
		return http.StatusConflict
	case domain.CodeDeadlineExceeded:
		return http.StatusGone
	case domain.CodePolicyViolation:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	code := domain.CodeOf(err)
	if code == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "internal", "error": "internal error"})
		return
	}
	c.JSON(statusFor(code), gin.H{"code": code, "error": err.Error()})
}
