package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	basichttp "github.com/Sam-arojo/Protrust/internal/http"
	"github.com/Sam-arojo/Protrust/internal/service"
)

// VerifyHandler is the public, unauthenticated verification entry point.
type VerifyHandler struct {
	verifier *service.Verifier
}

func NewVerifyHandler(verifier *service.Verifier) *VerifyHandler {
	return &VerifyHandler{verifier: verifier}
}

type verifyBody struct {
	Code string `json:"code" binding:"required"`
}

// Verify accepts the code either as a query parameter (QR scan landing) or a
// JSON body (manual entry). The transport decides verification_method.
func (h *VerifyHandler) Verify(c *gin.Context) {
	code := c.Query("code")
	method := "qr"
	if code == "" {
		var body verifyBody
		if err := c.ShouldBindJSON(&body); err != nil {
			basichttp.Fail(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "code is required")
			return
		}
		code = body.Code
		method = "manual"
	}

	result := h.verifier.Verify(c.Request.Context(), code, service.VerifyMeta{
		SourceIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Method:    method,
	})

	basichttp.OK(c, result)
}
