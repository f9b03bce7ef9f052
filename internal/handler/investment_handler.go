package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/blues/ideafund/internal/funding"
	"github.com/blues/ideafund/internal/ledger"
	"github.com/blues/ideafund/internal/middleware"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type InvestmentHandler struct {
	engine *funding.Engine
}

func NewInvestmentHandler(engine *funding.Engine) *InvestmentHandler {
	return &InvestmentHandler{
		engine: engine,
	}
}

// sessionFor 取得已认证的会话；请求中声明的地址必须与会话账户一致
func sessionFor(c *gin.Context, claimed string) (ledger.Session, error) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		return ledger.Session{}, ledger.ErrUnauthorizedSigner
	}
	if claimed == "" {
		return session, nil
	}
	if !common.IsHexAddress(claimed) {
		return ledger.Session{}, fmt.Errorf("%w: %s", ledger.ErrInvalidAddress, claimed)
	}
	if common.HexToAddress(claimed) != common.HexToAddress(session.Address) {
		return ledger.Session{}, fmt.Errorf("%w: authenticated as %s, not %s", ledger.ErrUnauthorizedSigner, session.Address, claimed)
	}
	return session, nil
}

// Invest 投资想法
func (h *InvestmentHandler) Invest(c *gin.Context) {
	var req InvestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := sessionFor(c, req.InvestorAddress)
	if err != nil {
		errorResponse(c, err)
		return
	}

	result, err := h.engine.Invest(c.Request.Context(), session, c.Param("id"), req.Amount)
	if err != nil {
		// 投资已记录但想法已被关闭，结果仍然返回
		if errors.Is(err, funding.ErrStatusConflict) && result != nil {
			ErrorResponseWithData(c, http.StatusConflict, err.Error(), result)
			return
		}
		errorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "investment recorded", result)
}

// GetInvestments 获取想法的投资记录
func (h *InvestmentHandler) GetInvestments(c *gin.Context) {
	investments, err := h.engine.ListInvestments(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", InvestmentListResponse{Investments: investments, Total: len(investments)})
}

// RepairInvestment 补写链上已确认但未落库的投资，不会重新支付
func (h *InvestmentHandler) RepairInvestment(c *gin.Context) {
	var req RepairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	session, err := sessionFor(c, req.InvestorAddress)
	if err != nil {
		errorResponse(c, err)
		return
	}
	req.InvestorAddress = session.Address

	result, err := h.engine.RepairInvestment(c.Request.Context(), funding.PendingInvestment(req))
	if err != nil {
		if errors.Is(err, funding.ErrStatusConflict) && result != nil {
			ErrorResponseWithData(c, http.StatusConflict, err.Error(), result)
			return
		}
		errorResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "investment repaired", result)
}
