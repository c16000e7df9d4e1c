package http

import (
	"loan-widget/domain"
	"loan-widget/service"
)

type TokenRefreshReq struct {
	Token string `json:"token" validate:"required"`
}

type FormInputReq struct {
	LoanID *string `json:"loanId" validate:"omitempty,max=128"`
	Amount *string `json:"amount" validate:"omitempty,max=64"`
}

type FormResp struct {
	ID    string           `json:"id"`
	State domain.FormState `json:"state"`
}

type WidgetResp struct {
	ID   string             `json:"id"`
	View service.WidgetView `json:"view"`
}

type errorResp struct {
	Error string `json:"error"`
}
