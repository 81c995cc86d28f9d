package models

// Requests for the query and admin HTTP endpoints. Defined in domain for consistency and reuse.

type ListSignalsRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type MonitorListRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type SignalIDRequest struct {
	ID string `param:"id" json:"id" validate:"required,max=64"`
}

type RejectSignalRequest struct {
	ID     string `param:"id" json:"id" validate:"required,max=64"`
	Reason string `json:"reason" default:"MANUAL" validate:"max=200"`
}

type PairsRequest struct {
	N int `query:"n" json:"n" default:"100" validate:"gte=1,lte=500"`
}
