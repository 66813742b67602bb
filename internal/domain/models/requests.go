package models

// Requests bound from HTTP query/form values. Validated with go-playground tags.

type ReportRequest struct {
	StartDate string `form:"start_date" json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `form:"end_date" json:"end_date" validate:"required,datetime=2006-01-02"`
}

type RecentRequest struct {
	Ticker string `param:"ticker" validate:"required,max=20"`
	Days   int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=3650"`
}

type TickerRequest struct {
	Ticker string `param:"ticker" validate:"required,max=20"`
}

type ReportIDRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}
