package timeseries

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeSeriesRecord is one metering observation.
type TimeSeriesRecord struct {
	MeteringGridAreaID        string
	EnergySupplierID          string
	BalanceResponsiblePartyID string
	MarketEvaluationPointType MarketEvaluationPointType
	SettlementMethod          SettlementMethod
	Quantity                  decimal.Decimal
	ObservationTime           time.Time
}

// Column names of the time series dataset.
const (
	ColumnGridArea                  = "MeteringGridArea_Domain_mRID"
	ColumnEnergySupplier            = "EnergySupplier_MarketParticipant_mRID"
	ColumnBalanceResponsibleParty   = "BalanceResponsibleParty_MarketParticipant_mRID"
	ColumnMarketEvaluationPointType = "MarketEvaluationPointType"
	ColumnSettlementMethod          = "SettlementMethod"
	ColumnQuantity                  = "Quantity"
	ColumnObservationTime           = "ObservationTime"
)

// Kind is the logical type of a dataset column.
type Kind string

const (
	KindString    Kind = "string"
	KindDecimal   Kind = "decimal"
	KindTimestamp Kind = "timestamp"
)

// Column describes one required column.
type Column struct {
	Name string
	Kind Kind
}

// Schema lists the columns read from a time series dataset, in canonical order.
var Schema = []Column{
	{Name: ColumnGridArea, Kind: KindString},
	{Name: ColumnEnergySupplier, Kind: KindString},
	{Name: ColumnBalanceResponsibleParty, Kind: KindString},
	{Name: ColumnMarketEvaluationPointType, Kind: KindString},
	{Name: ColumnSettlementMethod, Kind: KindString},
	{Name: ColumnQuantity, Kind: KindDecimal},
	{Name: ColumnObservationTime, Kind: KindTimestamp},
}
