package timeseries

import (
	"fmt"
	"strings"
)

// MarketEvaluationPointType is the market role of a metering point.
type MarketEvaluationPointType string

const (
	MarketEvaluationPointTypeConsumption MarketEvaluationPointType = "consumption"
	MarketEvaluationPointTypeProduction  MarketEvaluationPointType = "production"
	MarketEvaluationPointTypeExchange    MarketEvaluationPointType = "exchange"
)

var marketEvaluationPointTypeCodes = map[MarketEvaluationPointType]string{
	MarketEvaluationPointTypeConsumption: "E17",
	MarketEvaluationPointTypeProduction:  "E18",
	MarketEvaluationPointTypeExchange:    "E20",
}

// ParseMarketEvaluationPointType accepts the name or the market code (E17, E18, E20).
func ParseMarketEvaluationPointType(value string) (MarketEvaluationPointType, error) {
	value = strings.TrimSpace(value)
	for kind, code := range marketEvaluationPointTypeCodes {
		if strings.EqualFold(value, string(kind)) || strings.EqualFold(value, code) {
			return kind, nil
		}
	}
	return "", fmt.Errorf("timeseries: unknown market evaluation point type %q", value)
}

// Code returns the market code of the type.
func (t MarketEvaluationPointType) Code() string { return marketEvaluationPointTypeCodes[t] }

// IsValid reports whether t is one of the known types.
func (t MarketEvaluationPointType) IsValid() bool {
	_, ok := marketEvaluationPointTypeCodes[t]
	return ok
}

// SettlementMethod is how a metering point's consumption is settled.
type SettlementMethod string

const (
	SettlementMethodProfiled    SettlementMethod = "profiled"
	SettlementMethodNonProfiled SettlementMethod = "non_profiled"
	SettlementMethodFlexSettled SettlementMethod = "flex_settled"
)

var settlementMethodCodes = map[SettlementMethod]string{
	SettlementMethodProfiled:    "E01",
	SettlementMethodNonProfiled: "E02",
	SettlementMethodFlexSettled: "D01",
}

// ParseSettlementMethod accepts the name or the market code (E01, E02, D01).
func ParseSettlementMethod(value string) (SettlementMethod, error) {
	value = strings.TrimSpace(value)
	for method, code := range settlementMethodCodes {
		if strings.EqualFold(value, string(method)) || strings.EqualFold(value, code) {
			return method, nil
		}
	}
	return "", fmt.Errorf("timeseries: unknown settlement method %q", value)
}

// Code returns the market code of the method.
func (m SettlementMethod) Code() string { return settlementMethodCodes[m] }

// IsValid reports whether m is one of the known methods.
func (m SettlementMethod) IsValid() bool {
	_, ok := settlementMethodCodes[m]
	return ok
}
