package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	"github.com/Shopify/sarama/mocks"
	"github.com/shopspring/decimal"

	"metering-aggregations/internal/aggregation/application"
	aggregation "metering-aggregations/internal/aggregation/domain"
)

func sampleResult() application.Result {
	start := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	return application.Result{
		Period:     aggregation.Period{Start: start, End: start.Add(time.Hour)},
		ComputedAt: start.Add(2 * time.Hour),
		Records: []aggregation.AggregatedConsumptionRecord{
			{GroupKey: aggregation.GroupKey{GridArea: "800", EnergySupplier: "s1", BalanceResponsibleParty: "b1"}, SumQuantity: decimal.RequireFromString("7.5")},
			{GroupKey: aggregation.GroupKey{GridArea: "801", EnergySupplier: "s2", BalanceResponsibleParty: "b1"}, SumQuantity: decimal.RequireFromString("1")},
		},
	}
}

func TestPublisherSendsOneMessagePerGroup(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	check := func(val []byte) error {
		var msg Message
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg.Aggregation != application.AggregationName || msg.SumQuantity == "" {
			return errors.New("unexpected message payload")
		}
		return nil
	}
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(check)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(check)

	pub, err := NewPublisherWithProducer(producer, "aggregations", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if err := pub.Write(context.Background(), sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestPublisherReturnsProducerError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	pub, err := NewPublisherWithProducer(producer, "aggregations", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if err := pub.Write(context.Background(), sampleResult()); err == nil {
		t.Fatalf("expected producer error")
	}
	_ = pub.Close()
}

func TestPublisherSkipsEmptyResult(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub, err := NewPublisherWithProducer(producer, "aggregations", nil)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	if err := pub.Write(context.Background(), application.Result{}); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	_ = pub.Close()
}

func TestMessageKeyAndValue(t *testing.T) {
	result := sampleResult()
	rec := result.Records[0]
	if got := MessageKey(rec.GroupKey); got != "800|s1|b1" {
		t.Fatalf("unexpected key %q", got)
	}
	msg := NewMessage(result, rec)
	if msg.SumQuantity != "7.5" || !msg.PeriodStart.Equal(result.Period.Start) {
		t.Fatalf("unexpected message %+v", msg)
	}
}
