package queue

import (
	"bytes"
	"context"
	"testing"
	"time"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"

	"ender/domain"
)

func TestDeliveryBlock(t *testing.T) {
	d := &Delivery{Body: []byte(`{"height":12,"events":[{"txId":"tx","eventIndex":1,"type":"LiquidityTierUpsertEvent","version":2,"data":"CAE="}]}`)}
	b, err := d.Block()
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if b.Height != 12 || len(b.Events) != 1 {
		t.Fatalf("unexpected block %+v", b)
	}
	ev := b.Events[0]
	if ev.Type != domain.LiquidityTierUpsert || ev.TxID != "tx" || ev.EventIndex != 1 || ev.Version != 2 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !bytes.Equal(ev.Data, []byte{0x08, 0x01}) {
		t.Fatalf("unexpected data %x", ev.Data)
	}

	if _, err := (&Delivery{Body: []byte("nope")}).Block(); err == nil {
		t.Fatalf("expected error for malformed envelope")
	}
	if _, err := (&Delivery{Body: []byte(`{"height":"twelve"}`)}).Block(); err == nil {
		t.Fatalf("expected error for mistyped height")
	}
}

func TestDeliveryWithoutCallbacks(t *testing.T) {
	d := &Delivery{}
	if err := d.Ack(context.Background()); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if err := d.Nack(context.Background()); err != nil {
		t.Fatalf("nack: %v", err)
	}
}

func TestSubscriptionReceivesAndAcks(t *testing.T) {
	ctx := context.Background()
	url := "mem://queue-test-blocks"
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		t.Fatalf("topic: %v", err)
	}
	defer topic.Shutdown(ctx)

	sub, err := OpenSubscription(ctx, url)
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	defer sub.Close(ctx)

	if err := topic.Send(ctx, &pubsub.Message{Body: []byte(`{"height":1}`)}); err != nil {
		t.Fatalf("send: %v", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	d, err := sub.Receive(recvCtx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	b, err := d.Block()
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if b.Height != 1 {
		t.Fatalf("unexpected height %d", b.Height)
	}
	if err := d.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
}

func TestSubscriptionNackRedelivers(t *testing.T) {
	ctx := context.Background()
	url := "mem://queue-test-redelivery"
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		t.Fatalf("topic: %v", err)
	}
	defer topic.Shutdown(ctx)

	sub, err := OpenSubscription(ctx, url)
	if err != nil {
		t.Fatalf("subscription: %v", err)
	}
	defer sub.Close(ctx)

	if err := topic.Send(ctx, &pubsub.Message{Body: []byte(`{"height":2}`)}); err != nil {
		t.Fatalf("send: %v", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	d, err := sub.Receive(recvCtx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := d.Nack(ctx); err != nil {
		t.Fatalf("nack: %v", err)
	}

	again, err := sub.Receive(recvCtx)
	if err != nil {
		t.Fatalf("receive again: %v", err)
	}
	if !bytes.Equal(d.Body, again.Body) {
		t.Fatalf("redelivered %s, want %s", again.Body, d.Body)
	}
	if err := again.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
}

func TestNewAzureQueue(t *testing.T) {
	if _, err := NewAzureQueue("", "blocks", 0); err == nil {
		t.Fatalf("expected error for empty connection string")
	}

	q, err := NewAzureQueue("DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;QueueEndpoint=http://127.0.0.1:10001/devstoreaccount1;", "blocks", 0)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if q.pollInterval != defaultPollInterval {
		t.Fatalf("unexpected poll interval %v", q.pollInterval)
	}
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}
