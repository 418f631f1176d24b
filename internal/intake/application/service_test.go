package application

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/onchainexchange/internal/intake/domain"
	matching "github.com/wyfcoding/onchainexchange/internal/matchingengine/domain"
)

type publishedMessage struct {
	exchange   string
	routingKey string
	messageID  string
	persistent bool
	value      any
}

type fakePublisher struct {
	published []publishedMessage
}

func (p *fakePublisher) PublishJSON(_ context.Context, exchange, routingKey, messageID string, persistent bool, value any) error {
	p.published = append(p.published, publishedMessage{
		exchange:   exchange,
		routingKey: routingKey,
		messageID:  messageID,
		persistent: persistent,
		value:      value,
	})
	return nil
}

type fakeOrderReader struct {
	orders    []*matching.Order
	cancelled []string
}

func (r *fakeOrderReader) ListOrders(context.Context, int64) ([]*matching.Order, error) {
	return r.orders, nil
}

func (r *fakeOrderReader) CancelOrder(_ context.Context, orderID string) error {
	r.cancelled = append(r.cancelled, orderID)
	return nil
}

func signedRequest(t *testing.T) *domain.OrderRequest {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	req := &domain.OrderRequest{
		Symbol:   "BTC/USDT",
		Side:     "buy",
		Type:     "limit",
		Quantity: decimal.RequireFromString("1"),
		Price:    decimal.RequireFromString("100"),
		Address:  crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}

	message := req.SignedMessage()
	digest := crypto.Keccak256(
		[]byte("\x19Ethereum Signed Message:\n" + strconv.Itoa(len(message)) + message),
	)
	signature, err := crypto.Sign(digest, key)
	require.NoError(t, err)
	signature[64] += 27
	req.Signature = hexutil.Encode(signature)
	return req
}

func newService(publisher *fakePublisher, reader *fakeOrderReader) *IntakeService {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewIntakeService(publisher, "orders_exchange", reader, log)
}

func TestSubmitOrderPublishesDurableMessage(t *testing.T) {
	publisher := &fakePublisher{}
	service := newService(publisher, &fakeOrderReader{})

	req := signedRequest(t)
	require.NoError(t, service.SubmitOrder(context.Background(), req))

	require.Len(t, publisher.published, 1)
	msg := publisher.published[0]
	assert.Equal(t, "orders_exchange", msg.exchange)
	assert.Equal(t, "order.new", msg.routingKey)
	assert.NotEmpty(t, msg.messageID)
	assert.True(t, msg.persistent)
	assert.Same(t, req, msg.value)
}

func TestSubmitOrderUniqueMessageIDs(t *testing.T) {
	publisher := &fakePublisher{}
	service := newService(publisher, &fakeOrderReader{})

	require.NoError(t, service.SubmitOrder(context.Background(), signedRequest(t)))
	require.NoError(t, service.SubmitOrder(context.Background(), signedRequest(t)))

	require.Len(t, publisher.published, 2)
	assert.NotEqual(t, publisher.published[0].messageID, publisher.published[1].messageID)
}

func TestSubmitOrderRejectsBadSignature(t *testing.T) {
	publisher := &fakePublisher{}
	service := newService(publisher, &fakeOrderReader{})

	req := signedRequest(t)
	req.Quantity = decimal.RequireFromString("2") // 篡改签名覆盖的字段

	assert.Error(t, service.SubmitOrder(context.Background(), req))
	assert.Empty(t, publisher.published)
}

func TestSubmitOrderRejectsInvalidRequest(t *testing.T) {
	publisher := &fakePublisher{}
	service := newService(publisher, &fakeOrderReader{})

	req := signedRequest(t)
	req.Side = "hold"

	assert.Error(t, service.SubmitOrder(context.Background(), req))
	assert.Empty(t, publisher.published)
}

func TestCancelOrderDelegatesToRepository(t *testing.T) {
	reader := &fakeOrderReader{}
	service := newService(&fakePublisher{}, reader)

	require.NoError(t, service.CancelOrder(context.Background(), "abc123"))
	assert.Equal(t, []string{"abc123"}, reader.cancelled)
}
