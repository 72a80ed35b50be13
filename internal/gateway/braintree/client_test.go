package braintree

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smallbiznis/railzway-braintree/internal/config"
	"github.com/smallbiznis/railzway-braintree/internal/gateway"
)

type recorded struct {
	method string
	path   string
	body   string
}

type fakeBraintree struct {
	mu       sync.Mutex
	calls    []recorded
	handlers map[string]func(w http.ResponseWriter, body string)
}

func (f *fakeBraintree) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.calls = append(f.calls, recorded{method: r.Method, path: r.URL.Path, body: string(body)})
	f.mu.Unlock()

	user, pass, ok := r.BasicAuth()
	if !ok || user != "pub" || pass != "priv" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if r.Header.Get("X-ApiVersion") != apiVersion {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	handler, ok := f.handlers[r.Method+" "+r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	handler(w, string(body))
}

func (f *fakeBraintree) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method+" "+c.path)
	}
	return out
}

func reply(status int, body string) func(http.ResponseWriter, string) {
	return func(w http.ResponseWriter, _ string) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newTestClient(t *testing.T, handlers map[string]func(http.ResponseWriter, string)) (gateway.Client, *fakeBraintree) {
	t.Helper()
	fake := &fakeBraintree{handlers: handlers}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	settings, err := config.RawGatewayConfig{
		Environment: "sandbox",
		MerchantID:  "m1",
		PublicKey:   "pub",
		PrivateKey:  "priv",
		BaseURL:     srv.URL,
	}.Settings()
	require.NoError(t, err)

	client, err := NewFactory(zaptest.NewLogger(t)).NewClient(settings)
	require.NoError(t, err)
	return client, fake
}

const authorizedTx = `<?xml version="1.0" encoding="UTF-8"?>
<transaction>
  <id>tx1</id>
  <status>authorized</status>
  <type>sale</type>
  <amount type="decimal">10.00</amount>
  <currency-iso-code>USD</currency-iso-code>
  <customer><id>cust1</id></customer>
  <payment-instrument-type>credit_card</payment-instrument-type>
  <retrieval-reference-number>rrn-1</retrieval-reference-number>
  <processor-response-code>1000</processor-response-code>
  <processor-response-text>Approved</processor-response-text>
</transaction>`

func TestSaleSuccess(t *testing.T) {
	var sent string
	client, _ := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"POST /merchants/m1/transactions": func(w http.ResponseWriter, body string) {
			sent = body
			reply(http.StatusCreated, authorizedTx)(w, body)
		},
	})

	res, err := client.Sale(context.Background(), decimal.RequireFromString("10"), "cust1", "nonce-1", false)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, "tx1", res.Transaction.ID)
	assert.Equal(t, gateway.StatusAuthorized, res.Transaction.Status)
	assert.True(t, res.Transaction.Amount.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, "cust1", res.Transaction.CustomerID)
	assert.Equal(t, "rrn-1", res.Transaction.RetrievalReferenceNumber)

	assert.Contains(t, sent, "<type>sale</type>")
	assert.Contains(t, sent, "<amount>10.00</amount>")
	assert.Contains(t, sent, "<payment-method-nonce>nonce-1</payment-method-nonce>")
	assert.Contains(t, sent, "<submit-for-settlement>false</submit-for-settlement>")
}

func TestSaleDeclineIsUnsuccessfulResult(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"POST /merchants/m1/transactions": reply(http.StatusUnprocessableEntity, `<api-error-response>
  <message>Do Not Honor</message>
  <transaction>
    <id>tx2</id>
    <status>processor_declined</status>
    <amount>5.00</amount>
    <processor-response-code>2000</processor-response-code>
    <processor-response-text>Do Not Honor</processor-response-text>
  </transaction>
</api-error-response>`),
	})

	res, err := client.Sale(context.Background(), decimal.RequireFromString("5"), "", "nonce", true)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Do Not Honor", res.Message)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, gateway.StatusProcessorDeclined, res.Transaction.Status)
	assert.Equal(t, "2000", res.Transaction.ProcessorResponseCode)
}

func TestRefundOnUnsettledFullAmountVoids(t *testing.T) {
	client, fake := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"GET /merchants/m1/transactions/tx1":      reply(http.StatusOK, authorizedTx),
		"PUT /merchants/m1/transactions/tx1/void": reply(http.StatusOK, strings.Replace(authorizedTx, "authorized", "voided", 1)),
	})

	full := decimal.RequireFromString("10.0")
	res, err := client.Refund(context.Background(), "tx1", &full)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, gateway.StatusVoided, res.Transaction.Status)
	assert.Equal(t, []string{
		"GET /merchants/m1/transactions/tx1",
		"PUT /merchants/m1/transactions/tx1/void",
	}, fake.paths())
}

func TestRefundPartialOnUnsettledFails(t *testing.T) {
	client, fake := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"GET /merchants/m1/transactions/tx1": reply(http.StatusOK, authorizedTx),
	})

	partial := decimal.RequireFromString("3")
	_, err := client.Refund(context.Background(), "tx1", &partial)
	require.Error(t, err)
	assert.ErrorIs(t, err, gateway.ErrPartialRefundUnsettled)
	assert.Equal(t, []string{"GET /merchants/m1/transactions/tx1"}, fake.paths())
}

func TestRefundSettledIssuesRefund(t *testing.T) {
	settled := strings.Replace(authorizedTx, "<status>authorized</status>", "<status>settled</status>", 1)
	var sent string
	client, _ := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"GET /merchants/m1/transactions/tx1": reply(http.StatusOK, settled),
		"POST /merchants/m1/transactions/tx1/refund": func(w http.ResponseWriter, body string) {
			sent = body
			reply(http.StatusCreated, `<transaction><id>tx9</id><status>submitted_for_settlement</status><type>credit</type><amount>4.00</amount></transaction>`)(w, body)
		},
	})

	partial := decimal.RequireFromString("4")
	res, err := client.Refund(context.Background(), "tx1", &partial)
	require.NoError(t, err)
	assert.Equal(t, "tx9", res.Transaction.ID)
	assert.Contains(t, sent, "<amount>4.00</amount>")
}

func TestCreateNonceFromUnknownToken(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"POST /merchants/m1/payment_methods/known/nonces": reply(http.StatusCreated, `<payment-method-nonce><nonce>n-123</nonce></payment-method-nonce>`),
	})

	nonce, ok, err := client.CreateNonceFromToken(context.Background(), "known")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "n-123", nonce)

	_, ok, err = client.CreateNonceFromToken(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListPaymentMethods(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"GET /merchants/m1/customers/cust1": reply(http.StatusOK, `<customer>
  <id>cust1</id>
  <credit-cards type="array">
    <credit-card><token>card-1</token><default>true</default><card-type>Visa</card-type><last-4>1111</last-4></credit-card>
  </credit-cards>
  <us-bank-accounts type="array">
    <us-bank-account><token>ach-1</token><default>false</default><last-4>0000</last-4><verified>true</verified></us-bank-account>
  </us-bank-accounts>
  <paypal-accounts type="array">
    <paypal-account><token>pp-1</token><email>a@example.com</email></paypal-account>
  </paypal-accounts>
</customer>`),
	})

	methods, err := client.ListPaymentMethods(context.Background(), "cust1")
	require.NoError(t, err)
	require.Len(t, methods, 3)

	assert.Equal(t, "card-1", methods[0].Token)
	assert.True(t, methods[0].IsDefault)
	assert.Equal(t, gateway.InstrumentCard, methods[0].InstrumentType)
	assert.Equal(t, "1111", methods[0].Details["last4"])
	assert.Equal(t, "cust1", methods[0].CustomerID)

	assert.Equal(t, gateway.InstrumentACH, methods[1].InstrumentType)
	assert.Equal(t, "true", methods[1].Details["verified"])

	assert.Equal(t, gateway.InstrumentPayPal, methods[2].InstrumentType)
	assert.Equal(t, "a@example.com", methods[2].Details["email"])
}

func TestCreatePaymentMethodUnverifiedACH(t *testing.T) {
	client, _ := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"POST /merchants/m1/payment_methods": reply(http.StatusCreated, `<us-bank-account>
  <token>ach-2</token>
  <verified>false</verified>
  <verifications><us-bank-account-verification><processor-response-code>2001</processor-response-code></us-bank-account-verification></verifications>
</us-bank-account>`),
	})

	_, err := client.CreatePaymentMethod(context.Background(), "cust1", "ach-2", "nonce", gateway.InstrumentACH)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2001")
}

func TestCreateCardRequestsVerification(t *testing.T) {
	var sent string
	client, _ := newTestClient(t, map[string]func(http.ResponseWriter, string){
		"POST /merchants/m1/payment_methods": func(w http.ResponseWriter, body string) {
			sent = body
			reply(http.StatusCreated, `<credit-card><token>pm-1</token><customer-id>cust1</customer-id><last-4>4242</last-4></credit-card>`)(w, body)
		},
	})

	res, err := client.CreatePaymentMethod(context.Background(), "cust1", "pm-1", "nonce", gateway.InstrumentCard)
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "pm-1", res.Method.Token)
	assert.Contains(t, sent, "<verify-card>true</verify-card>")
	assert.Contains(t, sent, "<token>pm-1</token>")
}

func TestAuthenticationFailure(t *testing.T) {
	fake := &fakeBraintree{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	settings, err := config.RawGatewayConfig{MerchantID: "m1", PublicKey: "pub", PrivateKey: "wrong", BaseURL: srv.URL}.Settings()
	require.NoError(t, err)
	client, err := NewFactory(zaptest.NewLogger(t)).NewClient(settings)
	require.NoError(t, err)

	_, err = client.GetTransactionStatus(context.Background(), "tx1")
	assert.ErrorIs(t, err, gateway.ErrUnauthorized)

	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "find_transaction", gwErr.Op)
}

func TestNewClientRejectsIncompleteSettings(t *testing.T) {
	settings, err := config.RawGatewayConfig{MerchantID: "m1"}.Settings()
	require.NoError(t, err)
	_, err = NewFactory(zaptest.NewLogger(t)).NewClient(settings)
	assert.Error(t, err)
}
