package braintree

import (
	"encoding/xml"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/smallbiznis/railzway-braintree/internal/gateway"
)

type transactionRequest struct {
	XMLName            xml.Name            `xml:"transaction"`
	Type               string              `xml:"type,omitempty"`
	Amount             string              `xml:"amount,omitempty"`
	CustomerID         string              `xml:"customer-id,omitempty"`
	PaymentMethodNonce string              `xml:"payment-method-nonce,omitempty"`
	Options            *transactionOptions `xml:"options,omitempty"`
}

type transactionOptions struct {
	SubmitForSettlement bool `xml:"submit-for-settlement"`
}

type transactionXML struct {
	XMLName                         xml.Name `xml:"transaction"`
	ID                              string   `xml:"id"`
	Status                          string   `xml:"status"`
	Type                            string   `xml:"type"`
	Amount                          string   `xml:"amount"`
	CurrencyISOCode                 string   `xml:"currency-iso-code"`
	CustomerID                      string   `xml:"customer>id"`
	PaymentInstrumentType           string   `xml:"payment-instrument-type"`
	RetrievalReferenceNumber        string   `xml:"retrieval-reference-number"`
	ProcessorResponseCode           string   `xml:"processor-response-code"`
	ProcessorResponseText           string   `xml:"processor-response-text"`
	ProcessorSettlementResponseCode string   `xml:"processor-settlement-response-code"`
	ProcessorSettlementResponseText string   `xml:"processor-settlement-response-text"`
	NetworkResponseCode             string   `xml:"network-response-code"`
	NetworkResponseText             string   `xml:"network-response-text"`
	GatewayRejectionReason          string   `xml:"gateway-rejection-reason"`
}

func (t transactionXML) toDomain() *gateway.Transaction {
	amount, err := decimal.NewFromString(strings.TrimSpace(t.Amount))
	if err != nil {
		amount = decimal.Zero
	}
	return &gateway.Transaction{
		ID:                       t.ID,
		Status:                   t.Status,
		Type:                     t.Type,
		Amount:                   amount,
		CurrencyISOCode:          t.CurrencyISOCode,
		CustomerID:               t.CustomerID,
		PaymentInstrumentType:    t.PaymentInstrumentType,
		RetrievalReferenceNumber: t.RetrievalReferenceNumber,
		ProcessorResponseCode:    t.ProcessorResponseCode,
		ProcessorResponseText:    t.ProcessorResponseText,
		SettlementResponseCode:   t.ProcessorSettlementResponseCode,
		SettlementResponseText:   t.ProcessorSettlementResponseText,
		NetworkResponseCode:      t.NetworkResponseCode,
		NetworkResponseText:      t.NetworkResponseText,
		GatewayRejectionReason:   t.GatewayRejectionReason,
	}
}

type paymentMethodRequest struct {
	XMLName            xml.Name              `xml:"payment-method"`
	CustomerID         string                `xml:"customer-id,omitempty"`
	Token              string                `xml:"token,omitempty"`
	PaymentMethodNonce string                `xml:"payment-method-nonce,omitempty"`
	Options            *paymentMethodOptions `xml:"options,omitempty"`
}

type paymentMethodOptions struct {
	VerifyCard                      bool   `xml:"verify-card,omitempty"`
	USBankAccountVerificationMethod string `xml:"us-bank-account-verification-method,omitempty"`
}

type verificationXML struct {
	Status                string `xml:"status"`
	ProcessorResponseCode string `xml:"processor-response-code"`
}

// paymentMethodXML decodes credit-card, us-bank-account and paypal-account
// elements. XMLName tells them apart.
type paymentMethodXML struct {
	XMLName    xml.Name
	Token      string `xml:"token"`
	CustomerID string `xml:"customer-id"`
	Default    bool   `xml:"default"`

	CardType        string `xml:"card-type"`
	Last4           string `xml:"last-4"`
	ExpirationMonth string `xml:"expiration-month"`
	ExpirationYear  string `xml:"expiration-year"`
	CardholderName  string `xml:"cardholder-name"`

	AccountType   string            `xml:"account-type"`
	RoutingNumber string            `xml:"routing-number"`
	BankName      string            `xml:"bank-name"`
	Verified      bool              `xml:"verified"`
	Verifications []verificationXML `xml:"verifications>us-bank-account-verification"`

	Email string `xml:"email"`
}

func (p paymentMethodXML) instrumentType() gateway.InstrumentType {
	switch p.XMLName.Local {
	case "us-bank-account":
		return gateway.InstrumentACH
	case "paypal-account":
		return gateway.InstrumentPayPal
	default:
		return gateway.InstrumentCard
	}
}

func (p paymentMethodXML) toDomain() gateway.Method {
	details := map[string]string{}
	put := func(key, value string) {
		if value != "" {
			details[key] = value
		}
	}
	switch p.instrumentType() {
	case gateway.InstrumentCard:
		put("card_type", p.CardType)
		put("last4", p.Last4)
		put("exp_month", p.ExpirationMonth)
		put("exp_year", p.ExpirationYear)
		put("cardholder_name", p.CardholderName)
	case gateway.InstrumentACH:
		put("account_type", p.AccountType)
		put("last4", p.Last4)
		put("routing_number", p.RoutingNumber)
		put("bank_name", p.BankName)
		if p.Verified {
			details["verified"] = "true"
		} else {
			details["verified"] = "false"
		}
	case gateway.InstrumentPayPal:
		put("email", p.Email)
	}
	return gateway.Method{
		Token:          p.Token,
		CustomerID:     p.CustomerID,
		IsDefault:      p.Default,
		InstrumentType: p.instrumentType(),
		Details:        details,
	}
}

type customerXML struct {
	XMLName        xml.Name           `xml:"customer"`
	ID             string             `xml:"id"`
	CreditCards    []paymentMethodXML `xml:"credit-cards>credit-card"`
	USBankAccounts []paymentMethodXML `xml:"us-bank-accounts>us-bank-account"`
	PayPalAccounts []paymentMethodXML `xml:"paypal-accounts>paypal-account"`
}

type nonceXML struct {
	XMLName xml.Name `xml:"payment-method-nonce"`
	Nonce   string   `xml:"nonce"`
}

type apiErrorResponse struct {
	XMLName     xml.Name        `xml:"api-error-response"`
	Message     string          `xml:"message"`
	Transaction *transactionXML `xml:"transaction"`
}
