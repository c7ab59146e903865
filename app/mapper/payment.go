package mapper

import (
	"github.com/vibast-solutions/ms-go-payment-intents/app/provider"
	"github.com/vibast-solutions/ms-go-payment-intents/app/service"
	"github.com/vibast-solutions/ms-go-payment-intents/app/types"
)

func PaymentIntentToView(item *provider.PaymentIntent) *types.PaymentView {
	if item == nil {
		return nil
	}

	charges := make([]types.ChargeView, 0, len(item.Charges))
	for _, charge := range item.Charges {
		charges = append(charges, types.ChargeView{
			Amount:     charge.Amount,
			ReceiptUrl: charge.ReceiptURL,
			Status:     charge.Status,
		})
	}

	return &types.PaymentView{
		Id:       item.ID,
		Status:   item.Status,
		Amount:   item.Amount,
		Currency: item.Currency,
		Customer: item.CustomerID,
		Created:  item.Created,
		Charges:  charges,
	}
}

func CreatePaymentIntentResultToResponse(item *service.CreatePaymentIntentResult) *types.CreatePaymentIntentResponse {
	if item == nil {
		return nil
	}
	return &types.CreatePaymentIntentResponse{
		ClientSecret: item.ClientSecret,
		PaymentId:    item.PaymentID,
		CustomerId:   item.CustomerID,
	}
}
