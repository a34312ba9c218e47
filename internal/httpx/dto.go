package httpx

import (
	"time"

	"farmlink-be/internal/catalog"
	"farmlink-be/internal/order"
	"farmlink-be/internal/pricing"
	"farmlink-be/internal/reputation"
)

type CreateOrderRequest struct {
	Items         []OrderItemRequest   `json:"items"`
	Delivery      OrderDeliveryRequest `json:"delivery"`
	PaymentMethod string               `json:"payment_method"`
	Notes         string               `json:"notes,omitempty"`
}

type OrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type OrderDeliveryRequest struct {
	Method        string `json:"method"`
	Address       string `json:"address,omitempty"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	ScheduledTime string `json:"scheduled_time,omitempty"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

type UpdateDeliveryRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

type RateOrderRequest struct {
	Quality       int    `json:"quality"`
	Delivery      int    `json:"delivery"`
	Communication int    `json:"communication"`
	Overall       int    `json:"overall"`
	Review        string `json:"review,omitempty"`
}

type OrderResponse struct {
	ID        string                  `json:"id"`
	Number    string                  `json:"number"`
	BuyerID   string                  `json:"buyer_id"`
	SellerID  string                  `json:"seller_id"`
	Items     []OrderItemResponse     `json:"items,omitempty"`
	Pricing   PricingResponse         `json:"pricing"`
	Delivery  DeliveryResponse        `json:"delivery"`
	Payment   PaymentResponse         `json:"payment"`
	Status    string                  `json:"status"`
	Notes     string                  `json:"notes,omitempty"`
	Timeline  []TimelineEntryResponse `json:"timeline,omitempty"`
	Rating    *RatingResponse         `json:"rating,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Unit      string `json:"unit"`
	Subtotal  int64  `json:"subtotal"`
}

type PricingResponse struct {
	Subtotal    int64  `json:"subtotal"`
	DeliveryFee int64  `json:"delivery_fee"`
	ServiceFee  int64  `json:"service_fee"`
	Tax         int64  `json:"tax"`
	Total       int64  `json:"total"`
	Currency    string `json:"currency"`
}

type DeliveryResponse struct {
	Method         string     `json:"method"`
	Address        string     `json:"address,omitempty"`
	ScheduledDate  *time.Time `json:"scheduled_date,omitempty"`
	ScheduledTime  string     `json:"scheduled_time,omitempty"`
	Status         string     `json:"status"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
}

type PaymentResponse struct {
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

type TimelineEntryResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
	ActorID   string    `json:"actor_id"`
}

type RatingResponse struct {
	Quality       int    `json:"quality"`
	Delivery      int    `json:"delivery"`
	Communication int    `json:"communication"`
	Overall       int    `json:"overall"`
	Review        string `json:"review,omitempty"`
}

type ProductResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Unit         string `json:"unit"`
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	AvailableQty int    `json:"available_qty"`
	MinOrderQty  int    `json:"min_order_qty"`
	SellerID     string `json:"seller_id"`
	Status       string `json:"status"`
}

type SellerScoreResponse struct {
	SellerID    string    `json:"seller_id"`
	Average     float64   `json:"average"`
	RatedOrders int       `json:"rated_orders"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toOrderResponse(o *order.Order) OrderResponse {
	resp := OrderResponse{
		ID:       o.ID.String(),
		Number:   o.Number,
		BuyerID:  o.BuyerID.String(),
		SellerID: o.SellerID.String(),
		Pricing:  toPricingResponse(o.Pricing),
		Delivery: DeliveryResponse{
			Method:         string(o.Delivery.Method),
			Address:        o.Delivery.Address,
			ScheduledTime:  o.Delivery.ScheduledTime,
			Status:         string(o.Delivery.Status),
			TrackingNumber: o.Delivery.TrackingNumber,
		},
		Payment: PaymentResponse{
			Method:        string(o.Payment.Method),
			Status:        string(o.Payment.Status),
			TransactionID: o.Payment.TransactionID,
			PaidAt:        o.Payment.PaidAt,
		},
		Status:    string(o.Status),
		Notes:     o.Notes,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}

	if !o.Delivery.ScheduledDate.IsZero() {
		d := o.Delivery.ScheduledDate
		resp.Delivery.ScheduledDate = &d
	}

	for _, item := range o.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ProductID: item.ProductID.String(),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Unit:      item.Unit,
			Subtotal:  item.Subtotal,
		})
	}

	for _, entry := range o.Timeline {
		resp.Timeline = append(resp.Timeline, TimelineEntryResponse{
			Status:    string(entry.Status),
			Timestamp: entry.Timestamp,
			Note:      entry.Note,
			ActorID:   entry.ActorID.String(),
		})
	}

	if o.Rating != nil {
		resp.Rating = &RatingResponse{
			Quality:       o.Rating.Quality,
			Delivery:      o.Rating.Delivery,
			Communication: o.Rating.Communication,
			Overall:       o.Rating.Overall,
			Review:        o.Rating.Review,
		}
	}

	return resp
}

func toOrderListResponse(orders []*order.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func toPricingResponse(b pricing.Breakdown) PricingResponse {
	return PricingResponse{
		Subtotal:    b.Subtotal,
		DeliveryFee: b.DeliveryFee,
		ServiceFee:  b.ServiceFee,
		Tax:         b.Tax,
		Total:       b.Total,
		Currency:    b.Currency,
	}
}

func toProductResponse(s *catalog.Snapshot) ProductResponse {
	return ProductResponse{
		ID:           s.ProductID.String(),
		Name:         s.Name,
		Unit:         s.Unit,
		Price:        s.Price,
		Currency:     s.Currency,
		AvailableQty: s.AvailableQty,
		MinOrderQty:  s.MinOrderQty,
		SellerID:     s.SellerID.String(),
		Status:       string(s.Status),
	}
}

func toSellerScoreResponse(s *reputation.Score) SellerScoreResponse {
	return SellerScoreResponse{
		SellerID:    s.SellerID.String(),
		Average:     s.Average,
		RatedOrders: s.RatedOrders,
		UpdatedAt:   s.UpdatedAt,
	}
}
