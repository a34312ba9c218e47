package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"farmlink-be/internal/catalog"
	"farmlink-be/internal/logger"
	"farmlink-be/internal/metrics"
	"farmlink-be/internal/order"
	"farmlink-be/internal/pricing"
	"farmlink-be/internal/reputation"
	"farmlink-be/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidStatusFilter = errors.New("invalid status filter")

type Handler struct {
	orders   order.Service
	products catalog.Reader
	scores   reputation.Aggregator
	stats    *metrics.Registry
}

func NewHandler(
	orders order.Service,
	products catalog.Reader,
	scores reputation.Aggregator,
	stats *metrics.Registry,
) *Handler {
	return &Handler{
		orders:   orders,
		products: products,
		scores:   scores,
		stats:    stats,
	}
}

// actorFrom reads the authenticated identity set by the auth middleware.
func actorFrom(r *http.Request) (order.Actor, bool) {
	id, ok := utils.GetActorIDFromContext(r.Context())
	if !ok {
		return order.Actor{}, false
	}
	role := utils.GetActorRoleFromContext(r.Context())
	return order.Actor{ID: id, Role: order.Role(role)}, true
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "malformed request body", http.StatusBadRequest)
		return
	}

	input, err := buildCreateInput(actor.ID, req)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), input)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, toOrderResponse(o))
}

func buildCreateInput(buyerID uuid.UUID, req CreateOrderRequest) (order.CreateOrderInput, error) {
	input := order.CreateOrderInput{
		BuyerID:       buyerID,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		Notes:         req.Notes,
	}

	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return order.CreateOrderInput{}, errors.New("invalid product id")
		}
		input.Items = append(input.Items, order.ItemInput{
			ProductID: productID,
			Quantity:  item.Quantity,
		})
	}

	input.Delivery = order.DeliveryInput{
		Method:        pricing.DeliveryMethod(req.Delivery.Method),
		Address:       req.Delivery.Address,
		ScheduledTime: req.Delivery.ScheduledTime,
	}
	if req.Delivery.ScheduledDate != "" {
		scheduled, err := parseDate(req.Delivery.ScheduledDate)
		if err != nil {
			return order.CreateOrderInput{}, err
		}
		input.Delivery.ScheduledDate = scheduled
	}

	return input, nil
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	o, err := h.orders.GetOrder(r.Context(), orderID, actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	filter, limit, page, err := parseListQuery(r)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), actor, filter, limit, page)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{
		"orders": toOrderListResponse(orders),
	})
}

func parseListQuery(r *http.Request) (*order.Filter, *int32, *int32, error) {
	q := r.URL.Query()

	var filter *order.Filter
	ensure := func() *order.Filter {
		if filter == nil {
			filter = &order.Filter{}
		}
		return filter
	}

	if s := q.Get("status"); s != "" {
		status := order.Status(s)
		if !order.ValidStatus(status) {
			return nil, nil, nil, errInvalidStatusFilter
		}
		ensure().Status = &status
	}
	if s := q.Get("date_from"); s != "" {
		from, err := parseDate(s)
		if err != nil {
			return nil, nil, nil, err
		}
		ensure().DateFrom = &from
	}
	if s := q.Get("date_to"); s != "" {
		to, err := parseDate(s)
		if err != nil {
			return nil, nil, nil, err
		}
		ensure().DateTo = &to
	}

	var limit, page *int32
	if s := q.Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, nil, nil, err
		}
		v := int32(n)
		limit = &v
	}
	if s := q.Get("page"); s != "" {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, nil, nil, err
		}
		v := int32(n)
		page = &v
	}

	return filter, limit, page, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "malformed request body", http.StatusBadRequest)
		return
	}

	o, err := h.orders.TransitionOrder(r.Context(), orderID, actor, order.Status(req.Status), req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req UpdateDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "malformed request body", http.StatusBadRequest)
		return
	}

	o, err := h.orders.UpdateDeliveryStatus(r.Context(), orderID, actor, order.DeliveryStatus(req.Status), req.TrackingNumber)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) RateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r)
	if !ok {
		utils.WriteJSONError(w, "authentication required", http.StatusUnauthorized)
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	var req RateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSONError(w, "malformed request body", http.StatusBadRequest)
		return
	}

	o, err := h.orders.RateOrder(r.Context(), orderID, actor.ID, order.Rating{
		Quality:       req.Quality,
		Delivery:      req.Delivery,
		Communication: req.Communication,
		Overall:       req.Overall,
		Review:        req.Review,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		utils.WriteJSONError(w, "invalid product id", http.StatusBadRequest)
		return
	}

	snap, err := h.products.GetProduct(r.Context(), productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toProductResponse(snap))
}

func (h *Handler) GetSellerScore(w http.ResponseWriter, r *http.Request) {
	sellerID, err := uuid.Parse(chi.URLParam(r, "sellerID"))
	if err != nil {
		utils.WriteJSONError(w, "invalid seller id", http.StatusBadRequest)
		return
	}

	score, err := h.scores.GetScore(r.Context(), sellerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toSellerScoreResponse(score))
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.stats.Snapshot())
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	logger.FromCtx(r.Context()).Debug("health check", zap.String("layer", "handler"))
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
