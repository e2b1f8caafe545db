package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"cardmarket/internal/model"
	"cardmarket/internal/service"
	"cardmarket/pkg/apierror"
	"cardmarket/pkg/response"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// dashboardActor is recorded as the actor of admin API deletions.
const dashboardActor = "dashboard"

// MarketHandler exposes the catalog, ledger and post sync to the dashboard.
type MarketHandler struct {
	catalog *service.Catalog
	ledger  *service.Ledger
	sync    *service.Synchronizer
}

// NewMarketHandler creates a new market handler.
func NewMarketHandler(catalog *service.Catalog, ledger *service.Ledger, sync *service.Synchronizer) *MarketHandler {
	return &MarketHandler{catalog: catalog, ledger: ledger, sync: sync}
}

// CardView is a card with its image locators resolved to URLs.
type CardView struct {
	model.Card
	FrontImageURL string `json:"frontImageUrl"`
	BackImageURL  string `json:"backImageUrl"`
}

// DataResponse is the dashboard snapshot.
type DataResponse struct {
	Cards    []CardView           `json:"cards"`
	Users    []model.User         `json:"users"`
	Claims   []model.Claim        `json:"claims"`
	Sellers  []model.Seller       `json:"sellers"`
	Posts    []model.CategoryPost `json:"posts"`
	Settings model.Settings       `json:"settings"`
}

// GetData handles GET /api/v1/data
func (h *MarketHandler) GetData(w http.ResponseWriter, r *http.Request) {
	snap, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	cards := make([]CardView, 0, len(snap.Cards))
	for _, c := range snap.Cards {
		cards = append(cards, CardView{
			Card:          c,
			FrontImageURL: c.FrontImage.URL(),
			BackImageURL:  c.BackImage.URL(),
		})
	}
	response.OK(w, DataResponse{
		Cards:    cards,
		Users:    nonNil(snap.Users),
		Claims:   nonNil(snap.Claims),
		Sellers:  nonNil(snap.Sellers),
		Posts:    nonNil(snap.Posts),
		Settings: snap.Settings,
	})
}

type postCategoryRequest struct {
	Category  string `json:"category"`
	ChannelID string `json:"channelId"`
}

// PostCategory handles POST /api/v1/posts/category
func (h *MarketHandler) PostCategory(w http.ResponseWriter, r *http.Request) {
	var req postCategoryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Category == "" || req.ChannelID == "" {
		response.Error(w, apierror.ValidationError("category and channelId are required"))
		return
	}

	id, err := h.sync.UpsertCategoryPost(r.Context(), req.Category, req.ChannelID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, map[string]string{"messageId": id})
}

type sendMessageRequest struct {
	ChannelID string `json:"channelId"`
	Content   string `json:"content"`
}

// SendMessage handles POST /api/v1/messages
func (h *MarketHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ChannelID == "" || req.Content == "" {
		response.Error(w, apierror.ValidationError("channelId and content are required"))
		return
	}

	id, err := h.sync.Announce(r.Context(), req.ChannelID, req.Content)
	if err != nil {
		respondError(w, err)
		return
	}
	response.Created(w, map[string]string{"messageId": id})
}

type claimRequest struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	CardID   string `json:"cardId"`
}

// CreateClaim handles POST /api/v1/claims
func (h *MarketHandler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.CardID == "" {
		response.Error(w, apierror.ValidationError("userId and cardId are required"))
		return
	}

	claim, err := h.ledger.Claim(r.Context(), req.UserID, req.Username, req.CardID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.Created(w, claim)
}

// DeleteClaim handles DELETE /api/v1/claims
func (h *MarketHandler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" || req.CardID == "" {
		response.Error(w, apierror.ValidationError("userId and cardId are required"))
		return
	}

	if err := h.ledger.Unclaim(r.Context(), req.UserID, req.CardID); err != nil {
		respondError(w, err)
		return
	}
	response.NoContent(w)
}

// MarkPaid handles POST /api/v1/claims/{id}/paid: the claim's holder
// confirms payment.
func (h *MarketHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.UserID == "" {
		response.Error(w, apierror.ValidationError("userId is required"))
		return
	}

	if err := h.ledger.MarkPaid(r.Context(), req.UserID, chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	response.NoContent(w)
}

// SetPaid handles PUT /api/v1/claims/{id}/paid
func (h *MarketHandler) SetPaid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paid *bool `json:"paid"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Paid == nil {
		response.Error(w, apierror.ValidationError("paid is required"))
		return
	}

	claim, err := h.ledger.SetPaid(r.Context(), chi.URLParam(r, "id"), *req.Paid)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, claim)
}

// CreateCard handles POST /api/v1/cards
func (h *MarketHandler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req model.NewCard
	if !decode(w, r, &req) {
		return
	}

	card, err := h.catalog.AddCard(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	response.Created(w, card)
}

// DeleteCard handles DELETE /api/v1/cards/{id}
func (h *MarketHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCard(r.Context(), dashboardActor, true, chi.URLParam(r, "id")); err != nil {
		respondError(w, err)
		return
	}
	response.NoContent(w)
}

type sellerRequest struct {
	DiscordID         string `json:"discordId"`
	Name              string `json:"name"`
	PostingChannelID  string `json:"postingChannelId"`
	TrackingChannelID string `json:"trackingChannelId"`
}

// CreateSeller handles POST /api/v1/sellers
func (h *MarketHandler) CreateSeller(w http.ResponseWriter, r *http.Request) {
	var req sellerRequest
	if !decode(w, r, &req) {
		return
	}

	seller, err := h.catalog.RegisterSeller(r.Context(), req.DiscordID, req.Name, req.PostingChannelID, req.TrackingChannelID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.Created(w, seller)
}

// UpdateSellerChannels handles PUT /api/v1/sellers/{id}/channels
func (h *MarketHandler) UpdateSellerChannels(w http.ResponseWriter, r *http.Request) {
	var req sellerRequest
	if !decode(w, r, &req) {
		return
	}

	seller, err := h.catalog.UpdateSellerChannels(r.Context(), chi.URLParam(r, "id"), req.PostingChannelID, req.TrackingChannelID)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, seller)
}

// GetSettings handles GET /api/v1/settings
func (h *MarketHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.catalog.Settings(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, s)
}

// SaveSettings handles PUT /api/v1/settings
func (h *MarketHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var req model.Settings
	if !decode(w, r, &req) {
		return
	}

	s, err := h.catalog.SaveSettings(r.Context(), req)
	if err != nil {
		respondError(w, err)
		return
	}
	response.OK(w, s)
}

// decode reads a JSON body into v, answering 400 itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		response.Error(w, apierror.BadRequest("failed to read request body"))
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return false
	}
	return true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
