package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/blob"
	"storefront/internal/checkout"
	"storefront/internal/service"
)

func (h *Handler) listProducts(c *gin.Context) {
	page, err := h.catalog.List(c.Request.Context(), service.CatalogQuery{
		Categories: c.QueryArray("category"),
		Colors:     c.QueryArray("color"),
		PriceRange: c.Query("price_range"),
		Search:     c.Query("q"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type cartItemRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Size      string `json:"size" binding:"required"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.carts.Get(c.Request.Context(), cartIDFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) addCartItem(c *gin.Context) {
	req := cartItemRequest{Quantity: 1}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	view, err := h.carts.Add(c.Request.Context(), cartIDFrom(c), req.ProductID, req.Size, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) updateCartItem(c *gin.Context) {
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	view, err := h.carts.UpdateQuantity(c.Request.Context(), cartIDFrom(c), req.ProductID, req.Size, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	id, ok := paramID(c, "product_id")
	if !ok {
		return
	}
	view, err := h.carts.Remove(c.Request.Context(), cartIDFrom(c), id, c.Param("size"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), cartIDFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// checkoutCart places an order for the shopper's cart. A failed attempt
// echoes the submitted form so the client can retry without retyping it.
func (h *Handler) checkoutCart(c *gin.Context) {
	var form checkout.CartCheckout
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if form.IdempotencyKey == "" {
		form.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	sub := service.NewSubmission(form)
	order, err := h.checkout.Submit(c.Request.Context(), cartIDFrom(c), sub)
	if err != nil {
		respondErrorWith(c, err, gin.H{"form": sub.Form()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": sub.Status(), "order": order})
}

func (h *Handler) buyNow(c *gin.Context) {
	form := checkout.BuyNow{Quantity: 1}
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if form.IdempotencyKey == "" {
		form.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}
	order, err := h.checkout.BuyNow(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// submitCustomOrder reads a multipart form: customer fields, one or more
// "designs" files and a parallel list of "instructions".
func (h *Handler) submitCustomOrder(c *gin.Context) {
	mf, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "expected multipart form", err)
		return
	}

	form := checkout.CustomOrder{
		Name:    c.PostForm("name"),
		Phone:   c.PostForm("phone"),
		Email:   c.PostForm("email"),
		Address: c.PostForm("address"),
	}
	instructions := mf.Value["instructions"]
	for i, fh := range mf.File["designs"] {
		d, err := h.readDesign(fh)
		if err != nil {
			badRequest(c, fmt.Sprintf("could not read design %d", i), err)
			return
		}
		if i < len(instructions) {
			d.Instructions = instructions[i]
		}
		form.Designs = append(form.Designs, d)
	}

	co, err := h.customOrders.Submit(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, co)
}

// readDesign reads at most one byte past the upload limit so oversize
// files are reported by validation rather than read whole.
func (h *Handler) readDesign(fh *multipart.FileHeader) (checkout.DesignUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return checkout.DesignUpload{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxUpload > 0 {
		r = io.LimitReader(f, h.maxUpload+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return checkout.DesignUpload{}, err
	}
	return checkout.DesignUpload{
		Filename:    fh.Filename,
		ContentType: blob.ContentType(data),
		Size:        fh.Size,
		Content:     data,
	}, nil
}

func (h *Handler) sendMessage(c *gin.Context) {
	var form checkout.Contact
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	m, err := h.messages.Send(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": m.ID, "status": m.Status})
}
